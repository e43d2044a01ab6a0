package structure

import (
	"strings"
	"testing"
)

func TestWordCount(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   int
	}{
		{"empty", "", 0},
		{"blocks split words", "<p>a</p><p>b</p>", 2},
		{"inline does not split", "<p>Chap<b>ter</b> one</p>", 2},
		{"line break splits", "<p>one<br/>two</p>", 2},
		{"head script and style skipped", "<html><head><title>x y</title><style>p{}</style></head><body><script>var a</script><p>hello</p></body></html>", 1},
		{"malformed", "<p>unclosed <b>bold", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordCount([]byte(tt.markup)); got != tt.want {
				t.Errorf("WordCount(%q) = %d, want %d", tt.markup, got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	got := collapse(PlainText(page("<h1>Titre</h1><p>Il était <em>une</em> fois.</p>")))
	if got != "Titre Il était une fois." {
		t.Errorf("PlainText = %q", got)
	}
	if strings.Contains(PlainText(page("<p>x</p>")), "<") {
		t.Error("PlainText kept markup")
	}
}
