package structure

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestAssembler(src mapSource) *assembler {
	return &assembler{src: src, parts: PartTitleMap{}, logger: discardLogger()}
}

func TestPairMarkers_PureMarkerTakesLaterBody(t *testing.T) {
	marker := analyzed(3, 5, TagCalibreChapterMarker, TagCalibreNumbered)
	marker.ChapterNumber = 12
	marker.Title = "12"
	filler := analyzed(4, 30)
	body := analyzed(6, 500)

	a := newTestAssembler(mapSource{})
	got := a.pairMarkers([]AnalyzedItem{marker, filler, body})
	if len(got) != 1 {
		t.Fatalf("got %d chapters, want 1", len(got))
	}
	if got[0].Number != 12 {
		t.Errorf("Number = %d, want 12", got[0].Number)
	}
	if got[0].Href != body.Href || got[0].Index != 6 {
		t.Errorf("chapter body = %s (%d), want %s", got[0].Href, got[0].Index, body.Href)
	}
	if got[0].Title != "12" {
		t.Errorf("Title = %q, want the marker title", got[0].Title)
	}
}

func TestPairMarkers_LoneMarker(t *testing.T) {
	tests := []struct {
		name  string
		words int
		want  int
	}{
		{"long enough to stand alone", 150, 1},
		{"too thin", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker := analyzed(0, tt.words, TagCalibreChapterMarker, TagCalibreNumbered)
			marker.ChapterNumber = 1
			got := newTestAssembler(mapSource{}).pairMarkers([]AnalyzedItem{marker})
			if len(got) != tt.want {
				t.Errorf("got %d chapters, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPairMarkers_UnnumberedContinueAfterHighest(t *testing.T) {
	numbered := analyzed(0, 300)
	numbered.ChapterNumber = 5
	items := []AnalyzedItem{numbered, analyzed(1, 300), analyzed(2, 150), analyzed(3, 400)}

	got := newTestAssembler(mapSource{}).pairMarkers(items)
	if len(got) != 3 {
		t.Fatalf("got %d chapters, want 3", len(got))
	}
	want := []struct{ number, index int }{{5, 0}, {6, 1}, {7, 3}}
	for i, w := range want {
		if got[i].Number != w.number || got[i].Index != w.index {
			t.Errorf("chapter %d = (%d, item %d), want (%d, item %d)", i, got[i].Number, got[i].Index, w.number, w.index)
		}
	}
}

func TestSinglePart_FiltersAndRenumbers(t *testing.T) {
	src := mapSource{
		"Text/item0.xhtml": page("<p>" + words(300) + "</p>"),
		"Text/item1.xhtml": page("<p>" + words(10) + "</p>"),
		"Text/item2.xhtml": page("<p>" + words(300) + "</p>"),
	}
	first := analyzed(0, 300)
	first.ChapterNumber = 3
	// Fingerprint says long, source says otherwise: the re-read wins.
	second := analyzed(1, 300)
	second.ChapterNumber = 4
	third := analyzed(2, 300)
	third.ChapterNumber = 9

	got := newTestAssembler(src).singlePart([]AnalyzedItem{first, second, third})
	if len(got) != 2 {
		t.Fatalf("got %d chapters, want 2", len(got))
	}
	for i, ch := range got {
		if ch.Number != i+1 {
			t.Errorf("chapter %d number = %d", i, ch.Number)
		}
	}
	if got[1].Index != 2 {
		t.Errorf("second chapter = item %d, want item 2", got[1].Index)
	}
}

func TestMultiPart_DensePartsAndFallback(t *testing.T) {
	partItem := func(i, words, part int, title string) AnalyzedItem {
		it := analyzed(i, words, TagPartHeader)
		it.PartNumber = part
		it.PartTitle = title
		return it
	}
	src := mapSource{
		"Text/item1.xhtml": page(`<h2 class="titre1">1. Le départ</h2><p>` + words(150) + `</p><h2 class="titre1">2. La route</h2><p>` + words(150) + `</p>`),
		"Text/item4.xhtml": page(`<p>` + words(400) + `</p>`),
		"Text/item5.xhtml": page(`<p>` + words(300) + `</p>`),
	}
	items := []AnalyzedItem{
		partItem(0, 3, 1, "L'Aube"),
		analyzed(1, 306),
		partItem(2, 3, 2, ""),
		partItem(3, 3, 4, ""),
		analyzed(4, 400),
		analyzed(5, 300),
	}

	a := newTestAssembler(src)
	a.parts = PartTitleMap{4: "La Chute"}
	got := a.multiPart(items)
	if len(got) != 4 {
		t.Fatalf("got %d chapters, want 4", len(got))
	}
	want := []struct {
		part   int
		title  string
		number int
	}{
		{1, "L'Aube", 1},
		{1, "L'Aube", 2},
		{2, "La Chute", 1},
		{2, "La Chute", 2},
	}
	for i, w := range want {
		ch := got[i]
		if ch.Part == nil {
			t.Fatalf("chapter %d has no part", i)
		}
		if ch.Part.Number != w.part || ch.Part.Title != w.title || ch.Number != w.number {
			t.Errorf("chapter %d = part %d %q #%d, want part %d %q #%d",
				i, ch.Part.Number, ch.Part.Title, ch.Number, w.part, w.title, w.number)
		}
	}
	if !got[0].Inline() || got[2].Inline() {
		t.Error("split chapters should be inline, whole-file chapters should not")
	}
}

func TestMultiPart_PlaceholderTitle(t *testing.T) {
	header := analyzed(0, 2, TagPartHeader)
	header.PartNumber = 7
	src := mapSource{"Text/item1.xhtml": page(`<p>` + words(300) + `</p>`)}

	got := newTestAssembler(src).multiPart([]AnalyzedItem{header, analyzed(1, 300)})
	if len(got) != 1 || got[0].Part == nil {
		t.Fatalf("got %+v", got)
	}
	if *got[0].Part != (Part{Number: 1, Title: "Part 1"}) {
		t.Errorf("part = %+v", *got[0].Part)
	}
}

func TestMultiPart_LeadingItemsJoinFirstPart(t *testing.T) {
	header := analyzed(1, 2, TagPartHeader)
	header.PartNumber = 2
	src := mapSource{
		"Text/item0.xhtml": page(`<p>` + words(300) + `</p>`),
		"Text/item2.xhtml": page(`<p>` + words(300) + `</p>`),
	}
	got := newTestAssembler(src).multiPart([]AnalyzedItem{analyzed(0, 300), header, analyzed(2, 300)})
	if len(got) != 2 {
		t.Fatalf("got %d chapters, want 2", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 2 {
		t.Errorf("order = %d, %d", got[0].Index, got[1].Index)
	}
	for _, ch := range got {
		if ch.Part.Number != 1 {
			t.Errorf("chapter %d part = %d, want 1", ch.Index, ch.Part.Number)
		}
	}
	if got[0].Number != 1 || got[1].Number != 2 {
		t.Errorf("numbers = %d, %d, want 1, 2", got[0].Number, got[1].Number)
	}
}

func TestMultiPart_SortsChaptersWithinPart(t *testing.T) {
	header := analyzed(0, 3, TagPartHeader)
	header.PartNumber = 1
	section := func(title string) string {
		return `<h2 class="titre1">` + title + `</h2><p>` + words(150) + `</p>`
	}
	src := mapSource{
		"Text/item1.xhtml": page(section("3. Le fleuve") + section("4. La mer")),
		"Text/item2.xhtml": page(section("1. La source") + section("2. Le torrent")),
	}

	got := newTestAssembler(src).multiPart([]AnalyzedItem{header, analyzed(1, 306), analyzed(2, 306)})
	if len(got) != 4 {
		t.Fatalf("got %d chapters, want 4", len(got))
	}
	want := []struct {
		number int
		title  string
		index  int
	}{
		{1, "1. La source", 2},
		{2, "2. Le torrent", 2},
		{3, "3. Le fleuve", 1},
		{4, "4. La mer", 1},
	}
	for i, w := range want {
		if got[i].Number != w.number || got[i].Title != w.title || got[i].Index != w.index {
			t.Errorf("chapter %d = #%d %q (item %d), want #%d %q (item %d)",
				i, got[i].Number, got[i].Title, got[i].Index, w.number, w.title, w.index)
		}
	}
}

func TestMultiPart_DecodesLegacyCharset(t *testing.T) {
	latin1 := func(s string) []byte {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			out = append(out, byte(r))
		}
		return out
	}
	header := analyzed(0, 3, TagPartHeader)
	header.PartNumber = 1
	src := mapSource{
		"Text/item1.xhtml": latin1(`<html><head><meta charset="iso-8859-1"/></head><body>` +
			`<h2 class="titre1">1. Le départ</h2><p>Un été ` + words(150) + `</p>` +
			`<h2 class="titre1">2. La rentrée</h2><p>` + words(150) + `</p></body></html>`),
	}

	got := newTestAssembler(src).multiPart([]AnalyzedItem{header, analyzed(1, 306)})
	if len(got) != 2 {
		t.Fatalf("got %d chapters, want 2", len(got))
	}
	if got[0].Title != "1. Le départ" || got[1].Title != "2. La rentrée" {
		t.Errorf("titles = %q, %q", got[0].Title, got[1].Title)
	}
	for _, ch := range got {
		if !utf8.ValidString(ch.Title) || !utf8.ValidString(ch.Body) {
			t.Errorf("chapter %d is not UTF-8", ch.Number)
		}
	}
	if !strings.Contains(got[0].Body, "Un été") {
		t.Errorf("body = %.40q", got[0].Body)
	}
}
