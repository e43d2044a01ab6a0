package structure

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yuanying/epub2notes/internal/epub"
)

// words returns n filler words.
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("mot ", n))
}

func page(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title></title></head>
<body>` + body + `</body>
</html>`)
}

func analyzed(i, wordCount int, tags ...Tag) AnalyzedItem {
	p := TagSet{}
	p.Add(tags...)
	return AnalyzedItem{
		SpineEntry:  epub.SpineEntry{ID: fmt.Sprintf("item%d", i), Href: fmt.Sprintf("Text/item%d.xhtml", i)},
		Fingerprint: Fingerprint{WordCount: wordCount, Patterns: p},
		Index:       i,
	}
}

type mapSource map[string][]byte

func (m mapSource) Lookup(href string) ([]byte, bool) {
	b, ok := m[href]
	return b, ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// book builds a spine and its source from (href, markup) pairs.
type book struct {
	spine []epub.SpineEntry
	src   mapSource
}

func newBook() *book {
	return &book{src: mapSource{}}
}

func (b *book) add(href string, markup []byte) *book {
	b.spine = append(b.spine, epub.SpineEntry{ID: fmt.Sprintf("doc%d", len(b.spine)), Href: href})
	b.src[href] = markup
	return b
}
