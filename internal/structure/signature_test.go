package structure

import (
	"strconv"
	"testing"
)

func TestExtract_ChapterMarker(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare", `<h2 class="chapter-number">12</h2>`, 12},
		{"bracketed", `<h2 class="calibre chapnum">[7]</h2>`, 7},
		{"trailing dot", `<h3 class="numero-chapitre">3.</h3>`, 3},
		{"not a number", `<h2 class="chapter-number">Douze</h2>`, 0},
		{"no class", `<h2>12</h2>`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := Extract(page(tt.body), "Text/ch.xhtml", nil)
			if fp.ChapterNumber != tt.want {
				t.Fatalf("ChapterNumber = %d, want %d", fp.ChapterNumber, tt.want)
			}
			if tt.want == 0 {
				if fp.Has(TagCalibreChapterMarker) {
					t.Error("unexpected calibre-chapter-marker tag")
				}
				return
			}
			if !fp.Has(TagCalibreChapterMarker) || !fp.Has(TagCalibreNumbered) {
				t.Errorf("tags = %v, want calibre marker tags", fp.Patterns.Sorted())
			}
			if fp.Title != strconv.Itoa(tt.want) {
				t.Errorf("Title = %q, want %q", fp.Title, strconv.Itoa(tt.want))
			}
			if fp.PartNumber != 0 {
				t.Errorf("PartNumber = %d, want none for a chapter marker", fp.PartNumber)
			}
		})
	}
}

func TestExtract_PartFromFileName(t *testing.T) {
	markup := page(`<h1>Troisième partie</h1>`)

	fp := Extract(markup, "OEBPS/Text/part_2.xhtml", PartTitleMap{3: "La Chute"})
	if fp.PartNumber != 3 {
		t.Fatalf("PartNumber = %d, want 3", fp.PartNumber)
	}
	if fp.PartTitle != "La Chute" {
		t.Errorf("PartTitle = %q, want %q", fp.PartTitle, "La Chute")
	}
	if !fp.Has(TagPartHeader) {
		t.Error("missing part-header tag")
	}
	if fp.Has(TagPartMarker) {
		t.Error("part-marker set without a part-class heading")
	}

	fp = Extract(markup, "OEBPS/Text/part_2.xhtml", nil)
	if fp.PartNumber != 3 || fp.PartTitle != "" {
		t.Errorf("without map: part = %d %q, want 3 and no title", fp.PartNumber, fp.PartTitle)
	}

	fp = Extract(page(`<p>`+words(300)+`</p>`), "Text/part0005.xhtml", nil)
	if fp.PartNumber != 0 {
		t.Errorf("part0005.xhtml gave part %d, want none", fp.PartNumber)
	}
}

func TestExtract_PartClassHeading(t *testing.T) {
	fp := Extract(page(`<h1 class="part-title">Partie II. L'Exil</h1>`), "Text/p.xhtml", nil)
	if fp.PartNumber != 2 {
		t.Fatalf("PartNumber = %d, want 2", fp.PartNumber)
	}
	if fp.PartTitle != "L'Exil" {
		t.Errorf("PartTitle = %q, want %q", fp.PartTitle, "L'Exil")
	}
	if !fp.Has(TagPartMarker) || !fp.Has(TagPartHeader) {
		t.Errorf("tags = %v", fp.Patterns.Sorted())
	}

	fp = Extract(page(`<h1 class="part-title">Partie II. L'Exil</h1>`), "Text/p.xhtml", PartTitleMap{2: "Exil"})
	if fp.PartTitle != "Exil" {
		t.Errorf("map did not take precedence: %q", fp.PartTitle)
	}
}

func TestExtract_PartHeadingFallback(t *testing.T) {
	fp := Extract(page(`<h1>Livre 4</h1>`), "Text/x.xhtml", nil)
	if fp.PartNumber != 4 {
		t.Errorf("PartNumber = %d, want 4", fp.PartNumber)
	}

	fp = Extract(page(`<h1>Chapitre 4</h1>`), "Text/x.xhtml", nil)
	if fp.PartNumber != 0 {
		t.Errorf("chapter heading gave part %d", fp.PartNumber)
	}
	if !fp.Has(TagChapterMarker) {
		t.Error("missing chapter-marker tag")
	}

	fp = Extract(page(`<h1>Livre 4</h1><p>`+words(150)+`</p>`), "Text/x.xhtml", nil)
	if fp.PartNumber != 0 {
		t.Errorf("long document gave part %d from a plain heading", fp.PartNumber)
	}
}

func TestExtract_PrologueAndEpilogue(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		title     string
		tags      []Tag
		notTagged []Tag
	}{
		{
			name:  "heading only",
			body:  `<h1>Prologue</h1>`,
			title: "Prologue",
			tags:  []Tag{TagPrologue, TagPrologueHeader},
		},
		{
			name:  "second-level label with a dateline",
			body:  `<h2>Prologue</h2><p>Paris, été 1942, matin.</p>`,
			title: "Prologue",
			tags:  []Tag{TagPrologue, TagPrologueHeader},
		},
		{
			name:  "epilogue paragraph with a dateline",
			body:  `<p>Épilogue</p><p>Lyon, hiver 1950.</p>`,
			title: "Epilogue",
			tags:  []Tag{TagEpilogue, TagEpilogueHeader},
		},
		{
			name:      "heading with prose",
			body:      `<h1>Prologue</h1><p>` + words(80) + `</p>`,
			title:     "Prologue",
			tags:      []Tag{TagPrologue},
			notTagged: []Tag{TagPrologueHeader},
		},
		{
			name:  "epilogue label alone",
			body:  `<p>Épilogue</p>`,
			title: "Epilogue",
			tags:  []Tag{TagEpilogue, TagEpilogueHeader},
		},
		{
			name:      "introduction opening",
			body:      `<p>Introduction</p><p>` + words(120) + `</p>`,
			title:     "Prologue",
			tags:      []Tag{TagPrologue},
			notTagged: []Tag{TagPrologueHeader},
		},
		{
			name:      "conclusion opening",
			body:      `<h2>Conclusion</h2><p>` + words(120) + `</p>`,
			title:     "Epilogue",
			tags:      []Tag{TagEpilogue},
			notTagged: []Tag{TagEpilogueHeader, TagPrologue},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := Extract(page(tt.body), "Text/a.xhtml", nil)
			if fp.Title != tt.title {
				t.Errorf("Title = %q, want %q", fp.Title, tt.title)
			}
			for _, tag := range tt.tags {
				if !fp.Has(tag) {
					t.Errorf("missing tag %s in %v", tag, fp.Patterns.Sorted())
				}
			}
			for _, tag := range tt.notTagged {
				if fp.Has(tag) {
					t.Errorf("unexpected tag %s", tag)
				}
			}
		})
	}
}

func TestExtract_TitleSkipsDatesAndTimeSkips(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "page title",
			markup: `<html><head><title>Le Départ</title></head><body><h2>Autre</h2></body></html>`,
			want:   "Le Départ",
		},
		{
			name:   "date page title",
			markup: `<html><head><title>12 mars 1943</title></head><body><h2>Le Départ</h2></body></html>`,
			want:   "Le Départ",
		},
		{
			name:   "time skip",
			markup: `<html><head><title>Trois mois plus tard</title></head><body><h1>Retour</h1></body></html>`,
			want:   "Retour",
		},
		{
			name:   "english time skip",
			markup: `<html><head><title>Two years later</title></head><body><h2>Home</h2></body></html>`,
			want:   "Home",
		},
		{
			name:   "nothing usable",
			markup: `<html><head><title>1943</title></head><body><p>` + words(10) + `</p></body></html>`,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract([]byte(tt.markup), "Text/a.xhtml", nil).Title; got != tt.want {
				t.Errorf("Title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_StructuralTags(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		tag  Tag
	}{
		{"title page class", "Text/a.xhtml", `<div class="titlepage"><h1>Le Livre</h1></div>`, TagTitlePage},
		{"title page file", "Text/titlepage.xhtml", `<h1>Le Livre</h1>`, TagTitlePage},
		{"copyright symbol", "Text/a.xhtml", `<p>© 2021 Éditions Exemple.</p><p>Tous droits réservés.</p>`, TagCopyright},
		{"copyright isbn", "Text/a.xhtml", `<p>Achevé d'imprimer.</p><p>ISBN 978-2-07-036822-8</p>`, TagCopyright},
		{"toc file", "Text/toc.xhtml", `<p>` + words(10) + `</p>`, TagTOC},
		{"toc heading", "Text/a.xhtml", `<h1>Table des matières</h1>`, TagTOC},
		{"toc epub type", "Text/a.xhtml", `<nav epub:type="toc"><ol><li>x</li></ol></nav>`, TagTOC},
		{"epigraph", "Text/a.xhtml", `<div class="epigraph"><p>Quote.</p></div>`, TagEpigraph},
		{"dedication", "Text/dedication.xhtml", `<p>À ma mère.</p>`, TagDedication},
		{"acknowledgment", "Text/a.xhtml", `<h1>Remerciements</h1><p>` + words(400) + `</p>`, TagAcknowledgment},
		{"bibliography", "Text/a.xhtml", `<h2>Du même auteur</h2><p>` + words(20) + `</p>`, TagBibliography},
		{"index", "Text/a.xhtml", `<h1>Index</h1><p>` + words(500) + `</p>`, TagIndex},
		{"thanks", "Text/a.xhtml", `<p>Merci à tous.</p>`, TagThanks},
		{"references", "Text/a.xhtml", `<section epub:type="endnotes"><p>` + words(500) + `</p></section>`, TagReferences},
		{"image heavy", "Text/a.xhtml", `<div><img src="../Images/a.jpg" alt=""/></div>`, TagImageHeavy},
		{"chapter word", "Text/a.xhtml", `<h2>Chapitre trois</h2><p>` + words(30) + `</p>`, TagChapterMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := Extract(page(tt.body), tt.path, nil)
			if !fp.Has(tt.tag) {
				t.Errorf("missing %s, got %v", tt.tag, fp.Patterns.Sorted())
			}
		})
	}
}

func TestExtract_LongChapterIgnoresInnerVocabulary(t *testing.T) {
	body := `<h1>Un</h1><blockquote class="epigraph"><p>Quote.</p></blockquote><p>` + words(400) + `</p>`
	fp := Extract(page(body), "Text/index_split_003.xhtml", nil)
	for _, tag := range []Tag{TagEpigraph, TagIndex, TagCopyright} {
		if fp.Has(tag) {
			t.Errorf("long chapter tagged %s", tag)
		}
	}
	if fp.WordCount != 402 {
		t.Errorf("WordCount = %d, want 402", fp.WordCount)
	}
	if !fp.HasSubstantialText() {
		t.Error("HasSubstantialText = false")
	}
}

func TestExtract_Degrades(t *testing.T) {
	for _, markup := range [][]byte{nil, []byte("<<<>>>"), []byte("<html><body><p>unclosed <b>bold")} {
		fp := Extract(markup, "", nil)
		if fp.Patterns == nil {
			t.Errorf("Extract(%q) returned nil pattern set", markup)
		}
	}
	if fp := Extract(nil, "", nil); fp.WordCount != 0 || fp.Title != "" {
		t.Errorf("empty markup fingerprint = %+v", fp)
	}
}

func TestHasSubstantialText(t *testing.T) {
	if (Fingerprint{WordCount: 50}).HasSubstantialText() {
		t.Error("50 words is not substantial")
	}
	if !(Fingerprint{WordCount: 51}).HasSubstantialText() {
		t.Error("51 words is substantial")
	}
}

func TestParseNumeral(t *testing.T) {
	tests := map[string]int{"3": 3, "IV": 4, "xii": 12, "MCM": 1900, "IL": 0, "": 0, "abc": 0}
	for in, want := range tests {
		if got := parseNumeral(in); got != want {
			t.Errorf("parseNumeral(%q) = %d, want %d", in, got, want)
		}
	}
}
