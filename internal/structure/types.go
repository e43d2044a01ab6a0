// Package structure reconstructs the logical layout of a book (front matter,
// prologue, chapters grouped into optional parts, epilogue, back matter) from
// the reading-order documents of an EPUB package.
//
// The work happens in four forward-only stages:
//
//	Extract / ResolvePartTitles  per-document fingerprints, part-title lookup
//	splitBoundaries              front/back matter, prologue, epilogue
//	assembleChapters             single-part or multi-part chapter list
//	SplitChapters                one document into several chapters (multi-part)
//
// Classify runs the last three over the output of Analyze.
package structure

import (
	"slices"

	"github.com/yuanying/epub2notes/internal/epub"
)

// Word-count thresholds. A document "qualifies" for a role when its count is
// strictly greater than the threshold and "is short" when strictly less.
const (
	substantialWords = 50  // Fingerprint.HasSubstantialText
	mainContentWords = 200 // front/back boundary scan
	proseWords       = 100 // prologue/epilogue body, lone marker, part header
	chapterWords     = 200 // pure marker, paired body, unnumbered chapter, multi-part content file
	minChapterWords  = 20  // final filter
	imageHeavyWords  = 20  // image-heavy tag

	frontScanWindow = 10
	backScanWindow  = 10
	edgeWindow      = 3 // prologue/epilogue search at either end of main content

	// namedHeadingRatio: named section headings must outnumber bare "N."
	// headings by more than this factor before the bare ones are dropped
	// as subsection noise. Empirically tuned; keep as is.
	namedHeadingRatio = 2
)

// Tag is a boolean structural signal attached to a document.
type Tag string

const (
	TagCalibreChapterMarker Tag = "calibre-chapter-marker"
	TagCalibreNumbered      Tag = "calibre-numbered-chapter"
	TagPartHeader           Tag = "part-header"
	TagPartMarker           Tag = "part-marker"
	TagPrologue             Tag = "prologue"
	TagPrologueHeader       Tag = "prologue-header"
	TagEpilogue             Tag = "epilogue"
	TagEpilogueHeader       Tag = "epilogue-header"
	TagTitlePage            Tag = "title-page"
	TagCopyright            Tag = "copyright"
	TagEpigraph             Tag = "epigraph"
	TagTOC                  Tag = "toc"
	TagDedication           Tag = "dedication"
	TagChapterMarker        Tag = "chapter-marker"
	TagAcknowledgment       Tag = "acknowledgment"
	TagBibliography         Tag = "bibliography"
	TagIndex                Tag = "index"
	TagThanks               Tag = "thanks"
	TagReferences           Tag = "references"
	TagImageHeavy           Tag = "image-heavy"
)

// TagSet is a set of pattern tags.
type TagSet map[Tag]struct{}

// Add inserts tags into the set.
func (s TagSet) Add(tags ...Tag) {
	for _, t := range tags {
		s[t] = struct{}{}
	}
}

// Has reports whether t is in the set. A nil set has nothing.
func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

// HasAny reports whether any of tags is in the set.
func (s TagSet) HasAny(tags ...Tag) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []Tag {
	tags := make([]Tag, 0, len(s))
	for t := range s {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Fingerprint holds the facts derived from one document's markup.
// Zero ChapterNumber or PartNumber means none was found.
type Fingerprint struct {
	Title         string
	WordCount     int
	Patterns      TagSet
	ChapterNumber int
	PartNumber    int
	PartTitle     string
}

// HasSubstantialText reports whether the document carries real prose.
func (f Fingerprint) HasSubstantialText() bool {
	return f.WordCount > substantialWords
}

// Has reports whether the fingerprint carries tag t.
func (f Fingerprint) Has(t Tag) bool {
	return f.Patterns.Has(t)
}

// HasAny reports whether the fingerprint carries any of tags.
func (f Fingerprint) HasAny(tags ...Tag) bool {
	return f.Patterns.HasAny(tags...)
}

// AnalyzedItem is a spine entry with its fingerprint. Index is the entry's
// position in the spine and is the only identity used once items move
// between working lists.
type AnalyzedItem struct {
	epub.SpineEntry
	Fingerprint
	Index int
}

// PartTitleMap maps a part number to its human title.
type PartTitleMap map[int]string

// Source resolves an href to the markup of the document it names.
type Source interface {
	Lookup(href string) ([]byte, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(href string) ([]byte, bool)

// Lookup calls f(href).
func (f SourceFunc) Lookup(href string) ([]byte, bool) {
	return f(href)
}

// Segment is a classified document: a front or back matter item, the
// prologue or the epilogue.
type Segment struct {
	ID    string `yaml:"id"`
	Href  string `yaml:"href"`
	Title string `yaml:"title"`
	Index int    `yaml:"index"`
}

// Part identifies the part a chapter belongs to in a multi-part book.
// Number is dense (1..K); Title is never empty.
type Part struct {
	Number int    `yaml:"number"`
	Title  string `yaml:"title"`
}

// Chapter is one logical chapter. When Body is set the chapter was split
// out of a larger document and Body holds its markup; otherwise the whole
// document at Href is the chapter.
type Chapter struct {
	Segment `yaml:",inline"`
	Number  int    `yaml:"number"`
	Part    *Part  `yaml:"part,omitempty"`
	Body    string `yaml:"-"`
}

// Inline reports whether the chapter carries its own markup.
func (c Chapter) Inline() bool {
	return c.Body != ""
}

// Classification is the reconstructed structure of a book.
type Classification struct {
	FrontMatter []Segment `yaml:"front_matter"`
	Prologue    *Segment  `yaml:"prologue,omitempty"`
	Chapters    []Chapter `yaml:"chapters"`
	Epilogue    *Segment  `yaml:"epilogue,omitempty"`
	BackMatter  []Segment `yaml:"back_matter"`
	Multipart   bool      `yaml:"multipart"`
}

// Empty reports whether nothing at all was classified.
func (c *Classification) Empty() bool {
	return len(c.FrontMatter) == 0 && c.Prologue == nil && len(c.Chapters) == 0 &&
		c.Epilogue == nil && len(c.BackMatter) == 0
}

// Parts returns the distinct parts in chapter order.
func (c *Classification) Parts() []Part {
	var parts []Part
	for _, ch := range c.Chapters {
		if ch.Part == nil {
			continue
		}
		if len(parts) == 0 || parts[len(parts)-1].Number != ch.Part.Number {
			parts = append(parts, *ch.Part)
		}
	}
	return parts
}

func segmentOf(it AnalyzedItem) Segment {
	return Segment{ID: it.ID, Href: it.Href, Title: it.Title, Index: it.Index}
}
