package structure

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
)

// assembler turns residual main content into chapters.
type assembler struct {
	src    Source
	parts  PartTitleMap
	logger *slog.Logger
}

// isMultipart reports whether any main-content item announces a part.
func isMultipart(main []AnalyzedItem) bool {
	return slices.ContainsFunc(main, func(it AnalyzedItem) bool {
		return it.Has(TagPartHeader)
	})
}

// singlePart drops near-empty chapters from pairMarkers and renumbers the
// rest from 1.
func (a *assembler) singlePart(main []AnalyzedItem) []Chapter {
	chapters := a.keepSubstantial(a.pairMarkers(main))
	for i := range chapters {
		chapters[i].Number = i + 1
	}
	return chapters
}

// pairMarkers pairs chapter-number markers with their bodies and appends
// the remaining substantial documents after the highest marker number.
// The result is sorted by chapter number.
func (a *assembler) pairMarkers(main []AnalyzedItem) []Chapter {
	var numbered, unnumbered []AnalyzedItem
	for _, it := range main {
		if it.ChapterNumber > 0 {
			numbered = append(numbered, it)
		} else {
			unnumbered = append(unnumbered, it)
		}
	}
	sort.SliceStable(numbered, func(i, j int) bool {
		return numbered[i].ChapterNumber < numbered[j].ChapterNumber
	})

	used := map[int]bool{}
	var chapters []Chapter
	highest := 0
	for _, m := range numbered {
		highest = max(highest, m.ChapterNumber)
		if m.WordCount >= chapterWords || !m.Has(TagCalibreChapterMarker) {
			chapters = append(chapters, Chapter{Segment: segmentOf(m), Number: m.ChapterNumber})
			continue
		}
		if body, ok := nextBody(unnumbered, m.Index, used); ok {
			used[body.Index] = true
			ch := Chapter{Segment: segmentOf(body), Number: m.ChapterNumber}
			if ch.Title == "" {
				ch.Title = m.Title
			}
			chapters = append(chapters, ch)
			continue
		}
		if m.WordCount > proseWords {
			chapters = append(chapters, Chapter{Segment: segmentOf(m), Number: m.ChapterNumber})
			continue
		}
		a.logger.Debug("dropping chapter marker without body", "href", m.Href, "chapter", m.ChapterNumber)
	}

	next := highest + 1
	for _, u := range unnumbered {
		if used[u.Index] || u.WordCount <= chapterWords {
			continue
		}
		chapters = append(chapters, Chapter{Segment: segmentOf(u), Number: next})
		next++
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
	return chapters
}

// nextBody finds the first unused unnumbered item after the marker that
// carries a chapter's worth of prose.
func nextBody(unnumbered []AnalyzedItem, after int, used map[int]bool) (AnalyzedItem, bool) {
	for _, u := range unnumbered {
		if u.Index > after && !used[u.Index] && u.WordCount > chapterWords {
			return u, true
		}
	}
	return AnalyzedItem{}, false
}

type partGroup struct {
	raw     int
	header  *AnalyzedItem
	content []AnalyzedItem
}

func (g *partGroup) add(it AnalyzedItem) {
	if it.WordCount < proseWords {
		if g.header == nil {
			g.header = &it
		}
		return
	}
	g.content = append(g.content, it)
}

func (g *partGroup) title(parts PartTitleMap) string {
	if g.header != nil && g.header.PartTitle != "" {
		return g.header.PartTitle
	}
	for _, c := range g.content {
		if c.PartTitle != "" {
			return c.PartTitle
		}
	}
	return parts[g.raw]
}

// multiPart groups items by part, splits each substantial content document
// into chapters and numbers the surviving parts 1..K.
func (a *assembler) multiPart(main []AnalyzedItem) []Chapter {
	groups := map[int]*partGroup{}
	var seen []int
	var leading []AnalyzedItem
	current := 0
	for _, it := range main {
		if it.PartNumber > 0 {
			current = it.PartNumber
		}
		if current == 0 {
			leading = append(leading, it)
			continue
		}
		g, ok := groups[current]
		if !ok {
			g = &partGroup{raw: current}
			groups[current] = g
			seen = append(seen, current)
		}
		g.add(it)
	}
	if len(seen) == 0 {
		return nil
	}
	// Documents before the first part marker belong to the first part.
	if first := groups[seen[0]]; len(leading) > 0 {
		var content []AnalyzedItem
		for _, it := range leading {
			if it.WordCount >= proseWords {
				content = append(content, it)
			}
		}
		first.content = append(content, first.content...)
	}

	raws := slices.Clone(seen)
	slices.Sort(raws)

	var chapters []Chapter
	k := 0
	for _, raw := range raws {
		g := groups[raw]
		partChapters := a.keepSubstantial(a.splitPart(g))
		if len(partChapters) == 0 {
			a.logger.Debug("dropping part without content", "part", raw)
			continue
		}
		k++
		title := g.title(a.parts)
		if title == "" {
			title = fmt.Sprintf("Part %d", k)
		}
		part := &Part{Number: k, Title: title}
		// Repeated numbers come from unsplit files and carry no order of
		// their own, so document order is kept and the part renumbered.
		if hasDuplicateNumbers(partChapters) {
			for i := range partChapters {
				partChapters[i].Number = i + 1
			}
		} else {
			sort.SliceStable(partChapters, func(i, j int) bool {
				return partChapters[i].Number < partChapters[j].Number
			})
		}
		for i := range partChapters {
			partChapters[i].Part = part
		}
		chapters = append(chapters, partChapters...)
	}
	return chapters
}

func (a *assembler) splitPart(g *partGroup) []Chapter {
	var chapters []Chapter
	for _, c := range g.content {
		if c.WordCount <= chapterWords {
			continue
		}
		var split []Chapter
		if markup, ok := a.markup(c.Href); ok {
			split = SplitChapters(markup, c, Part{})
		}
		if len(split) == 0 {
			split = []Chapter{{Segment: segmentOf(c), Number: 1}}
		}
		chapters = append(chapters, split...)
	}
	return chapters
}

func hasDuplicateNumbers(chapters []Chapter) bool {
	seen := map[int]bool{}
	for _, c := range chapters {
		if seen[c.Number] {
			return true
		}
		seen[c.Number] = true
	}
	return false
}

// keepSubstantial re-reads each chapter body and drops those with
// minChapterWords words or fewer.
func (a *assembler) keepSubstantial(chapters []Chapter) []Chapter {
	var kept []Chapter
	for _, c := range chapters {
		if n := a.bodyWords(c); n > minChapterWords {
			kept = append(kept, c)
		} else {
			a.logger.Debug("dropping near-empty chapter", "href", c.Href, "title", c.Title, "words", n)
		}
	}
	return kept
}

func (a *assembler) bodyWords(c Chapter) int {
	if c.Inline() {
		return WordCount([]byte(c.Body))
	}
	markup, ok := a.markup(c.Href)
	if !ok {
		return 0
	}
	return WordCount(markup)
}

// markup returns the document at href as UTF-8.
func (a *assembler) markup(href string) ([]byte, bool) {
	data, ok := a.src.Lookup(href)
	if !ok {
		return nil, false
	}
	markup, err := DecodeMarkup(data)
	if err != nil {
		a.logger.Warn("content document is not text", "href", href, "error", err)
		return nil, false
	}
	return markup, true
}
