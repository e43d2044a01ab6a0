package structure

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	sectionTitleClasses = []string{"titre1", "title1", "section-title-1", "sect1"}

	sectionHeadingPattern = regexp.MustCompile(`(?is)<(h[1-6]|p)\b([^>]*)>(.*?)</(?:h[1-6]|p)\s*>`)
	classAttrPattern      = regexp.MustCompile(`(?is)\bclass\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	tagPattern            = regexp.MustCompile(`(?s)<[^>]*>`)
	bodyOpenPattern       = regexp.MustCompile(`(?is)<body\b[^>]*>`)
	bodyClosePattern      = regexp.MustCompile(`(?is)</body\s*>`)
	bareNumeralPattern    = regexp.MustCompile(`^\d+\s*\.?$`)
	leadingIntPattern     = regexp.MustCompile(`^(\d+)`)
	chapterWordPattern    = regexp.MustCompile(`(?i)\b(?:chapitre|chapter)\s+(\d+)`)
)

type sectionHeading struct {
	start, end int // byte offsets of the heading element in the body
	title      string
}

// SplitChapters cuts one content document into chapters at its level-1
// section titles. It returns nil when the document has none. Text before
// the first retained heading is not part of any chapter.
func SplitChapters(markup []byte, item AnalyzedItem, part Part) []Chapter {
	body := bodyRegion(string(markup))

	var headings []sectionHeading
	for _, m := range sectionHeadingPattern.FindAllStringSubmatchIndex(body, -1) {
		if !hasSectionTitleClass(body[m[4]:m[5]]) {
			continue
		}
		title := collapse(html.UnescapeString(tagPattern.ReplaceAllString(body[m[6]:m[7]], " ")))
		headings = append(headings, sectionHeading{start: m[0], end: m[1], title: title})
	}
	if len(headings) == 0 {
		return nil
	}

	headings = dropNumeralNoise(headings)

	chapters := make([]Chapter, 0, len(headings))
	for i, h := range headings {
		stop := len(body)
		if i+1 < len(headings) {
			stop = headings[i+1].start
		}
		p := part
		chapters = append(chapters, Chapter{
			Segment: Segment{
				ID:    fmt.Sprintf("%s#%d", item.ID, i+1),
				Href:  item.Href,
				Title: h.title,
				Index: item.Index,
			},
			Number: headingNumber(h.title, i+1),
			Part:   &p,
			Body:   strings.TrimSpace(body[h.end:stop]),
		})
	}
	return chapters
}

// dropNumeralNoise removes bare "N." headings when named headings
// outnumber them by more than namedHeadingRatio to one.
func dropNumeralNoise(headings []sectionHeading) []sectionHeading {
	var named, bare int
	for _, h := range headings {
		if bareNumeralPattern.MatchString(h.title) {
			bare++
		} else {
			named++
		}
	}
	if bare == 0 || named <= namedHeadingRatio*bare {
		return headings
	}
	kept := make([]sectionHeading, 0, named)
	for _, h := range headings {
		if !bareNumeralPattern.MatchString(h.title) {
			kept = append(kept, h)
		}
	}
	return kept
}

// headingNumber reads a leading integer, then "chapitre N", and falls back
// to the heading's position.
func headingNumber(title string, position int) int {
	if m := leadingIntPattern.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := chapterWordPattern.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return position
}

func hasSectionTitleClass(attrs string) bool {
	m := classAttrPattern.FindStringSubmatch(attrs)
	if m == nil {
		return false
	}
	for _, t := range strings.Fields(strings.ToLower(m[1] + " " + m[2])) {
		for _, c := range sectionTitleClasses {
			if t == c {
				return true
			}
		}
	}
	return false
}

// bodyRegion returns the inside of <body>, or the whole markup when there
// is no body element.
func bodyRegion(markup string) string {
	open := bodyOpenPattern.FindStringIndex(markup)
	if open == nil {
		return markup
	}
	rest := markup[open[1]:]
	if end := bodyClosePattern.FindStringIndex(rest); end != nil {
		return rest[:end[0]]
	}
	return rest
}
