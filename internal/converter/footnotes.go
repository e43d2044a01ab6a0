package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noteRefSelector matches footnote references.
const noteRefSelector = `a[epub\:type~="noteref"], a.noteref, a[role="doc-noteref"]`

// noteSelector matches footnote containers.
const noteSelector = `aside[epub\:type~="footnote"], aside[epub\:type~="endnote"], aside[epub\:type~="rearnote"], ` +
	`div[epub\:type~="footnote"], div[epub\:type~="endnote"], div[epub\:type~="rearnote"], ` +
	`li[epub\:type~="footnote"], li[epub\:type~="endnote"], li[epub\:type~="rearnote"], ` +
	`.footnote, [role="doc-footnote"], [role="doc-endnote"]`

// noteLabelRe matches the number a note body usually starts with.
var noteLabelRe = regexp.MustCompile(`^\[?\(?\d+[\]).]?\s*`)

// noteTokenRe matches the placeholders left in the markup for references.
var noteTokenRe = regexp.MustCompile(`zzfnref(\d+)zz`)

// noteResolver returns the parsed document a note reference points into.
// An empty path means the segment's own source document.
type noteResolver func(docPath string) *goquery.Document

// footnotes collects the notes referenced from one segment.
type footnotes struct {
	defs   []string
	labels map[string]int
}

// extractFootnotes replaces every note reference in doc with a placeholder
// token and records the note text. Referenced notes found in doc itself are
// removed from it. References whose note cannot be found keep their text.
func extractFootnotes(doc *goquery.Document, resolve noteResolver) *footnotes {
	f := &footnotes{labels: map[string]int{}}
	var consumed []*goquery.Selection

	doc.Find(noteRefSelector).Each(func(_ int, ref *goquery.Selection) {
		href, _ := ref.Attr("href")
		docPath, id, ok := strings.Cut(href, "#")
		if !ok || id == "" {
			return
		}

		label, seen := f.labels[href]
		if !seen {
			note, local := findNote(doc, id), true
			if note == nil && resolve != nil {
				if other := resolve(docPath); other != nil {
					note, local = findNote(other, id), false
				}
			}
			if note == nil {
				return
			}
			text := noteText(note)
			if text == "" {
				return
			}
			f.defs = append(f.defs, text)
			label = len(f.defs)
			f.labels[href] = label
			if local {
				consumed = append(consumed, note)
			}
		}
		ref.ReplaceWithHtml(fmt.Sprintf("zzfnref%dzz", label))
	})

	for _, note := range consumed {
		note.Remove()
	}
	return f
}

// findNote locates the note body with the given id. An id on an anchor or
// span inside the note resolves to the enclosing note container, or failing
// that the enclosing paragraph.
func findNote(doc *goquery.Document, id string) *goquery.Selection {
	target := doc.Find(`[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`).First()
	if target.Length() == 0 {
		return nil
	}
	if target.Is(noteSelector) {
		return target
	}
	if note := target.Closest(noteSelector); note.Length() > 0 {
		return note
	}
	switch goquery.NodeName(target) {
	case "a", "span", "sup":
		if block := target.Closest("p, li, div"); block.Length() > 0 {
			return block
		}
	}
	return target
}

// noteText flattens a note to one line, dropping the back-link and the
// leading note number.
func noteText(note *goquery.Selection) string {
	clone := note.Clone()
	clone.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if isNoteLabel(a.Text()) {
			a.Remove()
		}
	})
	text := strings.Join(strings.Fields(clone.Text()), " ")
	return strings.TrimSpace(noteLabelRe.ReplaceAllString(text, ""))
}

func isNoteLabel(text string) bool {
	text = strings.Trim(strings.TrimSpace(text), "[]().")
	_, err := strconv.Atoi(text)
	return err == nil || text == "↩" || text == "^"
}

// finish swaps the placeholders in rendered markdown for [^N] references and
// appends the definitions.
func (f *footnotes) finish(markdown string) string {
	markdown = noteTokenRe.ReplaceAllString(markdown, "[^$1]")
	if len(f.defs) == 0 {
		return markdown
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(markdown, "\n"))
	sb.WriteString("\n\n")
	for i, def := range f.defs {
		fmt.Fprintf(&sb, "[^%d]: %s\n", i+1, def)
	}
	return sb.String()
}
