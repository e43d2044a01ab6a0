package converter

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tagConversions maps HTML5 semantic tags to plain block elements the
// markdown renderer handles without surprises.
var tagConversions = map[string]string{
	"article":    "div",
	"section":    "div",
	"aside":      "div",
	"header":     "div",
	"footer":     "div",
	"figure":     "div",
	"figcaption": "p",
	"hgroup":     "div",
	"main":       "div",
}

// droppedElements never carry reading text.
var droppedElements = "script, style, nav, link, meta, object, embed, iframe, noscript, template"

// forbiddenAttrs lists attributes that should be removed from all elements.
var forbiddenAttrs = map[string]bool{
	"contenteditable": true,
	"draggable":       true,
	"hidden":          true,
	"spellcheck":      true,
	"translate":       true,
	"tabindex":        true,
	"onclick":         true,
	"onload":          true,
}

// Cleanup prepares a document body for markdown rendering: it drops
// non-text elements and print-only page breaks, folds HTML5 semantic tags
// into div/p (keeping the original tag name as a class), and strips data-*
// and editing attributes.
func Cleanup(doc *goquery.Document) {
	doc.Find(droppedElements).Remove()
	doc.Find(`[epub\:type~="pagebreak"], [role="doc-pagebreak"]`).Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" {
			s.Remove()
		}
	})

	tags := make([]string, 0, len(tagConversions))
	for tag := range tagConversions {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, origTag := range tags {
		newTag := tagConversions[origTag]
		doc.Find(origTag).Each(func(_ int, s *goquery.Selection) {
			if existing, _ := s.Attr("class"); existing != "" {
				s.SetAttr("class", existing+" "+origTag)
			} else {
				s.SetAttr("class", origTag)
			}
			s.Get(0).Data = newTag
		})
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		var toRemove []string
		for _, attr := range node.Attr {
			if forbiddenAttrs[attr.Key] || strings.HasPrefix(attr.Key, "data-") {
				toRemove = append(toRemove, attr.Key)
			}
		}
		for _, key := range toRemove {
			s.RemoveAttr(key)
		}
	})
}
