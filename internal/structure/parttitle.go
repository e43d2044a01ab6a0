package structure

import (
	"bytes"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epub2notes/internal/epub"
)

var partLinkPattern = regexp.MustCompile(`(?i)^(?:partie|part)\s+(\d+|[ivxlcdm]+)\s*[.:\-–—]\s*(.+)$`)

// ResolvePartTitles scans navigation documents for "Partie N. Title" link
// texts. A part number seen twice keeps the last title found.
func ResolvePartTitles(navDocs []epub.Entry) PartTitleMap {
	titles := PartTitleMap{}
	for _, d := range navDocs {
		if d.IsDir || len(d.Data) == 0 {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.Data))
		if err != nil {
			continue
		}
		// NCX labels parse as <navlabel><text>; XHTML navs use anchors.
		doc.Find("a, navlabel").Each(func(_ int, s *goquery.Selection) {
			m := partLinkPattern.FindStringSubmatch(collapse(s.Text()))
			if m == nil {
				return
			}
			n := parseNumeral(m[1])
			title := trimTitle(m[2])
			if n > 0 && title != "" {
				titles[n] = title
			}
		})
	}
	return titles
}
