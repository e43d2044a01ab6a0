package converter

import (
	"strings"

	"github.com/yuanying/epub2notes/internal/epub"
)

// FindCover detects the cover image. The package's own declarations win;
// failing those, the first image of the cover page the guide points at is
// used.
func FindCover(opf *epub.OPF, entries []epub.Entry) *epub.CoverInfo {
	if opf == nil {
		return nil
	}
	if info := opf.DetectCover(); info != nil {
		return info
	}
	return coverFromGuidePage(opf, entries)
}

func coverFromGuidePage(opf *epub.OPF, entries []epub.Entry) *epub.CoverInfo {
	for _, ref := range opf.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		pagePath := stripFragment(ref.Href)
		if pagePath == "" {
			continue
		}

		page, known := findManifestByHref(opf, pagePath)
		if known && !strings.Contains(page.MediaType, "html") {
			continue
		}
		if !known && !looksLikeXHTML(pagePath) {
			continue
		}

		data, ok := epub.FindEntry(entries, pagePath)
		if !ok {
			continue
		}
		content, err := epub.LoadContent(page.ID, pagePath, data)
		if err != nil || len(content.ImageRefs) == 0 {
			continue
		}

		first := content.ImageRefs[0]
		if item, ok := findManifestByHref(opf, first); ok {
			return &epub.CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, DetectionMethod: "guide-page"}
		}
		return &epub.CoverInfo{Href: first, MediaType: mediaTypeFromExt(first), DetectionMethod: "guide-page"}
	}
	return nil
}

func findManifestByHref(opf *epub.OPF, href string) (epub.ManifestItem, bool) {
	target := stripFragment(href)
	for _, id := range opf.ManifestOrder {
		if item := opf.Manifest[id]; stripFragment(item.Href) == target {
			return item, true
		}
	}
	return epub.ManifestItem{}, false
}

func stripFragment(href string) string {
	pathPart, _, _ := strings.Cut(href, "#")
	return pathPart
}

func looksLikeXHTML(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}
