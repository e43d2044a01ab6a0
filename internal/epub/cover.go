package epub

import (
	"path"
	"slices"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover detects the cover image from the OPF manifest.
// Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" pointing directly at an image
//  4. image basename containing "cover" (SVG excluded)
//
// Returns nil if no cover image is found.
func (opf *OPF) DetectCover() *CoverInfo {
	found := func(item ManifestItem, method string) *CoverInfo {
		return &CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, DetectionMethod: method}
	}

	for _, id := range opf.ManifestOrder {
		if item := opf.Manifest[id]; slices.Contains(item.Properties, "cover-image") {
			return found(item, "properties")
		}
	}

	if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok && opf.Metadata.CoverID != "" {
		return found(item, "meta")
	}

	for _, ref := range opf.Guide {
		if ref.Type != "cover" {
			continue
		}
		href, _ := splitFragment(ref.Href)
		for _, id := range opf.ManifestOrder {
			if item := opf.Manifest[id]; isImageMediaType(item.MediaType) && item.Href == href {
				return found(item, "guide")
			}
		}
	}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if isImageMediaType(item.MediaType) && strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return found(item, "filename")
		}
	}

	return nil
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
