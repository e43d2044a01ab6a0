package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content represents a parsed XHTML content file
type Content struct {
	ID        string            // Manifest ID
	Path      string            // File path
	Document  *goquery.Document // Parsed HTML document
	CSSLinks  []string          // Referenced CSS file paths
	ImageRefs []string          // Referenced image paths
}

// LoadContent loads and parses an XHTML content file
// id: manifest item ID
// path: file path within EPUB (used for relative path resolution)
// content: XHTML file content
func LoadContent(id, docPath string, content []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{
		ID:        id,
		Path:      docPath,
		Document:  doc,
		CSSLinks:  []string{},
		ImageRefs: []string{},
	}

	baseDir := path.Dir(docPath)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			c.CSSLinks = append(c.CSSLinks, ResolvePath(baseDir, href))
		}
	})

	// <img src> and SVG-wrapped <image xlink:href> both occur in the wild
	doc.Find("img, image").Each(func(i int, s *goquery.Selection) {
		if src := ImageSource(s); src != "" {
			c.ImageRefs = append(c.ImageRefs, ResolvePath(baseDir, src))
		}
	})

	return c, nil
}

// ImageSource returns the referenced image path of an <img> or SVG <image>.
func ImageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "xlink:href", "href"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// ResolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func ResolvePath(baseDir, relPath string) string {
	relPath, _ = splitFragment(relPath)
	if strings.HasPrefix(relPath, "/") {
		return strings.TrimPrefix(path.Clean(relPath), "/")
	}
	return path.Clean(path.Join(baseDir, relPath))
}
