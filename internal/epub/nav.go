package epub

import (
	"path"
	"slices"
	"strings"
)

// navigationHints are basename fragments of table-of-contents documents.
var navigationHints = []string{"toc", "nav", "sommaire", "contents", "tdm"}

// IsNavigationPath reports whether a document path signals a navigation
// or table-of-contents document.
func IsNavigationPath(p string) bool {
	base := strings.ToLower(path.Base(p))
	if strings.HasSuffix(base, ".ncx") {
		return true
	}
	for _, hint := range navigationHints {
		if strings.Contains(base, hint) {
			return true
		}
	}
	return false
}

// NavigationDocuments returns the archive entries that are navigation
// documents: the NCX, the EPUB 3 nav item, and anything whose path looks
// like a table of contents. Archive order is preserved.
func NavigationDocuments(entries []Entry, opf *OPF) []Entry {
	var declared []string
	if opf != nil {
		if opf.NCXPath != "" {
			declared = append(declared, opf.NCXPath)
		}
		for _, id := range opf.ManifestOrder {
			if slices.Contains(opf.Manifest[id].Properties, "nav") {
				declared = append(declared, opf.Manifest[id].Href)
			}
		}
	}

	var docs []Entry
	for _, e := range entries {
		if e.IsDir || e.Data == nil {
			continue
		}
		if IsNavigationPath(e.Path) || slices.Contains(declared, e.Path) {
			docs = append(docs, e)
		}
	}
	return docs
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	path = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return path, fragment
}
