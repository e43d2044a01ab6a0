package converter

import (
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NoteLinks maps archive documents to the notes rendering them, so that
// cross-references inside the book survive as links between notes.
type NoteLinks struct {
	notes map[string]string // archive path -> note path relative to the book directory
}

// NewNoteLinks creates an empty link table.
func NewNoteLinks() *NoteLinks {
	return &NoteLinks{notes: make(map[string]string)}
}

// Add records that docPath is rendered by notePath. When a document is
// split into several notes, the first one wins.
func (l *NoteLinks) Add(docPath, notePath string) {
	if _, exists := l.notes[docPath]; !exists {
		l.notes[docPath] = notePath
	}
}

// Lookup returns the note rendering docPath, falling back to a document
// with the same file name.
func (l *NoteLinks) Lookup(docPath string) (string, bool) {
	if note, ok := l.notes[docPath]; ok {
		return note, true
	}
	filename := path.Base(docPath)
	paths := make([]string, 0, len(l.notes))
	for p := range l.notes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		if path.Base(p) == filename {
			return l.notes[p], true
		}
	}
	return "", false
}

// ResolveLinks rewrites internal links inside body for the note at notePath
// rendered from docPath. Links to documents with a note become relative
// links to that note. Fragment-only links and links to documents without a
// note are unwrapped to their text, since element ids do not survive.
// Absolute URLs are left alone.
func (l *NoteLinks) ResolveLinks(body *goquery.Selection, docPath, notePath string) {
	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			unwrap(s)
			return
		}
		if u.IsAbs() || u.Scheme != "" {
			return
		}
		if u.Path == "" {
			unwrap(s)
			return
		}

		target, ok := l.Lookup(path.Clean(path.Join(path.Dir(docPath), u.Path)))
		if !ok || target == notePath {
			unwrap(s)
			return
		}
		s.SetAttr("href", relativeLink(notePath, target))
		s.RemoveAttr("id")
	})
}

// unwrap replaces an element with its children.
func unwrap(s *goquery.Selection) {
	if s.Contents().Length() == 0 {
		s.Remove()
		return
	}
	s.Contents().Unwrap()
}

// relativeLink returns the URL-escaped path of target relative to the
// directory of the note at from. Both are slash-separated and relative to
// the book directory.
func relativeLink(from, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(from)), filepath.FromSlash(target))
	if err != nil {
		rel = target
	}
	u := url.URL{Path: filepath.ToSlash(rel)}
	return strings.TrimPrefix(u.EscapedPath(), "./")
}
