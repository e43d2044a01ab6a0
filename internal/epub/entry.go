package epub

import (
	"net/url"
	"strings"
)

// Entry is one archive member, materialized.
type Entry struct {
	Path  string
	Data  []byte
	IsDir bool
}

// FindEntry resolves an href (spine href, internal link, image src) to the
// bytes of an archived document. Package-internal paths may carry an extra
// prefix, so matching falls back from exact, to path suffix, to substring.
// The first match in archive order wins.
func FindEntry(entries []Entry, href string) ([]byte, bool) {
	e, ok := findEntry(entries, href)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// FindEntryPath is FindEntry but reports the matched archive path.
func FindEntryPath(entries []Entry, href string) (string, bool) {
	e, ok := findEntry(entries, href)
	if !ok {
		return "", false
	}
	return e.Path, true
}

func findEntry(entries []Entry, href string) (Entry, bool) {
	target, _ := splitFragment(href)
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	target = normalizePath(strings.TrimPrefix(target, "/"))
	if target == "" {
		return Entry{}, false
	}

	for _, e := range entries {
		if !e.IsDir && e.Path == target {
			return e, true
		}
	}
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Path, "/"+target) {
			return e, true
		}
	}
	for _, e := range entries {
		if !e.IsDir && strings.Contains(e.Path, target) {
			return e, true
		}
	}
	return Entry{}, false
}
