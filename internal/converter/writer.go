package converter

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/yuanying/epub2notes/internal/structure"
)

// NoteKind names where a note sits in the book.
type NoteKind string

const (
	KindFrontMatter NoteKind = "front-matter"
	KindPrologue    NoteKind = "prologue"
	KindChapter     NoteKind = "chapter"
	KindEpilogue    NoteKind = "epilogue"
	KindBackMatter  NoteKind = "back-matter"
)

const (
	attachmentsDir = "attachments"
	indexNote      = "index.md"
	maxSlugRunes   = 80
)

// PlannedNote is one note of the output before rendering.
type PlannedNote struct {
	Kind    NoteKind
	Order   int
	Label   string
	Segment structure.Segment
	Chapter int
	Part    *structure.Part
	Body    string // inline markup for split chapters
	Path    string // slash-separated, relative to the book directory
}

// PlanNotes lays out the classified segments as notes: front matter,
// prologue, chapters, epilogue, then back matter, numbered by one running
// order counter.
func PlanNotes(c *structure.Classification) []PlannedNote {
	var notes []PlannedNote
	add := func(n PlannedNote) {
		n.Order = len(notes) + 1
		name := fmt.Sprintf("%03d %s.md", n.Order, Slug(n.Label))
		if n.Part != nil {
			name = path.Join(Slug(partLabel(*n.Part)), name)
		}
		n.Path = name
		notes = append(notes, n)
	}

	for i, s := range c.FrontMatter {
		add(PlannedNote{Kind: KindFrontMatter, Label: matterLabel(s.Title, "Front Matter", i+1), Segment: s})
	}
	if c.Prologue != nil {
		add(PlannedNote{Kind: KindPrologue, Label: matterLabel(c.Prologue.Title, "Prologue", 0), Segment: *c.Prologue})
	}
	for _, ch := range c.Chapters {
		add(PlannedNote{
			Kind:    KindChapter,
			Label:   chapterLabel(ch.Number, ch.Title),
			Segment: ch.Segment,
			Chapter: ch.Number,
			Part:    ch.Part,
			Body:    ch.Body,
		})
	}
	if c.Epilogue != nil {
		add(PlannedNote{Kind: KindEpilogue, Label: matterLabel(c.Epilogue.Title, "Epilogue", 0), Segment: *c.Epilogue})
	}
	for i, s := range c.BackMatter {
		add(PlannedNote{Kind: KindBackMatter, Label: matterLabel(s.Title, "Back Matter", i+1), Segment: s})
	}
	return notes
}

func matterLabel(title, fallback string, n int) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if n == 0 {
		return fallback
	}
	return fmt.Sprintf("%s %d", fallback, n)
}

// numberOnlyRe matches titles that carry nothing beyond a chapter number.
var numberOnlyRe = regexp.MustCompile(`(?i)^(?:(?:chapitre|chapter|chap\.?)\s*)?(?:\d+|m{0,4}(?:cm|cd|d?c{0,3})(?:xc|xl|l?x{0,3})(?:ix|iv|v?i{0,3}))\s*[.:)\-]?$`)

func chapterLabel(number int, title string) string {
	title = strings.TrimSpace(title)
	if title == "" || title == strconv.Itoa(number) || numberOnlyRe.MatchString(title) {
		return fmt.Sprintf("Chapter %d", number)
	}
	return fmt.Sprintf("Chapter %d - %s", number, title)
}

func partLabel(p structure.Part) string {
	placeholder := fmt.Sprintf("Part %d", p.Number)
	if p.Title == "" || p.Title == placeholder {
		return placeholder
	}
	return fmt.Sprintf("%s - %s", placeholder, p.Title)
}

// Slug makes a title safe as a file name: letters of any script, digits,
// spaces, '-' and '_' are kept, other runes are dropped, whitespace is
// collapsed and the result is capped in length.
func Slug(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	slug := strings.Join(strings.Fields(sb.String()), " ")
	if runes := []rune(slug); len(runes) > maxSlugRunes {
		slug = strings.TrimSpace(string(runes[:maxSlugRunes]))
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// Writer puts rendered notes and attachments under one book directory.
type Writer struct {
	Fs     afero.Fs
	Dir    string
	DryRun bool
	Logger *slog.Logger
}

// WriteFile writes one file relative to the book directory and returns its
// full path. In dry-run mode nothing is written.
func (w *Writer) WriteFile(rel string, data []byte) (string, error) {
	full := filepath.Join(w.Dir, filepath.FromSlash(rel))
	if w.DryRun {
		w.Logger.Info("would write", "path", full, "bytes", len(data))
		return full, nil
	}
	if err := w.Fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := afero.WriteFile(w.Fs, full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	w.Logger.Debug("wrote note file", "path", full, "bytes", len(data))
	return full, nil
}

// WriteAttachments writes exported images into the attachments directory.
func (w *Writer) WriteAttachments(files []Attachment) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		full, err := w.WriteFile(path.Join(attachmentsDir, f.Name), f.Data)
		if err != nil {
			return written, err
		}
		written = append(written, full)
	}
	return written, nil
}
