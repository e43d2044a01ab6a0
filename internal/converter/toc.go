package converter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuanying/epub2notes/internal/epub"
	"github.com/yuanying/epub2notes/internal/structure"
)

// BookInfo is the book-level metadata carried into every note.
type BookInfo struct {
	Title      string
	Author     string
	Language   string
	Publisher  string
	Identifier string
	Date       string
}

// BookInfoFrom extracts the note metadata from the package metadata.
func BookInfoFrom(md epub.Metadata) BookInfo {
	title := strings.TrimSpace(md.Title)
	if title == "" {
		title = "Untitled"
	}
	return BookInfo{
		Title:      title,
		Author:     md.Author(),
		Language:   md.Language,
		Publisher:  md.Publisher,
		Identifier: md.Identifier,
		Date:       md.Date,
	}
}

type indexFrontmatter struct {
	Title      string `yaml:"title"`
	Author     string `yaml:"author,omitempty"`
	Kind       string `yaml:"kind"`
	Language   string `yaml:"language,omitempty"`
	Publisher  string `yaml:"publisher,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`
	Date       string `yaml:"date,omitempty"`
	Cover      string `yaml:"cover,omitempty"`
	Chapters   int    `yaml:"chapters"`
	Parts      int    `yaml:"parts,omitempty"`
}

// BuildIndex renders the index note: book metadata as frontmatter, then a
// wiki-link to every note in reading order. Chapters of a multi-part book
// are nested under their part.
func BuildIndex(book BookInfo, notes []PlannedNote, cover string) ([]byte, error) {
	fm := indexFrontmatter{
		Title:      book.Title,
		Author:     book.Author,
		Kind:       "index",
		Language:   book.Language,
		Publisher:  book.Publisher,
		Identifier: book.Identifier,
		Date:       book.Date,
	}
	if cover != "" {
		fm.Cover = attachmentsDir + "/" + cover
	}
	var current *structure.Part
	for _, n := range notes {
		if n.Kind == KindChapter {
			fm.Chapters++
		}
		if n.Part != nil && (current == nil || *current != *n.Part) {
			fm.Parts++
			current = n.Part
		}
	}

	var b bytes.Buffer
	if err := writeFrontmatter(&b, fm); err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, "# %s\n\n", book.Title)
	if book.Author != "" {
		fmt.Fprintf(&b, "*%s*\n\n", book.Author)
	}
	if cover != "" {
		fmt.Fprintf(&b, "![cover](%s)\n\n", relativeLink(indexNote, fm.Cover))
	}

	current = nil
	for _, n := range notes {
		indent := ""
		if n.Part != nil {
			if current == nil || *current != *n.Part {
				fmt.Fprintf(&b, "- **%s**\n", partLabel(*n.Part))
				current = n.Part
			}
			indent = "  "
		} else {
			current = nil
		}
		fmt.Fprintf(&b, "%s- %s\n", indent, wikiLink(n))
	}
	return b.Bytes(), nil
}

// wikiLink links to a note by its path without the extension, showing the
// note label.
func wikiLink(n PlannedNote) string {
	target := strings.TrimSuffix(n.Path, ".md")
	label := strings.NewReplacer("|", "-", "[", "(", "]", ")").Replace(n.Label)
	return fmt.Sprintf("[[%s|%s]]", target, label)
}

// writeFrontmatter writes v as a YAML frontmatter block.
func writeFrontmatter(b *bytes.Buffer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n\n")
	return nil
}
