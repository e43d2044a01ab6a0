package converter

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"path"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epub2notes/internal/epub"
	"github.com/yuanying/epub2notes/internal/structure"
)

// noteFrontmatter is the YAML block at the top of every segment note.
type noteFrontmatter struct {
	Title     string   `yaml:"title"`
	Book      string   `yaml:"book"`
	Author    string   `yaml:"author,omitempty"`
	Kind      NoteKind `yaml:"kind"`
	Order     int      `yaml:"order"`
	Chapter   int      `yaml:"chapter,omitempty"`
	Part      int      `yaml:"part,omitempty"`
	PartTitle string   `yaml:"part_title,omitempty"`
	Source    string   `yaml:"source"`
}

// Renderer turns planned notes into markdown documents.
type Renderer struct {
	entries     []epub.Entry
	book        BookInfo
	links       *NoteLinks
	attachments *Attachments // nil drops images
	md          *htmlmd.Converter
	logger      *slog.Logger

	sources map[string]*goquery.Document // read-only parsed archive documents
	styles  map[string]ClassStyles       // stylesheet path -> parsed classes
}

// NewRenderer creates a renderer. Links between notes are resolved through
// links; images are exported through attachments, or removed when it is nil.
func NewRenderer(entries []epub.Entry, book BookInfo, links *NoteLinks, attachments *Attachments, logger *slog.Logger) *Renderer {
	return &Renderer{
		entries:     entries,
		book:        book,
		links:       links,
		attachments: attachments,
		md: htmlmd.NewConverter(
			htmlmd.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger:  logger,
		sources: make(map[string]*goquery.Document),
		styles:  make(map[string]ClassStyles),
	}
}

// Render produces the markdown note for n, frontmatter included. A source
// document that is missing or fails to convert yields a note with
// frontmatter and title only.
func (r *Renderer) Render(n PlannedNote) ([]byte, error) {
	docPath, found := epub.FindEntryPath(r.entries, n.Segment.Href)
	if !found {
		docPath = stripFragment(n.Segment.Href)
	}

	var markup string
	switch {
	case n.Body != "":
		markup = "<html><body>" + n.Body + "</body></html>"
	case found:
		source := r.source(docPath)
		if source == nil {
			r.logger.Warn("document could not be decoded; writing an empty note", "href", n.Segment.Href)
			break
		}
		var err error
		if markup, err = goquery.OuterHtml(source.Selection); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", docPath, err)
		}
	default:
		r.logger.Warn("document not found; writing an empty note", "href", n.Segment.Href)
	}

	body := ""
	if markup != "" {
		converted, err := r.convert(n, docPath, markup)
		if err != nil {
			r.logger.Warn("conversion failed; writing an empty note", "href", n.Segment.Href, "err", err)
		}
		body = converted
	}

	var b bytes.Buffer
	if err := writeFrontmatter(&b, r.frontmatter(n, docPath)); err != nil {
		return nil, err
	}
	if !startsWithHeading(body) {
		fmt.Fprintf(&b, "# %s\n\n", n.Label)
	}
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

func (r *Renderer) frontmatter(n PlannedNote, docPath string) noteFrontmatter {
	fm := noteFrontmatter{
		Title:   n.Label,
		Book:    r.book.Title,
		Author:  r.book.Author,
		Kind:    n.Kind,
		Order:   n.Order,
		Chapter: n.Chapter,
		Source:  docPath,
	}
	if n.Part != nil {
		fm.Part = n.Part.Number
		fm.PartTitle = n.Part.Title
	}
	return fm
}

// convert runs the markup through the cleanup passes and the markdown
// converter.
func (r *Renderer) convert(n PlannedNote, docPath, markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", docPath, err)
	}

	notes := extractFootnotes(doc, func(target string) *goquery.Document {
		if target == "" {
			return r.source(docPath)
		}
		return r.source(epub.ResolvePath(path.Dir(docPath), target))
	})
	body := doc.Find("body")
	r.links.ResolveLinks(body, docPath, n.Path)
	r.rewriteImages(body, docPath, n.Path)

	styles := r.classStyles(docPath)
	Cleanup(doc)
	ApplyClassStyles(doc, styles)

	inner, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s: %w", docPath, err)
	}
	md, err := r.md.ConvertString(inner)
	if err != nil {
		return "", fmt.Errorf("failed to convert %s to markdown: %w", docPath, err)
	}
	return notes.finish(strings.TrimSpace(md)), nil
}

// rewriteImages points images at their exported attachment, or removes them
// when images are disabled or missing. SVG-wrapped images become plain img
// elements so the markdown converter sees them.
func (r *Renderer) rewriteImages(body *goquery.Selection, docPath, notePath string) {
	body.Find("img, image").Each(func(_ int, s *goquery.Selection) {
		target := s
		if goquery.NodeName(s) == "image" {
			if svg := s.Closest("svg"); svg.Length() > 0 {
				target = svg
			}
		}

		src := epub.ImageSource(s)
		if r.attachments == nil || src == "" || strings.HasPrefix(src, "data:") {
			target.Remove()
			return
		}
		name, ok := r.attachments.Attach(epub.ResolvePath(path.Dir(docPath), src), "", false)
		if !ok {
			target.Remove()
			return
		}

		link := relativeLink(notePath, attachmentsDir+"/"+name)
		if target != s || goquery.NodeName(s) == "image" {
			alt, _ := s.Attr("alt")
			target.ReplaceWithHtml(fmt.Sprintf(`<img src="%s" alt="%s"/>`, html.EscapeString(link), html.EscapeString(alt)))
			return
		}
		s.SetAttr("src", link)
		s.RemoveAttr("srcset")
	})
}

// source returns the parsed archive document at docPath, decoding legacy
// encodings. Callers must not modify it.
func (r *Renderer) source(docPath string) *goquery.Document {
	if doc, ok := r.sources[docPath]; ok {
		return doc
	}
	var doc *goquery.Document
	if data, ok := epub.FindEntry(r.entries, docPath); ok {
		if markup, err := structure.DecodeMarkup(data); err != nil {
			r.logger.Warn("undecodable document", "href", docPath, "err", err)
		} else if parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(markup)); err == nil {
			doc = parsed
		}
	}
	r.sources[docPath] = doc
	return doc
}

// classStyles collects the emphasis classes of the stylesheets a document
// links and embeds.
func (r *Renderer) classStyles(docPath string) ClassStyles {
	styles := ClassStyles{}
	source := r.source(docPath)
	if source == nil {
		return styles
	}

	source.Find("style").Each(func(_ int, s *goquery.Selection) {
		styles.Merge(ParseClassStyles(s.Text()))
	})
	source.Find("link[rel~='stylesheet'], link[type='text/css']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		sheetPath := epub.ResolvePath(path.Dir(docPath), href)
		sheet, ok := r.styles[sheetPath]
		if !ok {
			if data, found := epub.FindEntry(r.entries, sheetPath); found {
				sheet = ParseClassStyles(string(data))
			} else {
				r.logger.Debug("stylesheet not found", "href", sheetPath)
			}
			r.styles[sheetPath] = sheet
		}
		styles.Merge(sheet)
	})
	return styles
}

func startsWithHeading(md string) bool {
	return strings.HasPrefix(md, "#")
}
