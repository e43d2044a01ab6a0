package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yuanying/epub2notes/internal/epub"
	"github.com/yuanying/epub2notes/internal/structure"
)

// ErrNoContent is returned when classification leaves nothing to write.
var ErrNoContent = errors.New("no content to convert")

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	InputPath string
	// OutputDir receives the book directory; empty means the input's directory.
	OutputDir string
	// Logger receives progress and per-document warnings; nil means slog.Default().
	Logger *slog.Logger
	// Fs is where notes are written; nil means the OS filesystem.
	Fs afero.Fs

	Strict            bool // mimetype problems are fatal
	NoImages          bool
	MaxImageWidth     int
	JPEGQuality       int
	MaxImageSizeBytes int
	Workers           int // 0 means GOMAXPROCS
	DryRun            bool
}

// Pipeline orchestrates the EPUB to markdown notes conversion.
type Pipeline struct {
	Options ConvertOptions
	logger  *slog.Logger
}

// Book is an opened EPUB with its classified structure.
type Book struct {
	Info      BookInfo
	OPF       *epub.OPF
	Entries   []epub.Entry
	Structure *structure.Classification
}

// Result describes what a conversion wrote (or would write, in dry-run mode).
type Result struct {
	Dir         string
	Notes       []string
	Attachments []string
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Pipeline{Options: opts, logger: logger}
}

// Classify opens the EPUB and classifies its spine without writing anything.
func (p *Pipeline) Classify(ctx context.Context) (*structure.Classification, error) {
	book, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return book.Structure, nil
}

// Convert executes the conversion pipeline. Every note is rendered before
// the first file is written, so a fatal error leaves no partial output.
func (p *Pipeline) Convert(ctx context.Context) (*Result, error) {
	book, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}

	notes := PlanNotes(book.Structure)
	if len(notes) == 0 {
		return nil, ErrNoContent
	}

	links := NewNoteLinks()
	for _, n := range notes {
		docPath, ok := epub.FindEntryPath(book.Entries, n.Segment.Href)
		if !ok {
			docPath = stripFragment(n.Segment.Href)
		}
		links.Add(docPath, n.Path)
	}

	var attachments *Attachments
	var coverName string
	if !p.Options.NoImages {
		attachments = NewAttachments(book.Entries, NewImageOptimizer(p.Options), p.logger)
		if cover := FindCover(book.OPF, book.Entries); cover != nil {
			p.logger.Debug("cover detected", "href", cover.Href, "method", cover.DetectionMethod)
			coverName, _ = attachments.Attach(cover.Href, cover.MediaType, true)
		}
	}

	renderer := NewRenderer(book.Entries, book.Info, links, attachments, p.logger)
	rendered := make([][]byte, len(notes))
	for i, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := renderer.Render(n)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", n.Path, err)
		}
		rendered[i] = data
	}

	index, err := BuildIndex(book.Info, notes, coverName)
	if err != nil {
		return nil, err
	}

	outputDir := p.Options.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(p.Options.InputPath)
	}
	w := &Writer{
		Fs:     p.Options.Fs,
		Dir:    filepath.Join(outputDir, Slug(book.Info.Title)),
		DryRun: p.Options.DryRun,
		Logger: p.logger,
	}

	result := &Result{Dir: w.Dir}
	for i, n := range notes {
		full, err := w.WriteFile(n.Path, rendered[i])
		if err != nil {
			return nil, err
		}
		result.Notes = append(result.Notes, full)
	}
	full, err := w.WriteFile(indexNote, index)
	if err != nil {
		return nil, err
	}
	result.Notes = append(result.Notes, full)

	if attachments != nil {
		if result.Attachments, err = w.WriteAttachments(attachments.Files()); err != nil {
			return nil, err
		}
	}

	p.logger.Info("conversion complete",
		"title", book.Info.Title,
		"dir", result.Dir,
		"notes", len(result.Notes),
		"attachments", len(result.Attachments),
		"dry_run", p.Options.DryRun)
	return result, nil
}

// Load opens the EPUB, fingerprints its spine and classifies it.
func (p *Pipeline) Load(ctx context.Context) (*Book, error) {
	reader, err := epub.Open(p.Options.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer reader.Close()

	if err := reader.ValidateMimetype(); err != nil {
		if p.Options.Strict {
			return nil, fmt.Errorf("invalid EPUB: %w", err)
		}
		p.logger.Warn("mimetype check failed", "err", err)
	}

	entries, err := reader.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	opf, err := reader.ReadOPF()
	if err != nil {
		return nil, fmt.Errorf("failed to parse OPF: %w", err)
	}

	spine, unresolved := opf.SpineEntries()
	for _, id := range unresolved {
		p.logger.Warn("spine item not found in manifest, skipping", "idref", id)
	}

	parts := structure.ResolvePartTitles(epub.NavigationDocuments(entries, opf))
	src := structure.SourceFunc(func(href string) ([]byte, bool) {
		return epub.FindEntry(entries, href)
	})
	opts := structure.Options{Workers: p.Options.Workers, Logger: p.logger}

	items, err := structure.Analyze(ctx, spine, src, parts, opts)
	if err != nil {
		return nil, err
	}
	classification, err := structure.Classify(items, src, parts, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to classify %s: %w", p.Options.InputPath, err)
	}

	return &Book{
		Info:      BookInfoFrom(opf.Metadata),
		OPF:       opf,
		Entries:   entries,
		Structure: classification,
	}, nil
}
