package structure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epub2notes/internal/epub"
)

// Options tunes Analyze and Classify. The zero value is usable.
type Options struct {
	// Workers bounds concurrent fingerprinting; 0 means GOMAXPROCS.
	Workers int
	// Logger receives warnings for unresolvable documents; nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Analyze fingerprints every spine entry. Results keep spine order whatever
// the order in which workers finish. A missing or undecodable document gets
// an empty fingerprint and a warning.
func Analyze(ctx context.Context, spine []epub.SpineEntry, src Source, parts PartTitleMap, opts Options) ([]AnalyzedItem, error) {
	logger := opts.logger()
	items := make([]AnalyzedItem, len(spine))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, entry := range spine {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := AnalyzedItem{SpineEntry: entry, Index: i, Fingerprint: Fingerprint{Patterns: TagSet{}}}
			data, ok := src.Lookup(entry.Href)
			if !ok {
				logger.Warn("spine document not found", "id", entry.ID, "href", entry.Href)
				items[i] = item
				return nil
			}
			markup, err := DecodeMarkup(data)
			if err != nil {
				logger.Warn("spine document is not text", "id", entry.ID, "href", entry.Href, "error", err)
				items[i] = item
				return nil
			}
			item.Fingerprint = Extract(markup, entry.Href, parts)
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// DecodeMarkup returns data as UTF-8, transcoding legacy encodings declared
// by a BOM or a meta charset.
func DecodeMarkup(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if !utf8.Valid(out) {
		return nil, fmt.Errorf("invalid text encoding")
	}
	return out, nil
}
