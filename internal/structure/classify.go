package structure

import (
	"errors"
	"slices"
)

// ErrNoSpine is returned when there is nothing to classify.
var ErrNoSpine = errors.New("no spine documents to classify")

// Classify reconstructs the book structure from analyzed items. Items are
// taken in Index order regardless of the order they are passed in; the
// same input always yields the same Classification.
func Classify(items []AnalyzedItem, src Source, parts PartTitleMap, opts Options) (*Classification, error) {
	if len(items) == 0 {
		return nil, ErrNoSpine
	}
	logger := opts.logger()

	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b AnalyzedItem) int {
		return a.Index - b.Index
	})

	b := splitBoundaries(ordered)
	c := &Classification{}
	for _, it := range b.front {
		c.FrontMatter = append(c.FrontMatter, segmentOf(it))
	}
	for _, it := range b.back {
		c.BackMatter = append(c.BackMatter, segmentOf(it))
	}
	if b.prologue != nil {
		s := segmentOf(*b.prologue)
		c.Prologue = &s
	}
	if b.epilogue != nil {
		s := segmentOf(*b.epilogue)
		c.Epilogue = &s
	}
	for _, it := range b.dropped {
		logger.Debug("dropping section separator", "href", it.Href, "title", it.Title)
	}

	a := &assembler{src: src, parts: parts, logger: logger}
	if isMultipart(b.main) {
		c.Multipart = true
		c.Chapters = a.multiPart(b.main)
	} else {
		c.Chapters = a.singlePart(b.main)
	}

	logger.Info("classified book structure",
		"front_matter", len(c.FrontMatter),
		"chapters", len(c.Chapters),
		"parts", len(c.Parts()),
		"back_matter", len(c.BackMatter),
		"prologue", c.Prologue != nil,
		"epilogue", c.Epilogue != nil,
	)
	return c, nil
}
