package structure

var (
	frontDisqualifiers = []Tag{TagTitlePage, TagCopyright, TagEpigraph, TagTOC, TagDedication, TagImageHeavy}
	backDisqualifiers  = []Tag{TagEpilogue, TagAcknowledgment, TagBibliography, TagIndex, TagThanks, TagReferences}
)

// boundaries is the outcome of the boundary pass. Main holds what is left
// for the chapter assembler, in spine order.
type boundaries struct {
	front    []AnalyzedItem
	prologue *AnalyzedItem
	main     []AnalyzedItem
	epilogue *AnalyzedItem
	back     []AnalyzedItem
	// dropped are label-only separators consumed without producing a section.
	dropped []AnalyzedItem
}

// splitBoundaries partitions items into front matter, main content and back
// matter, then resolves the prologue and epilogue inside main content.
func splitBoundaries(items []AnalyzedItem) boundaries {
	var b boundaries
	if len(items) == 0 {
		return b
	}
	start := mainContentStart(items)
	end := mainContentEnd(items, start)

	b.front = items[:start]
	b.back = items[end+1:]
	main := items[start : end+1]

	var removed []int
	b.prologue, removed = resolvePrologue(main)
	main = without(main, removed)
	b.dropped = append(b.dropped, pick(items, removed, b.prologue)...)

	b.epilogue, removed = resolveEpilogue(main)
	main = without(main, removed)
	b.dropped = append(b.dropped, pick(items, removed, b.epilogue)...)

	b.main = main
	return b
}

func mainContentStart(items []AnalyzedItem) int {
	for i := 0; i < min(frontScanWindow, len(items)); i++ {
		it := items[i]
		if it.HasAny(TagPrologue, TagPrologueHeader) {
			return i
		}
		if it.HasSubstantialText() && it.WordCount > mainContentWords && !it.HasAny(frontDisqualifiers...) {
			return i
		}
	}
	return 0
}

// mainContentEnd scans backwards down to start. An item tagged epilogue
// stops the scan and stays in main content so that epilogue resolution can
// see it.
func mainContentEnd(items []AnalyzedItem, start int) int {
	n := len(items)
	for i := n - 1; i >= max(n-backScanWindow, start); i-- {
		it := items[i]
		if it.HasAny(TagEpilogue, TagEpilogueHeader) {
			return i
		}
		if it.HasSubstantialText() && it.WordCount > mainContentWords && !it.HasAny(backDisqualifiers...) {
			return i
		}
	}
	return n - 1
}

// resolvePrologue looks at the first edgeWindow main-content items. It
// returns the prologue, if any, and the indexes to remove from main content.
func resolvePrologue(main []AnalyzedItem) (*AnalyzedItem, []int) {
	window := min(edgeWindow, len(main))
	for i := 0; i < window; i++ {
		if !main[i].Has(TagPrologueHeader) {
			continue
		}
		return pairHeader(main, i, TagPrologue)
	}
	for i := 0; i < window; i++ {
		if main[i].Has(TagPrologue) {
			p := relabel(main[i], "Prologue")
			return &p, []int{main[i].Index}
		}
	}
	return nil, nil
}

// resolveEpilogue mirrors resolvePrologue on the last edgeWindow items. The
// plain-tag fallback only considers the last item.
func resolveEpilogue(main []AnalyzedItem) (*AnalyzedItem, []int) {
	for i := max(0, len(main)-edgeWindow); i < len(main); i++ {
		if !main[i].Has(TagEpilogueHeader) {
			continue
		}
		return pairHeader(main, i, TagEpilogue)
	}
	if len(main) > 0 && main[len(main)-1].Has(TagEpilogue) {
		last := main[len(main)-1]
		e := relabel(last, "Epilogue")
		return &e, []int{last.Index}
	}
	return nil, nil
}

// pairHeader treats main[i] as a separator. The following item becomes the
// section when it carries prose; otherwise the header stands alone if it is
// substantial, or is dropped.
func pairHeader(main []AnalyzedItem, i int, tag Tag) (*AnalyzedItem, []int) {
	label := "Prologue"
	if tag == TagEpilogue {
		label = "Epilogue"
	}
	header := main[i]
	if i+1 < len(main) && main[i+1].WordCount > proseWords {
		s := relabel(main[i+1], label)
		return &s, []int{header.Index, main[i+1].Index}
	}
	if header.HasSubstantialText() {
		s := relabel(header, label)
		return &s, []int{header.Index}
	}
	return nil, []int{header.Index}
}

func relabel(it AnalyzedItem, title string) AnalyzedItem {
	it.Title = title
	return it
}

// without returns items minus those whose Index is listed.
func without(items []AnalyzedItem, indexes []int) []AnalyzedItem {
	if len(indexes) == 0 {
		return items
	}
	skip := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		skip[i] = true
	}
	out := make([]AnalyzedItem, 0, len(items))
	for _, it := range items {
		if !skip[it.Index] {
			out = append(out, it)
		}
	}
	return out
}

// pick returns the items named by indexes that did not become kept.
func pick(items []AnalyzedItem, indexes []int, kept *AnalyzedItem) []AnalyzedItem {
	var out []AnalyzedItem
	for _, idx := range indexes {
		if kept != nil && kept.Index == idx {
			continue
		}
		for _, it := range items {
			if it.Index == idx {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
