// Test program for spine fingerprinting and structure classification
//
// Usage:
//
//	go run ./cmd/test/fingerprint/main.go <epub-file-path>
//
// This program prints, for every spine document:
// - Word count and resolved title
// - Chapter and part numbers found in the markup
// - Structural pattern tags
// and then the chapter list produced by the classifier.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/yuanying/epub2notes/internal/epub"
	"github.com/yuanying/epub2notes/internal/structure"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/fingerprint/main.go <epub-file>")
		os.Exit(1)
	}

	epubPath := os.Args[1]

	// EPUBファイルを開く
	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	reader, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer reader.Close()
	fmt.Printf("✓ EPUB opened successfully\n")
	fmt.Printf("OPF Path: %s\n\n", reader.OPFPath())

	entries, err := reader.Entries()
	if err != nil {
		log.Fatalf("Failed to read archive: %v", err)
	}
	opf, err := reader.ReadOPF()
	if err != nil {
		log.Fatalf("Failed to read OPF: %v", err)
	}

	spine, unresolved := opf.SpineEntries()
	for _, id := range unresolved {
		fmt.Printf("! spine idref not in manifest: %s\n", id)
	}

	// 目次から部タイトルを解決する
	parts := structure.ResolvePartTitles(epub.NavigationDocuments(entries, opf))
	fmt.Printf("Part titles from navigation: %d\n", len(parts))
	for n, title := range parts {
		fmt.Printf("  - %d: %s\n", n, title)
	}

	src := structure.SourceFunc(func(href string) ([]byte, bool) {
		return epub.FindEntry(entries, href)
	})
	items, err := structure.Analyze(context.Background(), spine, src, parts, structure.Options{})
	if err != nil {
		log.Fatalf("Failed to analyze spine: %v", err)
	}

	// 各スパイン項目の指紋を表示
	fmt.Printf("\nSpine documents: %d\n", len(items))
	for _, it := range items {
		tags := make([]string, 0, len(it.Patterns))
		for _, t := range it.Patterns.Sorted() {
			tags = append(tags, string(t))
		}
		fmt.Printf("%3d %-40s words=%-6d chapter=%-3d part=%-3d title=%q\n",
			it.Index, it.Href, it.WordCount, it.ChapterNumber, it.PartNumber, it.Title)
		if len(tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(tags, ", "))
		}
	}

	c, err := structure.Classify(items, src, parts, structure.Options{})
	if err != nil {
		log.Fatalf("Failed to classify: %v", err)
	}

	fmt.Printf("\nFront matter: %d, back matter: %d\n", len(c.FrontMatter), len(c.BackMatter))
	fmt.Printf("Chapters: %d (multipart: %v)\n", len(c.Chapters), c.Multipart)
	for _, ch := range c.Chapters {
		part := ""
		if ch.Part != nil {
			part = fmt.Sprintf(" [part %d: %s]", ch.Part.Number, ch.Part.Title)
		}
		inline := ""
		if ch.Inline() {
			inline = " (split)"
		}
		fmt.Printf("  - %d. %s%s%s <- %s\n", ch.Number, ch.Title, part, inline, ch.Href)
	}

	fmt.Println("\n✓ Classification finished")
}
