package structure

import (
	"bytes"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// partFileOffset corrects the zero-based part index some converters
// encode in file names (part_0.xhtml is the first part).
const partFileOffset = 1

var (
	chapterNumberClasses = []string{"chapter-number", "chapternumber", "chapnum", "chapter-num", "numero-chapitre", "num-chapitre"}
	partClasses          = []string{"part-number", "partnumber", "part-title", "parttitle", "partie", "titre-partie", "num-partie"}
	partTitleClasses     = []string{"part-title", "parttitle", "titre-partie"}

	markerNumberPattern = regexp.MustCompile(`^\[?\s*(\d+)\s*\]?\.?$`)
	partFilePattern     = regexp.MustCompile(`(?i)(?:^|[/_-])(?:partie|part)[-_](\d+)(?:[-_.]|$)`)
	partWordPattern     = regexp.MustCompile(`(?i)^(?:partie|part|livre|book)\s+(\d+|[ivxlcdm]+)\b\s*[.:\-–—]?\s*(.*)$`)
	leadingNumber       = regexp.MustCompile(`^(\d+)\s*[.:\-–—)]?\s*(.*)$`)
	anyNumber           = regexp.MustCompile(`\d+`)
	romanPattern        = regexp.MustCompile(`^M{0,3}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

	datePattern = regexp.MustCompile(`(?i)^(?:\d{1,4}[-/.]\d{1,2}(?:[-/.]\d{1,4})?|\d{4}|(?:\p{L}+\s+)?(?:\d{1,2}(?:er|st|nd|rd|th)?\s+)?` +
		`(?:janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre|` +
		`january|february|march|april|may|june|july|august|september|october|november|december)` +
		`(?:\s+\d{1,2}(?:st|nd|rd|th)?,?)?(?:\s+\d{4})?)\.?$`)
	laterPattern = regexp.MustCompile(`(?i)^(?:\d+|\p{L}+)\s+(?:\p{L}+\s+)?` +
		`(?:mois|ans|années|annees|jours|semaines|heures|months?|years?|days?|weeks?|hours?)\s+` +
		`(?:plus\s+tard|later|auparavant|earlier|avant)\.?$`)
)

var (
	prologueWords = []string{"prologue", "préface", "preface", "avant-propos", "introduction"}
	epilogueWords = []string{"épilogue", "epilogue", "conclusion", "postface"}
)

// signature is a fixed vocabulary for one structural tag. Classes match
// class, epub:type and role tokens; files match tokens of the base file
// name; opening matches the start of the first heading or of the text;
// anywhere matches inside the text of short documents.
type signature struct {
	tag      Tag
	classes  []string
	files    []string
	opening  []string
	anywhere []string
}

var signatures = []signature{
	{tag: TagTitlePage,
		classes: []string{"titlepage", "title-page", "halftitle", "half-title", "pagetitre", "page-titre", "fulltitle"},
		files:   []string{"titlepage", "title", "titre", "halftitle"}},
	{tag: TagCopyright,
		classes:  []string{"copyright", "copyright-page", "copyright-notice", "mentions", "mentions-legales", "droits"},
		files:    []string{"copyright", "mentions", "legal"},
		opening:  []string{"copyright", "©"},
		anywhere: []string{"©", "all rights reserved", "tous droits réservés", "isbn", "dépôt légal"}},
	{tag: TagEpigraph,
		classes: []string{"epigraph", "epigraphe", "épigraphe", "exergue"},
		files:   []string{"epigraph", "epigraphe", "exergue"}},
	{tag: TagTOC,
		classes: []string{"toc", "table-of-contents", "sommaire", "tdm", "contents"},
		files:   []string{"toc", "sommaire", "contents", "tdm", "nav"},
		opening: []string{"table des matières", "table of contents", "sommaire", "contents"}},
	{tag: TagDedication,
		classes: []string{"dedication", "dedicace", "dédicace"},
		files:   []string{"dedication", "dedicace"},
		opening: []string{"dedication", "dédicace"}},
	{tag: TagAcknowledgment,
		classes: []string{"acknowledgments", "acknowledgements", "remerciements"},
		files:   []string{"acknowledgments", "acknowledgements", "acknowledgment", "remerciements"},
		opening: []string{"remerciements", "acknowledgments", "acknowledgements", "acknowledgment"}},
	{tag: TagBibliography,
		classes: []string{"bibliography", "bibliographie"},
		files:   []string{"bibliography", "bibliographie", "biblio"},
		opening: []string{"bibliographie", "bibliography", "du même auteur", "also by", "des mêmes auteurs"}},
	{tag: TagIndex,
		classes: []string{"index"},
		opening: []string{"index"}},
	{tag: TagThanks,
		classes: []string{"thanks"},
		opening: []string{"merci", "thanks", "thank you"}},
	{tag: TagReferences,
		classes: []string{"references", "endnotes", "rearnotes", "bibliographie-notes"},
		files:   []string{"endnotes", "references"},
		opening: []string{"références", "references", "notes"}},
}

// shortDocumentWords bounds the documents whose whole class vocabulary and
// whole text are searched for signatures. Longer documents are only judged
// by their wrapping containers, file name and opening, so an epigraph
// quoted inside a chapter does not turn the chapter into an epigraph.
const shortDocumentWords = 300

// Extract derives the fingerprint of one document. It never fails:
// unreadable markup yields an empty fingerprint.
func Extract(markup []byte, docPath string, parts PartTitleMap) (fp Fingerprint) {
	fp.Patterns = TagSet{}
	defer func() {
		if recover() != nil {
			fp = Fingerprint{Patterns: TagSet{}}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return fp
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}

	text := ""
	if n := body.Get(0); n != nil {
		text = nodeText(n)
	}
	fp.WordCount = len(strings.Fields(text))
	lowerText := strings.ToLower(collapse(text))

	if n, ok := chapterMarker(doc); ok {
		fp.ChapterNumber = n
		fp.Patterns.Add(TagCalibreChapterMarker, TagCalibreNumbered)
	}

	detectPart(doc, docPath, parts, &fp)

	fp.Title = resolveTitle(doc, lowerText, &fp)

	tagStructure(doc, docPath, lowerText, &fp)

	return fp
}

// chapterMarker finds a heading carrying a chapter-number class and parses
// the number inside it.
func chapterMarker(doc *goquery.Document) (int, bool) {
	var number int
	var found bool
	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasAnyClass(s, chapterNumberClasses) {
			return true
		}
		m := markerNumberPattern.FindStringSubmatch(collapse(s.Text()))
		if m == nil {
			return true
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return true
		}
		number, found = n, true
		return false
	})
	return number, found
}

// detectPart tries the file name, then part-class headings, then plain
// top-level headings. The first signal that yields a number wins.
func detectPart(doc *goquery.Document, docPath string, parts PartTitleMap, fp *Fingerprint) {
	partHeadings := doc.Find("h1, h2, h3, h4, h5, h6, p, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasAnyClass(s, partClasses)
	})
	if partHeadings.Length() > 0 {
		fp.Patterns.Add(TagPartMarker)
	}

	var title string
	var number int
	if m := partFilePattern.FindStringSubmatch(path.Base(docPath)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			number = n + partFileOffset
		}
	}
	partHeadings.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, rest := parsePartHeading(collapse(s.Text()), true)
		if n == 0 {
			return true
		}
		if number == 0 {
			number = n
		}
		title = rest
		return false
	})
	if number == 0 && fp.ChapterNumber == 0 && fp.WordCount < proseWords {
		doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapse(s.Text())
			lower := strings.ToLower(text)
			if strings.Contains(lower, "chapitre") || strings.Contains(lower, "chapter") {
				return true
			}
			n, rest := parsePartHeading(text, false)
			if n == 0 {
				return true
			}
			number, title = n, rest
			return false
		})
	}
	if number == 0 {
		return
	}

	if t := collapse(partHeadings.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasAnyClass(s, partTitleClasses)
	}).Last().Text()); t != "" {
		if n, rest := parsePartHeading(t, true); n == 0 {
			title = t
		} else if rest != "" {
			title = rest
		}
	}
	if mapped, ok := parts[number]; ok {
		title = mapped
	}

	fp.PartNumber = number
	fp.PartTitle = title
	fp.Patterns.Add(TagPartHeader)
}

// parsePartHeading extracts a part number and the text that follows it.
// Roman numerals are only trusted after a part word or in a part-class
// heading (romanAlone).
func parsePartHeading(text string, romanAlone bool) (int, string) {
	if m := partWordPattern.FindStringSubmatch(text); m != nil {
		if n := parseNumeral(m[1]); n > 0 {
			return n, trimTitle(m[2])
		}
	}
	if m := leadingNumber.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, trimTitle(m[2])
		}
	}
	if romanAlone {
		fields := strings.Fields(text)
		if len(fields) > 0 {
			if n := parseNumeral(strings.TrimRight(fields[0], ".:")); n > 0 {
				return n, trimTitle(strings.Join(fields[1:], " "))
			}
		}
	}
	if m := anyNumber.FindString(text); m != "" && !romanAlone {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n, ""
		}
	}
	return 0, ""
}

func parseNumeral(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	upper := strings.ToUpper(s)
	if upper == "" || !romanPattern.MatchString(upper) {
		return 0
	}
	values := map[rune]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
	total := 0
	runes := []rune(upper)
	for i, r := range runes {
		v := values[r]
		if i+1 < len(runes) && values[runes[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

func trimTitle(s string) string {
	return strings.TrimFunc(collapse(s), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".:-–—", r)
	})
}

// resolveTitle applies the title priority and adds the prologue and
// epilogue tags on the way.
func resolveTitle(doc *goquery.Document, lowerText string, fp *Fingerprint) string {
	if fp.ChapterNumber > 0 {
		return strconv.Itoa(fp.ChapterNumber)
	}

	var label string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := strings.ToLower(s.Text())
		switch {
		case strings.Contains(h, "prologue"):
			label = markEdge(fp, TagPrologue, TagPrologueHeader, !fp.HasSubstantialText())
		case strings.Contains(h, "épilogue") || strings.Contains(h, "epilogue"):
			label = markEdge(fp, TagEpilogue, TagEpilogueHeader, !fp.HasSubstantialText())
		default:
			return true
		}
		return false
	})
	if label != "" {
		return label
	}

	// Without real prose the label only announces the section that
	// follows it, whatever element carries it.
	labelOnly := !fp.HasSubstantialText()
	first := firstWord(lowerText)
	for _, w := range prologueWords {
		if first == w {
			return markEdge(fp, TagPrologue, TagPrologueHeader, labelOnly)
		}
	}
	for _, w := range epilogueWords {
		if first == w {
			return markEdge(fp, TagEpilogue, TagEpilogueHeader, labelOnly)
		}
	}

	candidates := []string{
		collapse(doc.Find("head title").First().Text()),
		collapse(doc.Find("h1, h2, h3, h4, h5, h6").First().Text()),
	}
	for _, c := range candidates {
		if c != "" && !datePattern.MatchString(c) && !laterPattern.MatchString(c) {
			return c
		}
	}
	return ""
}

// markEdge tags a prologue or epilogue and returns its canonical label.
func markEdge(fp *Fingerprint, tag, header Tag, isHeader bool) string {
	fp.Patterns.Add(tag)
	if isHeader {
		fp.Patterns.Add(header)
	}
	if tag == TagPrologue {
		return "Prologue"
	}
	return "Epilogue"
}

// firstWord returns the first token of text without surrounding punctuation.
func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
}

func tagStructure(doc *goquery.Document, docPath, lowerText string, fp *Fingerprint) {
	short := fp.WordCount <= shortDocumentWords

	tokens := wrapperTokens(doc)
	if short {
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			addTokens(tokens, s)
		})
	}
	fileTokens := map[string]bool{}
	base := strings.ToLower(strings.TrimSuffix(path.Base(docPath), path.Ext(docPath)))
	for _, t := range strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		fileTokens[t] = true
	}

	heading := strings.ToLower(collapse(doc.Find("h1, h2, h3, h4, h5, h6").First().Text()))

	for _, sig := range signatures {
		if matchesSignature(sig, tokens, fileTokens, heading, lowerText, short) {
			fp.Patterns.Add(sig.tag)
		}
	}

	if strings.Contains(lowerText, "chapitre") || strings.Contains(lowerText, "chapter") {
		fp.Patterns.Add(TagChapterMarker)
	}
	if doc.Find("img, image").Length() > 0 && fp.WordCount < imageHeavyWords {
		fp.Patterns.Add(TagImageHeavy)
	}
}

func matchesSignature(sig signature, tokens, fileTokens map[string]bool, heading, text string, short bool) bool {
	for _, c := range sig.classes {
		if tokens[c] {
			return true
		}
	}
	for _, f := range sig.files {
		if fileTokens[f] {
			return true
		}
	}
	for _, o := range sig.opening {
		if hasWordPrefix(heading, o) || hasWordPrefix(text, o) {
			return true
		}
	}
	if short {
		for _, a := range sig.anywhere {
			if strings.Contains(text, a) {
				return true
			}
		}
	}
	return false
}

// hasWordPrefix reports whether s starts with prefix followed by a
// non-letter or the end of s.
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return !unicode.IsLetter(r)
}

// wrapperTokens collects class, epub:type and role tokens of the body and
// of every element that alone wraps the whole body, plus nav elements.
func wrapperTokens(doc *goquery.Document) map[string]bool {
	tokens := map[string]bool{}
	cur := doc.Find("body").First()
	for cur.Length() == 1 {
		addTokens(tokens, cur)
		children := cur.Children()
		if children.Length() != 1 {
			break
		}
		cur = children
	}
	doc.Find("nav").Each(func(_ int, s *goquery.Selection) {
		addTokens(tokens, s)
	})
	return tokens
}

func addTokens(tokens map[string]bool, s *goquery.Selection) {
	for _, attr := range []string{"class", "epub:type", "role"} {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		for _, t := range strings.Fields(strings.ToLower(v)) {
			tokens[strings.TrimPrefix(t, "doc-")] = true
		}
	}
}

func hasAnyClass(s *goquery.Selection, classes []string) bool {
	v, ok := s.Attr("class")
	if !ok {
		return false
	}
	for _, t := range strings.Fields(strings.ToLower(v)) {
		for _, c := range classes {
			if t == c {
				return true
			}
		}
	}
	return false
}
