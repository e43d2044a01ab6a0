package converter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Emphasis is the inline markdown styling a class stands for.
type Emphasis uint8

const (
	EmphasisItalic Emphasis = 1 << iota
	EmphasisBold
)

// ClassStyles maps class names to the emphasis their stylesheet rules set.
type ClassStyles map[string]Emphasis

// dialectClasses are class names publishers use without a stylesheet rule
// that actually sets the style (or with one we cannot see).
var dialectClasses = ClassStyles{
	"italic":    EmphasisItalic,
	"italique":  EmphasisItalic,
	"it":        EmphasisItalic,
	"em":        EmphasisItalic,
	"bold":      EmphasisBold,
	"gras":      EmphasisBold,
	"b":         EmphasisBold,
	"strong":    EmphasisBold,
	"smallcaps": EmphasisItalic,
}

// declarationRe matches a CSS property-value pair.
var declarationRe = regexp.MustCompile(`(?i)^\s*([\w-]+)\s*:\s*(.*?)\s*;?\s*$`)

// classSelectorRe matches the class names of one compound selector.
var classSelectorRe = regexp.MustCompile(`\.(-?[_a-zA-Z][\w-]*)`)

// commentRe matches CSS comments.
var commentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

// ParseClassStyles scans stylesheet text for class selectors whose rules set
// italic, oblique, bold, underline or small-caps. Rules nested in @media and
// @supports blocks count; selectors with pseudo-classes do not, since they
// style only part of an element.
func ParseClassStyles(css string) ClassStyles {
	styles := ClassStyles{}
	css = commentRe.ReplaceAllString(css, "")

	i := 0
	for i < len(css) {
		open := strings.IndexByte(css[i:], '{')
		if open < 0 {
			break
		}
		selector := strings.TrimSpace(strings.TrimLeft(css[i:i+open], "} \t\r\n"))
		i += open + 1

		lower := strings.ToLower(selector)
		if strings.HasPrefix(lower, "@media") || strings.HasPrefix(lower, "@supports") {
			continue
		}

		end := findDeclarationBlockEnd(css, i)
		body := css[i:end]
		i = end + 1

		emphasis := declarationEmphasis(body)
		if emphasis == 0 || strings.HasPrefix(selector, "@") {
			continue
		}
		for _, sel := range strings.Split(selector, ",") {
			if class := subjectClass(sel); class != "" {
				styles[class] |= emphasis
			}
		}
	}
	return styles
}

// Merge adds other's classes to s.
func (s ClassStyles) Merge(other ClassStyles) {
	for class, emphasis := range other {
		s[class] |= emphasis
	}
}

// findDeclarationBlockEnd returns the index of the '}' closing the block that
// starts at pos, skipping string literals.
func findDeclarationBlockEnd(css string, pos int) int {
	for i := pos; i < len(css); {
		end := findDeclarationEnd(css, i)
		if end >= len(css) || css[end] == '}' {
			return min(end, len(css))
		}
		i = end + 1
	}
	return len(css)
}

// findDeclarationEnd finds the end of a CSS declaration starting at pos.
// Returns the position of the terminating semicolon or brace. It correctly
// handles string literals inside values (e.g., content: "...").
func findDeclarationEnd(css string, pos int) int {
	for i := pos; i < len(css); i++ {
		switch css[i] {
		case ';', '{', '}':
			return i
		case '"', '\'':
			quote := css[i]
			i++
			for i < len(css) {
				if css[i] == '\\' {
					i++ // skip escaped char
				} else if css[i] == quote {
					break
				}
				i++
			}
		}
	}
	return len(css)
}

// declarationEmphasis reports the emphasis a declaration block sets.
func declarationEmphasis(body string) Emphasis {
	var emphasis Emphasis
	for i := 0; i < len(body); {
		end := findDeclarationEnd(body, i)
		m := declarationRe.FindStringSubmatch(strings.TrimSpace(body[i:end]))
		i = end + 1
		if m == nil {
			continue
		}
		property := strings.ToLower(m[1])
		value := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(m[2]), "!important"))
		value = strings.TrimSpace(value)

		switch property {
		case "font-style":
			if value == "italic" || value == "oblique" {
				emphasis |= EmphasisItalic
			}
		case "font-weight":
			if isBoldWeight(value) {
				emphasis |= EmphasisBold
			}
		case "text-decoration", "text-decoration-line":
			if strings.Contains(value, "underline") {
				emphasis |= EmphasisItalic
			}
		case "font-variant", "font-variant-caps":
			if strings.Contains(value, "small-caps") {
				emphasis |= EmphasisItalic
			}
		case "font":
			for _, token := range strings.Fields(value) {
				switch {
				case token == "italic" || token == "oblique":
					emphasis |= EmphasisItalic
				case isBoldWeight(token):
					emphasis |= EmphasisBold
				}
			}
		}
	}
	return emphasis
}

func isBoldWeight(value string) bool {
	if value == "bold" || value == "bolder" {
		return true
	}
	n, err := strconv.Atoi(value)
	return err == nil && n >= 600
}

// subjectClass returns the class of the rightmost compound selector, the
// element the rule styles. Selectors with pseudo-classes or pseudo-elements
// yield nothing.
func subjectClass(selector string) string {
	fields := strings.Fields(strings.NewReplacer(">", " ", "+", " ", "~", " ").Replace(selector))
	if len(fields) == 0 {
		return ""
	}
	subject := fields[len(fields)-1]
	if strings.Contains(subject, ":") {
		return ""
	}
	m := classSelectorRe.FindAllStringSubmatch(subject, -1)
	if len(m) != 1 {
		return ""
	}
	return m[0][1]
}

// ApplyClassStyles wraps the content of every element whose classes carry
// emphasis in <em> and/or <strong>. Elements that already express the style
// (em/i, strong/b, headings for bold) are left alone for that style.
func ApplyClassStyles(doc *goquery.Document, styles ClassStyles) {
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		var emphasis Emphasis
		for _, name := range strings.Fields(class) {
			emphasis |= styles[name] | dialectClasses[strings.ToLower(name)]
		}
		if emphasis == 0 || strings.TrimSpace(s.Text()) == "" {
			return
		}

		switch goquery.NodeName(s) {
		case "em", "i":
			emphasis &^= EmphasisItalic
		case "strong", "b", "h1", "h2", "h3", "h4", "h5", "h6":
			emphasis &^= EmphasisBold
		case "img", "br", "hr":
			return
		}
		if emphasis&EmphasisItalic != 0 {
			s.WrapInnerHtml("<em></em>")
		}
		if emphasis&EmphasisBold != 0 {
			s.WrapInnerHtml("<strong></strong>")
		}
	})
}
