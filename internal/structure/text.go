package structure

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// PlainText returns the visible text of a markup document with tags
// stripped. Only the body is read; head, script and style are skipped.
func PlainText(markup []byte) string {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	if body := findElement(doc, "body"); body != nil {
		return nodeText(body)
	}
	return nodeText(doc)
}

// WordCount counts whitespace-delimited tokens of the plain text.
func WordCount(markup []byte) int {
	return len(strings.Fields(PlainText(markup)))
}

// blockElements end a word; inline ones such as <b> or <span> do not.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "aside": true, "nav": true,
	"header": true, "footer": true, "table": true, "tr": true, "td": true, "th": true,
	"dt": true, "dd": true, "pre": true, "figure": true, "figcaption": true, "body": true,
}

// nodeText concatenates the text below n. Block boundaries count as
// whitespace so that "<p>a</p><p>b</p>" yields two words.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "title":
				return
			case "br":
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte(' ')
		}
	}
	walk(n)
	return sb.String()
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
