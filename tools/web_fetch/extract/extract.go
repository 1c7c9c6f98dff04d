// Package extract pulls the readable text out of a fetched page.
package extract

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const DefaultMaxWords = 3000

var noise = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true, atom.Footer: true,
	atom.Header: true, atom.Aside: true, atom.Iframe: true,
}

var textual = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.Li: true,
}

// containers are tried in order; the first hit is the content root.
var containers = []func(*html.Node) bool{
	isTag(atom.Article),
	isTag(atom.Main),
	divWithClass("content"),
	divWithClass("article"),
	isTag(atom.Body),
}

// MainText strips navigation and script noise, picks the primary content
// container and joins the text of its paragraphs, headings and list items.
// Output is capped at maxWords words with a trailing "...". When the tag walk
// finds nothing, readability is tried before giving up with "".
func MainText(page, pageURL string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	removeNoise(doc)

	var root *html.Node
	for _, match := range containers {
		if root = find(doc, match); root != nil {
			break
		}
	}
	var parts []string
	if root != nil {
		walk(root, func(n *html.Node) {
			if n.Type == html.ElementNode && textual[n.DataAtom] {
				if t := collapse(textOf(n)); t != "" {
					parts = append(parts, t)
				}
			}
		})
	}
	text := strings.Join(parts, " ")
	if text == "" {
		text = readable(page, pageURL)
	}
	return capWords(text, maxWords)
}

func readable(page, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		return ""
	}
	return collapse(article.TextContent)
}

func capWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) > max {
		return strings.Join(words[:max], " ") + "..."
	}
	return strings.Join(words, " ")
}

func removeNoise(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && noise[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			removeNoise(c)
		}
		c = next
	}
}

func isTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == a }
}

func divWithClass(fragment string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Div {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == "class" && strings.Contains(a.Val, fragment) {
				return true
			}
		}
		return false
	}
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if got := find(c, match); got != nil {
			return got
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	})
	return b.String()
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }
