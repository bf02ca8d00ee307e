package reddit

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// find returns the first node in document order matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		return !isElement(n, "script") && !isElement(n, "style")
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// paragraphs returns the non-empty text of every p under n.
func paragraphs(n *html.Node) []string {
	var out []string
	walk(n, func(n *html.Node) bool {
		if isElement(n, "p") {
			if t := text(n); t != "" {
				out = append(out, t)
			}
			return false
		}
		return true
	})
	return out
}
