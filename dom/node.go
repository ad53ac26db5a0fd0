package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render serialises a subtree back to HTML.
func Render(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

// Attr returns the value of an attribute on a node, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node carries an attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// NextElementSibling returns the next sibling that is an element, or nil.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// PrevElementSibling returns the previous sibling that is an element, or nil.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Attached reports whether n is still reachable from root. Candidates are
// ephemeral references; the tree may have dropped them since selection.
func Attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Body returns the <body> element of a parsed document, or nil.
func Body(root *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return body
}

// XPath returns a positional path for n, e.g. /html/body/div[2]/p[3].
// Index brackets appear only when an element has same-tag predecessors,
// matching the scheme the domgloss browser host resolves with
// document.evaluate.
func XPath(n *html.Node) string {
	var parts []string
	for node := n; node != nil && node.Type == html.ElementNode; node = node.Parent {
		idx := 0
		for s := node.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == node.Data {
				idx++
			}
		}
		part := node.Data
		if idx > 0 {
			part += "[" + strconv.Itoa(idx+1) + "]"
		}
		parts = append(parts, part)
	}
	// Reverse into document order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
