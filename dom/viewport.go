package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// The viewport is modelled in characters of visible text rather than
// pixels: a node's vertical position is approximated by the amount of text
// preceding it in document order. A live browser host replaces the
// estimate with real scroll offsets through Document.SetScroll; for a
// parsed static document the estimate alone orders candidates well enough
// for visible-first scheduling.

// Viewport describes the currently visible slice of the document.
type Viewport struct {
	// Top is the character offset of the viewport top.
	Top int
	// Screen is the number of text characters per screen.
	Screen int
	// Margin is the number of extra screens, above and below, still
	// counted as "near": the generous prefetch band.
	Margin int
}

// Near reports whether a node at the given character offset falls within
// the viewport plus its margin.
func (v Viewport) Near(offset int) bool {
	if v.Screen <= 0 {
		return true
	}
	lo := v.Top - v.Margin*v.Screen
	hi := v.Top + (v.Margin+1)*v.Screen
	return offset >= lo && offset <= hi
}

// Offset returns the number of visible text characters preceding n in
// document order, and whether n was found under root.
func Offset(root, n *html.Node) (int, bool) {
	offset := 0
	found := false
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if found {
			return
		}
		if cur == n {
			found = true
			return
		}
		if cur.Type == html.TextNode {
			offset += len(strings.TrimSpace(cur.Data))
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found {
				return
			}
		}
	}
	walk(root)
	if !found {
		return 0, false
	}
	return offset, true
}
