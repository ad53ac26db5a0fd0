package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Annotation markers. An annotation is the inserted node holding the
// translation for one source element; AnnotationAttr tags it so that later
// scans recognise it and never re-queue its source.
const (
	AnnotationAttr = "data-gloss"
	StateAttr      = "data-gloss-state"
)

// State is the lifecycle of an annotation.
type State string

const (
	StatePending     State = "pending"     // inserted, stream not finished
	StateDone        State = "done"        // stream consumed, text final
	StateError       State = "error"       // detection or translation failed
	StateUnavailable State = "unavailable" // language pair not available
)

// IsAnnotation reports whether n is a translation annotation.
func IsAnnotation(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasAttr(n, AnnotationAttr)
}

// InAnnotation reports whether n is an annotation or sits inside one.
func InAnnotation(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if IsAnnotation(p) {
			return true
		}
	}
	return false
}

// AnnotationState returns the lifecycle state of an annotation node.
func AnnotationState(n *html.Node) State {
	return State(Attr(n, StateAttr))
}

// NewAnnotation builds a detached annotation element of the given tag with
// an initial state and text. The caller inserts it through a Mutator.
func NewAnnotation(tag string, state State, text string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr: []html.Attribute{
			{Key: AnnotationAttr, Val: "1"},
			{Key: StateAttr, Val: string(state)},
		},
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
