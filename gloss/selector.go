package gloss

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domgloss/dom"
)

// contentAtoms are the block-level elements worth translating.
var contentAtoms = map[atom.Atom]bool{
	atom.P:          true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Figcaption: true,
}

// containerAtoms are the generic containers eligible for density scoring.
var containerAtoms = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Section: true,
	atom.Article: true,
	atom.Main:    true,
	atom.Td:      true,
}

// isContentTag reports whether a tag name (as seen in mutation events)
// names a translatable block.
func isContentTag(tag string) bool {
	return contentAtoms[atom.Lookup([]byte(tag))]
}

// selectCandidates returns the ordered set of elements worth translating.
// It is idempotent and side-effect-free: repeated calls against an
// unchanged tree return the same set.
func (p *Pipeline) selectCandidates(root *html.Node) []*html.Node {
	container := p.findContainer(root)
	if container == nil {
		return nil
	}
	return p.filterCandidates(container)
}

// findContainer locates the main content container: known selectors
// first, then density scoring, then the document body.
func (p *Pipeline) findContainer(root *html.Node) *html.Node {
	var best *html.Node
	bestLen := 0
	for _, sel := range p.cfg.ContentSelectors {
		for _, n := range dom.Select(root, sel) {
			if l := len(dom.Text(n)); l > bestLen {
				best, bestLen = n, l
			}
		}
	}
	if best != nil {
		return best
	}

	if n := p.densestContainer(root); n != nil {
		return n
	}

	if body := dom.Body(root); body != nil {
		return body
	}
	return root
}

// densestContainer scores generic containers and returns the best one, or
// nil when none qualifies.
func (p *Pipeline) densestContainer(root *html.Node) *html.Node {
	t := &p.cfg.Tuning
	var best *html.Node
	var bestScore float64

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && containerAtoms[n.DataAtom] && !p.blocklisted(n) {
			textLen := len(dom.Text(n))
			if textLen > t.MinContainerText {
				children := p.countQualifying(n)
				if children >= t.MinQualifyingChildren {
					elements := dom.ElementCount(n)
					if elements == 0 {
						elements = 1
					}
					density := float64(textLen) / float64(elements)
					linkRatio := float64(len(dom.LinkText(n))) / float64(textLen)
					score := t.TextWeight*float64(textLen) +
						t.ChildWeight*float64(children) +
						t.DensityWeight*density -
						t.LinkPenalty*linkRatio
					if best == nil || score > bestScore {
						best, bestScore = n, score
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return best
}

// countQualifying counts translatable blocks under n that clear the
// per-element text floor.
func (p *Pipeline) countQualifying(n *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && contentAtoms[cur.DataAtom] &&
			!dom.IsAnnotation(cur) && len(dom.Text(cur)) >= p.cfg.Tuning.MinTextLen {
			count++
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return count
}

// filterCandidates walks the chosen container and keeps qualifying blocks.
func (p *Pipeline) filterCandidates(container *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && p.qualifies(n) {
			out = append(out, n)
		}
		if n.Type == html.ElementNode && dom.IsAnnotation(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	return out
}

// qualifies re-checks every exclusion rule for a single element. The
// element translator calls it again at execution time, since the tree may
// have changed since selection.
func (p *Pipeline) qualifies(n *html.Node) bool {
	if n.Type != html.ElementNode || !contentAtoms[n.DataAtom] {
		return false
	}
	if dom.IsAnnotation(n) || dom.InAnnotation(n) {
		return false
	}
	if len(dom.Text(n)) < p.cfg.Tuning.MinTextLen {
		return false
	}
	if dom.HiddenOrInHidden(n) {
		return false
	}
	if p.blocklistedOrInBlocklisted(n) {
		return false
	}
	if inCodeBlock(n) {
		return false
	}
	if containsAnnotation(n) {
		return false
	}
	if sib := dom.NextElementSibling(n); dom.IsAnnotation(sib) {
		return false
	}
	return true
}

// blocklisted checks the element's own id/class against the boilerplate
// patterns.
func (p *Pipeline) blocklisted(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	idClass := dom.Attr(n, "id") + " " + dom.Attr(n, "class")
	if strings.TrimSpace(idClass) == "" {
		return false
	}
	return p.blockRe.MatchString(idClass)
}

func (p *Pipeline) blocklistedOrInBlocklisted(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if p.blocklisted(cur) {
			return true
		}
	}
	return false
}

// inCodeBlock reports whether n sits inside (or is) a code/pre element.
func inCodeBlock(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			switch cur.DataAtom {
			case atom.Code, atom.Pre:
				return true
			}
		}
	}
	return false
}

// containsAnnotation reports whether any descendant of n is an annotation,
// meaning the element already carries a translation slot.
func containsAnnotation(n *html.Node) bool {
	found := false
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if found {
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if dom.IsAnnotation(c) {
				found = true
				return
			}
			walk(c)
		}
	}
	walk(n)
	return found
}
