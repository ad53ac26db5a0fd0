package gloss

import (
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domgloss/dom"
	"github.com/hazyhaar/domgloss/translate"
)

// Annotation texts. Placeholder marks a slot as in flight so later scans
// skip re-queuing; the other two are terminal user-visible states.
const (
	placeholderText = "…"
	unavailableText = "translation not available"
	failedText      = "translation failed"
)

// translateElement runs the whole per-element flow: revalidate, insert a
// pending annotation, detect language, stream-translate, and reflect the
// result into the tree. Errors are terminal for this element only; sibling
// elements and later batches are unaffected.
func (p *Pipeline) translateElement(ctx context.Context, el *html.Node) {
	ann, text := p.insertPlaceholder(el)
	if ann == nil {
		return
	}

	lang, err := p.detector.Detect(ctx, text)
	if err != nil {
		p.logger.Warn("gloss: language detection failed", "error", err)
		p.finishAnnotation(ann, dom.StateError, failedText)
		return
	}
	if lang != p.source {
		// Already in the target language, or outside the supported pair:
		// not an error, the slot is simply withdrawn.
		p.removeAnnotation(ann)
		return
	}

	sess, err := p.cache.Get(ctx, p.source, p.target)
	if err != nil {
		if errors.Is(err, translate.ErrUnsupportedPair) {
			p.finishAnnotation(ann, dom.StateUnavailable, unavailableText)
		} else {
			p.logger.Warn("gloss: session unavailable", "error", err)
			p.finishAnnotation(ann, dom.StateError, failedText)
		}
		return
	}

	stream, err := sess.TranslateStreaming(ctx, text)
	if err != nil {
		p.logger.Warn("gloss: start stream failed", "error", err)
		p.finishAnnotation(ann, dom.StateError, failedText)
		return
	}

	var acc strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Warn("gloss: mid-stream failure", "error", err)
			p.finishAnnotation(ann, dom.StateError, failedText)
			return
		}
		acc.WriteString(chunk)
		p.writeTranslation(el, ann, p.sanitize(acc.String()))
	}

	// The duplicate check is only decisive on the complete text: partial
	// chunks never match a finished annotation. When the final write is
	// suppressed, an identical translation already exists next to or above
	// this element and the slot is redundant.
	if !p.writeTranslation(el, ann, p.sanitize(acc.String())) {
		p.removeAnnotation(ann)
		return
	}
	p.setState(ann, dom.StateDone)
}

// insertPlaceholder revalidates the element under the write lock and, when
// it still qualifies, inserts the pending annotation immediately after it
// (list items stay inside their list). Returns nil when the element no
// longer qualifies, plus the source text captured under the same lock.
func (p *Pipeline) insertPlaceholder(el *html.Node) (*html.Node, string) {
	var ann *html.Node
	var text string
	p.doc.Apply(func(m *dom.Mutator) {
		if !dom.Attached(m.Root(), el) || !p.qualifies(el) {
			return
		}
		text = dom.Text(el)
		tag := "p"
		if el.DataAtom == atom.Li {
			tag = "li"
		}
		ann = dom.NewAnnotation(tag, dom.StatePending, placeholderText)
		m.InsertAfter(el, ann)
	})
	return ann, text
}

// writeTranslation applies the cumulative streamed text to the annotation
// unless duplicate suppression rejects it. Within one element's own stream
// the last write wins. Returns whether a write occurred.
func (p *Pipeline) writeTranslation(el, ann *html.Node, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	ok := false
	p.doc.Apply(func(m *dom.Mutator) {
		if ann.Parent == nil {
			return // annotation withdrawn while the stream was in flight
		}
		if isDuplicateTranslation(el, ann, trimmed) {
			return
		}
		m.SetText(ann, trimmed)
		ok = true
	})
	return ok
}

// isDuplicateTranslation is the invariant check guarding every DOM write:
// the text must not already exist in the annotation adjacent to the source
// nor in any annotation under an ancestor (redundant nested translations
// when selections overlap). It walks the live tree; positions are never
// cached because the tree mutates.
func isDuplicateTranslation(el, ann *html.Node, trimmed string) bool {
	// Sibling duplicate: a slot adjacent to the source, other than our
	// own, already holds this exact text.
	for sib := dom.NextElementSibling(el); sib != nil && dom.IsAnnotation(sib); sib = dom.NextElementSibling(sib) {
		if sib != ann && strings.TrimSpace(dom.Text(sib)) == trimmed {
			return true
		}
	}
	// Nested/ancestor duplicate: walk up, scanning each ancestor's
	// annotations (other than our own slot).
	for a := el.Parent; a != nil; a = a.Parent {
		if annotationWithText(a, ann, trimmed) {
			return true
		}
	}
	return false
}

// annotationWithText reports whether root contains an annotation (other
// than skip) whose trimmed text equals trimmed.
func annotationWithText(root, skip *html.Node, trimmed string) bool {
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n != root && n.Type == html.ElementNode && dom.IsAnnotation(n) && n != skip {
			if strings.TrimSpace(dom.Text(n)) == trimmed {
				found = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// sanitize strips any markup a translation backend may emit; only plain
// text ever enters the tree.
func (p *Pipeline) sanitize(text string) string {
	return html.UnescapeString(p.sanitizer.Sanitize(text))
}

func (p *Pipeline) finishAnnotation(ann *html.Node, state dom.State, text string) {
	p.doc.Apply(func(m *dom.Mutator) {
		if ann.Parent == nil {
			return
		}
		m.SetText(ann, text)
		m.SetAttr(ann, dom.StateAttr, string(state))
	})
}

func (p *Pipeline) setState(ann *html.Node, state dom.State) {
	p.doc.Apply(func(m *dom.Mutator) {
		if ann.Parent == nil {
			return
		}
		m.SetAttr(ann, dom.StateAttr, string(state))
	})
}

func (p *Pipeline) removeAnnotation(ann *html.Node) {
	p.doc.Apply(func(m *dom.Mutator) {
		m.Remove(ann)
	})
}

// RemoveAnnotations strips every annotation from the document. Used on
// SPA navigation and when the pipeline is torn down.
func (p *Pipeline) RemoveAnnotations() int {
	removed := 0
	p.doc.Apply(func(m *dom.Mutator) {
		var anns []*html.Node
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && dom.IsAnnotation(n) {
				anns = append(anns, n)
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(m.Root())
		for _, a := range anns {
			m.Remove(a)
		}
		removed = len(anns)
	})
	return removed
}
