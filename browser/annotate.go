package browser

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domgloss/dom"
)

// AnnotationSpec describes one annotation to replay into the live page,
// keyed by the XPath of its source element.
type AnnotationSpec struct {
	Anchor string `json:"anchor"`
	Tag    string `json:"tag"`
	State  string `json:"state"`
	Text   string `json:"text"`
}

// CollectAnnotations walks the mirrored document and builds the replay
// set. Annotations whose source element vanished are skipped; the page
// sweep removes their counterparts.
func CollectAnnotations(doc *dom.Document) []AnnotationSpec {
	var specs []AnnotationSpec
	doc.View(func(root *html.Node) {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && dom.IsAnnotation(n) {
				src := dom.PrevElementSibling(n)
				if src != nil && !dom.IsAnnotation(src) {
					specs = append(specs, AnnotationSpec{
						Anchor: dom.XPath(src),
						Tag:    n.Data,
						State:  string(dom.AnnotationState(n)),
						Text:   dom.Text(n),
					})
				}
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	})
	return specs
}

// syncScript reconciles the page's annotation nodes against the replay
// set: upsert every spec after its anchor, then sweep page annotations
// whose anchor is no longer in the set.
const syncScript = `(specs) => {
	const ATTR = 'data-gloss';
	const STATE = 'data-gloss-state';
	const find = (xpath) => document
		.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null)
		.singleNodeValue;

	const kept = new Set();
	for (const spec of specs) {
		const anchor = find(spec.anchor);
		if (!anchor) continue;
		let slot = anchor.nextElementSibling;
		if (!slot || !slot.hasAttribute(ATTR)) {
			slot = document.createElement(spec.tag);
			slot.setAttribute(ATTR, '1');
			anchor.insertAdjacentElement('afterend', slot);
		}
		if (slot.textContent !== spec.text) slot.textContent = spec.text;
		if (slot.getAttribute(STATE) !== spec.state) slot.setAttribute(STATE, spec.state);
		kept.add(slot);
	}

	let removed = 0;
	for (const el of Array.from(document.querySelectorAll('[' + ATTR + ']'))) {
		if (!kept.has(el)) { el.remove(); removed++; }
	}
	return {upserted: kept.size, removed: removed};
}`

// syncAnnotations replays the mirrored document's annotations into the
// live page in one round trip.
func (h *Host) syncAnnotations(ctx context.Context) error {
	specs := CollectAnnotations(h.doc)
	if specs == nil {
		specs = []AnnotationSpec{} // serialise as [], not null
	}
	if _, err := h.page.Context(ctx).Eval(syncScript, specs); err != nil {
		return fmt.Errorf("browser: sync annotations: %w", err)
	}
	return nil
}
