// Package dom provides the mutable document model shared by the domgloss
// pipeline. It wraps a golang.org/x/net/html tree with a mutex, so that a
// translation pass, a mutation feed from a live browser, and the change
// watcher can operate on one tree without racing, and emits structured
// mutation events to subscribers.
//
// The tree is the source of truth: candidate elements are re-discovered on
// every pass rather than tracked by stored identity.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// Op is the type of document mutation observed.
type Op string

const (
	OpInsert   Op = "insert"   // node inserted
	OpRemove   Op = "remove"   // node removed
	OpText     Op = "text"     // text content replaced
	OpAttr     Op = "attr"     // attribute set
	OpNavigate Op = "navigate" // document URL changed (SPA route change)
	OpScroll   Op = "scroll"   // viewport scrolled
)

// Event is a single observed mutation. For insert/remove it carries the
// element tag; for text ops the new text; for navigate the new URL.
// Annotation is true when the mutation touched a translation annotation
// (inserted by the pipeline itself), so consumers can ignore self-inflicted
// churn when counting host-page activity.
type Event struct {
	Op         Op        `json:"op"`
	Tag        string    `json:"tag,omitempty"`
	XPath      string    `json:"xpath,omitempty"`
	Text       string    `json:"text,omitempty"`
	Annotation bool      `json:"annotation,omitempty"`
	At         time.Time `json:"at"`
}

// Document is a lock-guarded live HTML tree plus its navigation locator
// and scroll state. All reads go through View, all writes through Apply.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	url    string
	scroll int // character offset of the viewport top, see viewport.go

	subMu sync.Mutex
	subs  []chan Event
}

// Parse reads an HTML document and wraps it. The url is the document's
// initial navigation locator.
func Parse(r io.Reader, url string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: root, url: url}, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(s, url string) (*Document, error) {
	return Parse(strings.NewReader(s), url)
}

// URL returns the current navigation locator.
func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// SetURL updates the navigation locator. A changed URL emits a navigate
// event, the signal the change watcher treats as a full reset.
func (d *Document) SetURL(u string) {
	d.mu.Lock()
	changed := u != d.url
	d.url = u
	d.mu.Unlock()
	if changed {
		d.publish(Event{Op: OpNavigate, Text: u, At: time.Now()})
	}
}

// Scroll returns the viewport top as a character offset.
func (d *Document) Scroll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scroll
}

// SetScroll updates the viewport top and emits a scroll event when it moved.
func (d *Document) SetScroll(off int) {
	if off < 0 {
		off = 0
	}
	d.mu.Lock()
	changed := off != d.scroll
	d.scroll = off
	d.mu.Unlock()
	if changed {
		d.publish(Event{Op: OpScroll, At: time.Now()})
	}
}

// View runs fn against the document root under the lock. fn must not
// retain node pointers past its return and must not mutate the tree.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Apply runs fn with a Mutator under the lock. Mutations are reflected in
// the tree immediately; events are published after the lock is released.
func (d *Document) Apply(fn func(m *Mutator)) {
	d.mu.Lock()
	m := &Mutator{doc: d}
	fn(m)
	events := m.events
	d.mu.Unlock()
	for _, ev := range events {
		d.publish(ev)
	}
}

// Replace swaps the whole tree for a fresh snapshot. Used by the browser
// host when re-mirroring a live page; no events are emitted; the host
// reports activity through Notify on its own cadence.
func (d *Document) Replace(root *html.Node) {
	d.mu.Lock()
	d.root = root
	d.mu.Unlock()
}

// Notify publishes an externally observed event (e.g. mutations reported
// by a live browser that the in-process tree never saw directly).
func (d *Document) Notify(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	d.publish(ev)
}

// Subscribe returns a buffered event channel. Slow consumers lose events
// rather than blocking mutators; the change watcher treats events as
// signals, not as a ledger.
func (d *Document) Subscribe(buf int) <-chan Event {
	if buf <= 0 {
		buf = 256
	}
	ch := make(chan Event, buf)
	d.subMu.Lock()
	d.subs = append(d.subs, ch)
	d.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (d *Document) Unsubscribe(ch <-chan Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for i, s := range d.subs {
		if s == ch {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			close(s)
			return
		}
	}
}

func (d *Document) publish(ev Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, s := range d.subs {
		select {
		case s <- ev:
		default:
		}
	}
}

// Mutator applies structural changes to the tree. It is only valid inside
// an Apply callback.
type Mutator struct {
	doc    *Document
	events []Event
}

// Root exposes the document root so a mutation can revalidate state under
// the same lock that protects the write.
func (m *Mutator) Root() *html.Node {
	return m.doc.root
}

// InsertAfter inserts n as the next sibling of ref.
func (m *Mutator) InsertAfter(ref, n *html.Node) {
	if ref.Parent == nil {
		return
	}
	ref.Parent.InsertBefore(n, ref.NextSibling)
	m.record(Event{Op: OpInsert, Tag: n.Data, XPath: XPath(n), Annotation: InAnnotation(n)})
}

// AppendChild appends n as the last child of parent.
func (m *Mutator) AppendChild(parent, n *html.Node) {
	parent.AppendChild(n)
	m.record(Event{Op: OpInsert, Tag: n.Data, XPath: XPath(n), Annotation: InAnnotation(n)})
}

// Remove detaches n from the tree. No-op when already detached.
func (m *Mutator) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	xpath := XPath(n)
	ann := InAnnotation(n)
	n.Parent.RemoveChild(n)
	m.record(Event{Op: OpRemove, Tag: n.Data, XPath: xpath, Annotation: ann})
}

// SetText replaces the children of n with a single text node.
func (m *Mutator) SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	m.record(Event{Op: OpText, Tag: n.Data, XPath: XPath(n), Text: text, Annotation: InAnnotation(n)})
}

// SetAttr sets or replaces an attribute on n.
func (m *Mutator) SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			m.record(Event{Op: OpAttr, Tag: n.Data, XPath: XPath(n), Annotation: InAnnotation(n)})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	m.record(Event{Op: OpAttr, Tag: n.Data, XPath: XPath(n), Annotation: InAnnotation(n)})
}

func (m *Mutator) record(ev Event) {
	ev.At = time.Now()
	m.events = append(m.events, ev)
}
