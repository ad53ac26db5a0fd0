package gloss

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/hazyhaar/domgloss/dom"
	"github.com/hazyhaar/domgloss/translate"
)

func annotationStates(d *dom.Document) []dom.State {
	var out []dom.State
	d.View(func(root *html.Node) {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && dom.IsAnnotation(n) {
				out = append(out, dom.AnnotationState(n))
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	})
	return out
}

func TestTranslate_AnnotatesInPlace(t *testing.T) {
	doc := testDoc(t, `
		<article>
			<p>Streaming translation should land beneath this block.</p>
			<ul><li>List items get a list item annotation, not a paragraph.</li></ul>
		</article>`)
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), nil)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}

	texts := annotationTexts(doc)
	if len(texts) != 2 {
		t.Fatalf("annotations = %v, want 2", texts)
	}
	for _, txt := range texts {
		if !strings.HasPrefix(txt, "⟦ja⟧ ") {
			t.Fatalf("annotation text %q lacks the target marker", txt)
		}
	}
	for _, st := range annotationStates(doc) {
		if st != dom.StateDone {
			t.Fatalf("state = %q, want done", st)
		}
	}

	// The list annotation must be a li inside the list.
	doc.View(func(root *html.Node) {
		for _, n := range dom.Select(root, "li") {
			if dom.IsAnnotation(n) && n.Parent.Data != "ul" {
				t.Errorf("list annotation parent = %q, want ul", n.Parent.Data)
			}
		}
	})
}

func TestTranslate_OtherLanguageWithdrawn(t *testing.T) {
	doc := testDoc(t, `<article>
		<p>Ce paragraphe est déjà dans une autre langue que la source.</p>
		<p>This second block gives the container enough children to score.</p>
	</article>`)
	tr := &scriptTranslator{avail: translate.Available}
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.French}, tr, nil)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := countAnnotations(doc); n != 0 {
		t.Fatalf("annotations = %d, want 0 after withdrawal", n)
	}
	if n := tr.sessions.Load(); n != 0 {
		t.Fatalf("sessions = %d, want none for an out-of-pair page", n)
	}
}

func TestTranslate_UnsupportedPair(t *testing.T) {
	doc := testDoc(t, `<article><p>A qualifying paragraph on an unsupported pair.</p></article>`)
	tr := &scriptTranslator{avail: translate.Unavailable}
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, tr, nil)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}
	texts := annotationTexts(doc)
	if len(texts) != 1 || texts[0] != unavailableText {
		t.Fatalf("annotations = %v, want %q", texts, unavailableText)
	}
	if states := annotationStates(doc); states[0] != dom.StateUnavailable {
		t.Fatalf("state = %q, want unavailable", states[0])
	}
	if n := tr.streamCalls.Load(); n != 0 {
		t.Fatalf("streams = %d, want none", n)
	}
}

func TestTranslate_MidStreamFailure(t *testing.T) {
	doc := testDoc(t, `<article><p>A stream that tears down mid-way must fail visibly.</p></article>`)
	tr := &scriptTranslator{avail: translate.Available, failAfter: 1}
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, tr, nil)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}
	texts := annotationTexts(doc)
	if len(texts) != 1 || texts[0] != failedText {
		t.Fatalf("annotations = %v, want %q", texts, failedText)
	}
	if states := annotationStates(doc); states[0] != dom.StateError {
		t.Fatalf("state = %q, want error", states[0])
	}
}

func TestTranslate_DuplicateSuppressed(t *testing.T) {
	doc := testDoc(t, `
		<article>
			<p>Twin paragraphs with identical text translate identically.</p>
			<p>Twin paragraphs with identical text translate identically.</p>
		</article>`)
	cfg := testConfig()
	cfg.Tuning.VisibleBatch = 1 // sequential, so the first twin finishes first
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), cfg)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}
	texts := annotationTexts(doc)
	if len(texts) != 1 {
		t.Fatalf("annotations = %v, want the duplicate slot withdrawn", texts)
	}
}

func TestTranslate_SanitizesMarkup(t *testing.T) {
	doc := testDoc(t, `<article><p>Backend output containing markup must come out as plain text.</p></article>`)
	tr := &markupTranslator{}
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, tr, nil)

	if err := p.Translate(context.Background()); err != nil {
		t.Fatal(err)
	}
	texts := annotationTexts(doc)
	if len(texts) != 1 {
		t.Fatalf("annotations = %v, want 1", texts)
	}
	if strings.ContainsAny(texts[0], "<>") {
		t.Fatalf("annotation %q still contains markup", texts[0])
	}
}

// markupTranslator emits tags in its output, like a misbehaving backend.
type markupTranslator struct{}

func (markupTranslator) Availability(context.Context, language.Tag, language.Tag) (translate.Availability, error) {
	return translate.Available, nil
}

func (markupTranslator) NewSession(context.Context, language.Tag, language.Tag) (translate.Session, error) {
	return markupSession{}, nil
}

type markupSession struct{}

func (markupSession) TranslateStreaming(_ context.Context, text string) (translate.Stream, error) {
	return &scriptStream{text: []rune("<b>injected</b> " + text)}, nil
}

func (markupSession) Close() error { return nil }

func TestRemoveAnnotations(t *testing.T) {
	doc := testDoc(t, `<article>
		<p>First block with a translation already attached below it.</p>
		<p data-gloss="a1" data-gloss-state="done">訳文一</p>
		<p>Second block with a translation already attached below it.</p>
		<p data-gloss="a2" data-gloss-state="done">訳文二</p>
	</article>`)
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), nil)

	if n := p.RemoveAnnotations(); n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}
	if n := countAnnotations(doc); n != 0 {
		t.Fatalf("annotations = %d, want 0", n)
	}
}
