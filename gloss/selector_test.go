package gloss

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/hazyhaar/domgloss/dom"
)

func candidateXPaths(p *Pipeline) []string {
	var out []string
	p.doc.View(func(root *html.Node) {
		for _, n := range p.selectCandidates(root) {
			out = append(out, dom.XPath(n))
		}
	})
	return out
}

func TestSelectCandidates_Idempotent(t *testing.T) {
	doc := testDoc(t, `
		<nav class="nav"><a href="/">A navigation link with plenty of text</a></nav>
		<article>
			<p>The first paragraph of the article body, long enough to qualify.</p>
			<p>The second paragraph of the article body, also long enough.</p>
			<p>short</p>
			<h2>A heading that carries enough text to qualify</h2>
		</article>`)
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), nil)

	first := candidateXPaths(p)
	second := candidateXPaths(p)
	if len(first) != 3 {
		t.Fatalf("candidates = %d, want 3 (%v)", len(first), first)
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Fatalf("selection not stable: %v then %v", first, second)
	}
}

func TestSelectCandidates_Exclusions(t *testing.T) {
	doc := testDoc(t, `
		<article>
			<p>A perfectly ordinary qualifying paragraph of content.</p>
			<p hidden>A hidden paragraph that must never be selected here.</p>
			<div style="display:none"><p>Inside an invisible wrapper element.</p></div>
			<pre><code>fmt.Println("code blocks are never translated")</code></pre>
			<div class="sidebar"><p>Boilerplate inside a blocklisted wrapper.</p></div>
			<p data-gloss="x">An annotation element is never itself a source.</p>
		</article>`)
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), nil)

	got := candidateXPaths(p)
	if len(got) != 1 {
		t.Fatalf("candidates = %v, want exactly the first paragraph", got)
	}
}

func TestSelectCandidates_SkipsAnnotated(t *testing.T) {
	doc := testDoc(t, `
		<article>
			<p>A paragraph that already carries a translation slot.</p>
			<p data-gloss="a1" data-gloss-state="done">既訳</p>
			<p>A paragraph that still needs one, long enough to qualify.</p>
		</article>`)
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), nil)

	got := candidateXPaths(p)
	if len(got) != 1 || !strings.HasSuffix(got[0], "p[3]") {
		t.Fatalf("candidates = %v, want only the unannotated paragraph", got)
	}
}

func TestFindContainer_Density(t *testing.T) {
	long := strings.Repeat("Dense readable sentence content. ", 10)
	doc := testDoc(t, `
		<div class="wrapper">
			<div id="links"><a href="/a">`+long+`</a></div>
			<div id="story">
				<p>`+long+`</p>
				<p>`+long+`</p>
				<p>`+long+`</p>
			</div>
		</div>`)
	cfg := testConfig()
	cfg.ContentSelectors = []string{"article"} // force the density path
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), cfg)

	var container *html.Node
	doc.View(func(root *html.Node) {
		container = p.findContainer(root)
	})
	if container == nil || dom.Attr(container, "id") != "story" {
		t.Fatalf("container = %v, want #story", container)
	}
	if got := candidateXPaths(p); len(got) != 3 {
		t.Fatalf("candidates = %v, want the three story paragraphs", got)
	}
}

func TestFindContainer_BodyFallback(t *testing.T) {
	doc := testDoc(t, `<p>One lonely paragraph, below every container threshold.</p>`)
	cfg := testConfig()
	cfg.ContentSelectors = []string{"article"}
	p := newTestPipeline(t, doc, &fixedDetector{tag: language.English}, loopbackPair(), cfg)

	var container *html.Node
	doc.View(func(root *html.Node) {
		container = p.findContainer(root)
	})
	if container == nil || container.Data != "body" {
		t.Fatalf("container = %v, want body fallback", container)
	}
	if got := candidateXPaths(p); len(got) != 1 {
		t.Fatalf("candidates = %v, want the lone paragraph", got)
	}
}
