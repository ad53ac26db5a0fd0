package dom

import (
	"testing"

	"golang.org/x/net/html"
)

const queryFixture = `
<body>
  <div id="main" class="content wide">
    <article data-kind="post">
      <p class="lead">first</p>
      <p>second</p>
    </article>
  </div>
  <div role="main">aside</div>
</body>`

func selectAll(t *testing.T, d *Document, sel string) []*html.Node {
	t.Helper()
	var out []*html.Node
	d.View(func(root *html.Node) {
		out = Select(root, sel)
	})
	return out
}

func TestSelect_Tag(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, "p")); got != 2 {
		t.Fatalf("p matches = %d, want 2", got)
	}
}

func TestSelect_ID(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, "#main")); got != 1 {
		t.Fatalf("#main matches = %d, want 1", got)
	}
}

func TestSelect_ClassAmongMany(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, ".content")); got != 1 {
		t.Fatalf(".content matches = %d, want 1", got)
	}
	if got := len(selectAll(t, d, "div.wide")); got != 1 {
		t.Fatalf("div.wide matches = %d, want 1", got)
	}
}

func TestSelect_Attr(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, "article[data-kind]")); got != 1 {
		t.Fatalf("article[data-kind] matches = %d, want 1", got)
	}
	if got := len(selectAll(t, d, "[role=main]")); got != 1 {
		t.Fatalf("[role=main] matches = %d, want 1", got)
	}
	if got := len(selectAll(t, d, "[role=banner]")); got != 0 {
		t.Fatalf("[role=banner] matches = %d, want 0", got)
	}
}

func TestSelect_Descendant(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, "#main article p.lead")); got != 1 {
		t.Fatalf("descendant matches = %d, want 1", got)
	}
	if got := len(selectAll(t, d, "article .lead")); got != 1 {
		t.Fatalf("article .lead matches = %d, want 1", got)
	}
}

func TestSelect_Empty(t *testing.T) {
	d := parseDoc(t, queryFixture)
	if got := len(selectAll(t, d, "")); got != 0 {
		t.Fatalf("empty selector matches = %d, want 0", got)
	}
}
