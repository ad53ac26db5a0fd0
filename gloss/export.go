package gloss

import (
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domgloss/dom"
)

// ExportMarkdown renders the annotated document to markdown for
// inspection: each translated block appears beneath its source, the way
// it reads on the page.
func (p *Pipeline) ExportMarkdown() (string, error) {
	var rendered string
	p.doc.View(func(root *html.Node) {
		rendered = dom.Render(root)
	})

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(rendered)
	if err != nil {
		return "", fmt.Errorf("gloss: export markdown: %w", err)
	}
	return md, nil
}
