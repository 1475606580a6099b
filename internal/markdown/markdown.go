// Package markdown renders Markdown down to plain text. The summarizer uses
// it to strip markup before folding a chunk's translation into the running
// document summary.
package markdown

import (
	"bytes"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ToPlainText strips all Markdown markup from md, returning the readable
// text content.
func ToPlainText(md []byte) string {
	return stripTags(toHTML(md))
}

func toHTML(md []byte) string {
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

func stripTags(htmlContent string) string {
	var out bytes.Buffer
	inTag := false
	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				out.WriteRune(ch)
			}
		}
	}
	return out.String()
}
