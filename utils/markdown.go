package utils

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderMarkdown converts markdown source to HTML with the extensions
// archive documents rely on: autolinking, tables, fenced code blocks,
// strikethrough, and superscript/subscript.
func RenderMarkdown(source []byte) string {
	extensions := parser.NoIntraEmphasis |
		parser.Autolink |
		parser.Tables |
		parser.FencedCode |
		parser.Strikethrough |
		parser.SuperSubscript

	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(source)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.Render(doc, renderer))
}
