// Package render turns note text, which is Markdown, into what the command
// line shows: a one-line summary for lists and HTML for export.
package render

import (
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	gmtext "github.com/yuin/goldmark/text"
)

// Ellipsis marks a summary cut short.
const Ellipsis = " …"

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML writes text rendered as an HTML fragment. Raw HTML in the note is
// omitted.
func HTML(w io.Writer, text string) error {
	return markdown.Convert([]byte(text), w)
}

// Summary returns the first line of the first block with content, stripped
// of Markdown syntax. Ellipsis is appended when anything follows it.
func Summary(text string) string {
	source := []byte(text)
	doc := markdown.Parser().Parse(gmtext.NewReader(source))

	var (
		b    strings.Builder
		done bool
		more bool
	)
	add := func(value []byte, lastOnLine bool) ast.WalkStatus {
		if strings.TrimSpace(string(value)) == "" && b.Len() == 0 {
			return ast.WalkContinue
		}
		if done {
			more = true
			return ast.WalkStop
		}
		b.Write(value)
		if lastOnLine {
			done = true
		}
		return ast.WalkContinue
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				done = true
			}
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			return add(n.Segment.Value(source), n.SoftLineBreak() || n.HardLineBreak()), nil
		case *ast.String:
			return add(n.Value, false), nil
		case *ast.AutoLink:
			return add(n.Label(source), false), nil
		}
		// Code and HTML blocks carry lines instead of inline children.
		if n.Type() == ast.TypeBlock && !n.HasChildren() && n.Lines().Len() > 0 {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				if status := add(line.Value(source), true); status == ast.WalkStop {
					return status, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})

	s := strings.TrimSpace(b.String())
	if more && s != "" {
		return s + Ellipsis
	}
	return s
}
