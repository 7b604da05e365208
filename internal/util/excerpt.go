package util

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Excerpt strips markdown formatting from content and returns the first
// wordLimit words of prose. Headings and code blocks are skipped.
func Excerpt(md string, wordLimit int) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))

	var words []string
	truncated := false

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering || truncated {
			return ast.SkipChildren
		}

		switch n := node.(type) {
		case *ast.CodeBlock, *ast.Heading:
			return ast.SkipChildren
		case *ast.Text:
			for _, w := range strings.Fields(string(n.Literal)) {
				if len(words) >= wordLimit {
					truncated = true
					return ast.Terminate
				}
				words = append(words, w)
			}
		}
		return ast.GoToNext
	})

	result := strings.Join(words, " ")
	if result == "" {
		return result
	}

	if truncated {
		return result + "..."
	}
	if !strings.HasSuffix(result, ".") && !strings.HasSuffix(result, "!") && !strings.HasSuffix(result, "?") {
		result += "..."
	}
	return result
}
