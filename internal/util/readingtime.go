package util

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

const (
	wordsPerMinute = 200
	// CJK text has no word boundaries; count characters instead.
	cjkCharsPerMinute = 300
	// Readers linger on code. Half a minute per block is a decent estimate.
	minutesPerCodeBlock = 0.5
)

type ReadingTime struct {
	Minutes    int
	Words      int
	CJKChars   int
	CodeBlocks int
}

func (r ReadingTime) String() string {
	if r.Minutes == 1 {
		return "1 min read"
	}
	return fmt.Sprintf("%d min read", r.Minutes)
}

// EstimateReadingTime walks the markdown AST and estimates how long the
// rendered post takes to read.
func EstimateReadingTime(md string) ReadingTime {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))

	var rt ReadingTime
	var prose strings.Builder

	// Fenced code lives in the CodeBlock literal, never in child Text nodes,
	// so Text can accumulate unconditionally.
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.CodeBlock:
			if entering {
				rt.CodeBlocks++
			}
		case *ast.Text:
			if entering {
				prose.WriteString(string(n.Literal))
				prose.WriteByte(' ')
			}
		case *ast.Code:
			if entering {
				prose.WriteString(string(n.Literal))
				prose.WriteByte(' ')
			}
		}
		return ast.GoToNext
	})

	text := prose.String()
	for _, ch := range text {
		if unicode.Is(unicode.Han, ch) {
			rt.CJKChars++
		}
	}
	for _, w := range strings.Fields(text) {
		if strings.ContainsFunc(w, func(c rune) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }) {
			rt.Words++
		}
	}

	minutes := float64(rt.Words)/wordsPerMinute +
		float64(rt.CJKChars)/cjkCharsPerMinute +
		float64(rt.CodeBlocks)*minutesPerCodeBlock
	rt.Minutes = int(math.Ceil(math.Max(minutes, 1.0)))

	return rt
}
