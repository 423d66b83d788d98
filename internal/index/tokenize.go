package index

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// minTokenLength drops single-character fragments left over from
// punctuation splitting.
const minTokenLength = 2

// mdParser is reused across calls; goldmark parsers are stateless.
var mdParser = goldmark.New().Parser()

// plainText strips markdown structure from src and returns the visible
// text, including the contents of fenced and indented code blocks.
// Segment text is frequently markdown (notes, messages, summaries);
// indexing the rendered text keeps heading markers and link syntax out
// of the keyword index.
func plainText(src []byte) []byte {
	doc := mdParser.Parse(gmtext.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			buf.WriteByte(' ')
		case *ast.FencedCodeBlock:
			writeLines(&buf, src, t.Lines())
		case *ast.CodeBlock:
			writeLines(&buf, src, t.Lines())
		}
		return ast.WalkContinue, nil
	})
	return buf.Bytes()
}

func writeLines(buf *bytes.Buffer, src []byte, lines *gmtext.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
		buf.WriteByte(' ')
	}
}

// Tokenize converts text into index tokens: markdown is stripped to
// plain text, which is case-folded and split on non-alphanumeric runes.
// Duplicates are removed; order of first occurrence is preserved.
// This is the fixed tokenization contract for both indexing and queries.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(string(plainText([]byte(text))), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if len(w) < minTokenLength || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}
