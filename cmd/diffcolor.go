package cmd

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// colorizeDiff runs unified diff text through chroma's terminal formatter.
// On any failure the plain text comes back unchanged.
func colorizeDiff(text string, colored bool) string {
	if !colored || text == "" {
		return text
	}
	lexer := lexers.Get("diff")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return text
	}
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return text
	}
	return sb.String()
}
