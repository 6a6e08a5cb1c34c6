package textextract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reSpaceRun   = regexp.MustCompile(` {2,}`)
	reLineEdges  = regexp.MustCompile(` *\n *`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Cleanup normalizes extracted text: line endings become \n, control
// characters are dropped, horizontal whitespace collapses to one space, at
// most one blank line separates paragraphs, and the result is trimmed.
// Cleanup(Cleanup(s)) == Cleanup(s).
func Cleanup(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
	s = reSpaceRun.ReplaceAllString(s, " ")
	s = reLineEdges.ReplaceAllString(s, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
