package prompt

import (
	"fmt"
	"strings"
	"unicode"
)

// Text is a parsed template: literal runs interleaved with {{name}} slots.
type Text struct {
	parts []part
	vars  []string
}

type part struct {
	literal string
	slot    string
}

// Parse splits src into literals and slots. Slot names are word characters;
// anything else between braces is kept as literal text.
func Parse(src string) (*Text, error) {
	t := &Text{}
	seen := make(map[string]bool)
	rest := src
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			t.parts = append(t.parts, part{literal: rest})
			return t, nil
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			return nil, fmt.Errorf("unclosed placeholder at offset %d", len(src)-len(rest)+open)
		}
		name := rest[open+2 : open+2+end]
		if !isWord(name) {
			t.parts = append(t.parts, part{literal: rest[:open+2]})
			rest = rest[open+2:]
			continue
		}
		t.parts = append(t.parts, part{literal: rest[:open]}, part{slot: name})
		if !seen[name] {
			seen[name] = true
			t.vars = append(t.vars, name)
		}
		rest = rest[open+2+end+2:]
	}
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Vars lists slot names in first-use order.
func (t *Text) Vars() []string { return t.vars }

// Execute fills every slot. Values are inserted verbatim and never
// re-scanned, so resume text containing braces cannot inject slots.
func (t *Text) Execute(vars map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	var sb strings.Builder
	for _, p := range t.parts {
		if p.slot != "" {
			sb.WriteString(vars[p.slot])
			continue
		}
		sb.WriteString(p.literal)
	}
	return sb.String(), nil
}

// Render parses and executes src in one step.
func Render(src string, vars map[string]string) (string, error) {
	t, err := Parse(src)
	if err != nil {
		return "", err
	}
	return t.Execute(vars)
}
