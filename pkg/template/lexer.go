package template

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenVar            // {{ ... }}
	tokenTag            // {% ... %}
)

// Position is a 1-based line and column in the template source.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type token struct {
	kind  tokenKind
	value string // text, or trimmed inner content for var and tag tokens
	pos   Position
}

// lex splits src into text, variable and tag tokens. An opening delimiter
// with no matching close is dropped with a diagnostic together with the word
// that follows it, and lexing continues after that word.
func lex(src string) ([]token, []Diagnostic) {
	var (
		tokens []token
		diags  []Diagnostic
		text   strings.Builder
	)

	line, col := 1, 1
	textPos := Position{Line: 1, Column: 1}

	advance := func(s string) {
		for _, r := range s {
			if r == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
	}
	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, token{kind: tokenText, value: text.String(), pos: textPos})
			text.Reset()
		}
	}

	i := 0
	for i < len(src) {
		open := nextDelimiter(src[i:])
		if open < 0 {
			if text.Len() == 0 {
				textPos = Position{Line: line, Column: col}
			}
			text.WriteString(src[i:])
			advance(src[i:])
			break
		}

		if open > 0 {
			if text.Len() == 0 {
				textPos = Position{Line: line, Column: col}
			}
			text.WriteString(src[i : i+open])
			advance(src[i : i+open])
			i += open
		}

		opener := src[i : i+2]
		closer := "}}"
		kind := tokenVar
		if opener == "{%" {
			closer = "%}"
			kind = tokenTag
		}
		pos := Position{Line: line, Column: col}

		end := strings.Index(src[i+2:], closer)
		if end < 0 {
			diags = append(diags, Diagnostic{
				Message:  fmt.Sprintf("unterminated %q dropped", opener),
				Position: pos,
			})
			dropped := src[i : i+2+unterminatedWord(src[i+2:])]
			advance(dropped)
			i += len(dropped)
			continue
		}

		flush()
		inner := src[i+2 : i+2+end]
		tokens = append(tokens, token{kind: kind, value: strings.TrimSpace(inner), pos: pos})
		consumed := src[i : i+2+end+2]
		advance(consumed)
		i += len(consumed)
	}
	flush()

	return tokens, diags
}

// nextDelimiter returns the index of the next "{{" or "{%", or -1.
func nextDelimiter(s string) int {
	for j := 0; j+1 < len(s); j++ {
		if s[j] == '{' && (s[j+1] == '{' || s[j+1] == '%') {
			return j
		}
	}
	return -1
}

// unterminatedWord returns the length of the expression word after an
// unterminated opener: leading blanks plus the following run of non-space
// characters, stopping at the next delimiter.
func unterminatedWord(s string) int {
	j := 0
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	for j < len(s) {
		c := s[j]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || nextDelimiter(s[j:]) == 0 {
			break
		}
		j++
	}
	return j
}
