package cdl

import (
	"bytes"
	"strings"
)

// field is one whitespace-separated word of a statement.
type field struct {
	text string
	at   Pos
}

// statement is a logical line: a physical line plus its "+" continuations.
type statement struct {
	at     Pos
	fields []field
}

type lineScanner struct {
	src  []byte
	off  int
	line int
}

// next returns the next physical line without its terminator.
func (s *lineScanner) next() (text string, start, line int, ok bool) {
	if s.off >= len(s.src) {
		return "", 0, 0, false
	}
	start = s.off
	end := bytes.IndexByte(s.src[start:], '\n')
	if end < 0 {
		end = len(s.src)
	} else {
		end += start
	}
	s.off = end + 1
	s.line++
	return strings.TrimRight(string(s.src[start:end]), "\r"), start, s.line, true
}

// tokenize splits text into fields. A "$" at the start of a field opens an
// inline comment that runs to the end of the line. "W = 1u" and "W= 1u" are
// folded into "W=1u".
func tokenize(text string, at Pos) []field {
	var raw []field
	i := 0
	for i < len(text) {
		for i < len(text) && isBlank(text[i]) {
			i++
		}
		if i >= len(text) || text[i] == '$' {
			break
		}
		start := i
		for i < len(text) && !isBlank(text[i]) {
			i++
		}
		raw = append(raw, field{
			text: text[start:i],
			at:   Pos{Offset: at.Offset + start, Line: at.Line, Column: at.Column + start},
		})
	}

	var out []field
	for _, f := range raw {
		n := len(out)
		if n > 0 && (strings.HasPrefix(f.text, "=") || strings.HasSuffix(out[n-1].text, "=")) {
			out[n-1].text += f.text
			continue
		}
		out = append(out, f)
	}
	return out
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v'
}

func texts(fields []field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.text)
	}
	return out
}

// splitParam splits "K=V"; ok is false for plain words.
func splitParam(s string) (key, value string, ok bool) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
