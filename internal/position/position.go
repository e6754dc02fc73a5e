// Package position maps byte offsets in a source buffer to human-readable
// line/column coordinates and the physical line that contains them.
package position

const (
	charCR = 0x0d
	charLF = 0x0a
)

// Position is a resolved location inside a source buffer.
type Position struct {
	// Line is the 1-based line number. Only LF terminates a line.
	Line int
	// Column is the 1-based byte column, counted from the last LF.
	Column int
	// Excerpt is the physical line containing the offset, without its terminator.
	Excerpt string
	// CaretOffset is the byte offset of the caret inside Excerpt.
	CaretOffset int
	// CaretWidth is the number of caret marks to draw (at least 1).
	CaretWidth int
}

// Resolve locates a 0-based byte offset in src. It returns false when the
// offset is negative or at or beyond the end of the buffer.
func Resolve(src []byte, offset int) (Position, bool) {
	return ResolveSpan(src, offset, 1)
}

// ResolveSpan is Resolve with a caret that covers length bytes, clamped to
// the end of the physical line.
func ResolveSpan(src []byte, offset, length int) (Position, bool) {
	if offset < 0 || offset >= len(src) {
		return Position{}, false
	}

	line := 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == charLF {
			line++
			lineStart = i + 1
		}
	}

	lineEnd := offset
	for lineEnd < len(src) && src[lineEnd] != charCR && src[lineEnd] != charLF {
		lineEnd++
	}

	if length < 1 {
		length = 1
	}
	width := min(offset+length, lineEnd) - offset
	if width < 1 {
		width = 1
	}

	return Position{
		Line:        line,
		Column:      offset - lineStart + 1,
		Excerpt:     string(src[lineStart:lineEnd]),
		CaretOffset: offset - lineStart,
		CaretWidth:  width,
	}, true
}

// LineOf returns the 1-based line of offset, or 0 when it is out of range.
// It is the cheap form of Resolve used when no excerpt is needed.
func LineOf(src []byte, offset int) int {
	if offset < 0 || offset > len(src) {
		return 0
	}
	line := 1
	for _, b := range src[:offset] {
		if b == charLF {
			line++
		}
	}
	return line
}
