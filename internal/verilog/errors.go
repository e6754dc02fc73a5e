package verilog

import (
	"fmt"

	"github.com/robert-at-pretension-io/xtorcount/internal/position"
)

// ParseError is a syntax error located in one of the netlist files. Path is
// the file that holds the offending text, which may be an included file.
type ParseError struct {
	Path   string
	Line   int // 0 when Offset is unknown
	Offset int // byte offset in Path, -1 when unknown
	Length int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Located reports whether the error carries a usable file offset.
func (e *ParseError) Located() bool { return e.Offset >= 0 }

// newParseError maps an offset of the preprocessed text back to its file.
func newParseError(top string, src *Source, offset, length int, msg string) *ParseError {
	e := &ParseError{Path: top, Offset: -1, Msg: msg}
	if path, origin, n, ok := src.Map.Lookup(offset, length); ok {
		e.Path = path
		e.Offset = origin
		e.Length = max(n, 1)
		e.Line = position.LineOf(src.Map.Files[path], origin)
	}
	return e
}
