package diagnostic

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/xtorcount/internal/position"
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
)

// badNetlist is 200 bytes on 5 lines; the missing comma puts a syntax
// error at byte 120.
var badNetlist = "module top (input a, output y);\n" +
	"  wire n1, n2; // nets from u1 out to u2\n" +
	"  INVX1 u1 (.A(a), .Y(n1));\n" +
	"  INVX1 u2 (.A(n1) .Y(n2));\n" +
	"endmodule // " + strings.Repeat("-", 57) + "\n"

func files(m map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if s, ok := m[path]; ok {
			return []byte(s), nil
		}
		return nil, fs.ErrNotExist
	}
}

func newTestReporter(out *bytes.Buffer, m map[string]string) *Reporter {
	return NewReporter(out, WithColorProfile(termenv.Ascii), WithReadFile(files(m)))
}

func TestReportLocatedParseError(t *testing.T) {
	require.Len(t, badNetlist, 200)

	_, err := verilog.Parse("bad.v", []byte(badNetlist), verilog.Options{})
	require.Error(t, err)

	f := FromError("bad.v", err)
	require.NotNil(t, f.Loc)
	assert.Equal(t, 120, f.Loc.Offset)

	var out bytes.Buffer
	newTestReporter(&out, map[string]string{"bad.v": badNetlist}).Report(f)

	want := `parse failed: "bad.v"
 bad.v:4:20
  |
4 |   INVX1 u2 (.A(n1) .Y(n2));
  |                    ^ expected ')', found '.'
`
	assert.Equal(t, want, out.String())
	assert.NotContains(t, out.String(), "Transistors:")
}

func TestReportUsesIncludedFile(t *testing.T) {
	sources := map[string]string{
		"top.v":    "`include \"cells.vh\"\nmodule top; endmodule\n",
		"cells.vh": "module leaf;\n  assign = x;\nendmodule\n",
	}
	_, err := verilog.Parse("top.v", []byte(sources["top.v"]), verilog.Options{ReadFile: files(sources)})
	require.Error(t, err)

	var out bytes.Buffer
	newTestReporter(&out, sources).Report(FromError("top.v", err))

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, `parse failed: "top.v"`, lines[0])
	assert.Equal(t, " cells.vh:2:10", lines[1])
	assert.Equal(t, "2 |   assign = x;", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "  |          ^ "), lines[4])
}

func TestReportErrorChain(t *testing.T) {
	cause := fmt.Errorf("searched inc/cells.vh: %w", fs.ErrNotExist)
	err := &verilog.PreprocessError{Path: "top.v", Line: 1, Msg: `cannot open include file "cells.vh"`, Err: cause}

	f := FromError("top.v", err)
	assert.Nil(t, f.Loc)

	var out bytes.Buffer
	newTestReporter(&out, nil).Report(f)

	want := `parse failed: "top.v" (top.v:1: cannot open include file "cells.vh")
  Caused by searched inc/cells.vh: file does not exist
  Caused by file does not exist
`
	assert.Equal(t, want, out.String())
}

func TestReportDegradesToChain(t *testing.T) {
	perr := &verilog.ParseError{Path: "top.v", Line: 9, Offset: 500, Length: 1, Msg: "boom"}

	t.Run("offset past end", func(t *testing.T) {
		var out bytes.Buffer
		newTestReporter(&out, map[string]string{"top.v": "module m;\n"}).Report(FromError("top.v", perr))
		assert.Equal(t, "parse failed: \"top.v\" (top.v:9: boom)\n", out.String())
	})

	t.Run("unreadable file", func(t *testing.T) {
		var out bytes.Buffer
		newTestReporter(&out, nil).Report(FromError("top.v", perr))
		assert.Equal(t, "parse failed: \"top.v\" (top.v:9: boom)\n", out.String())
	})

	t.Run("no location", func(t *testing.T) {
		unlocated := &verilog.ParseError{Path: "top.v", Offset: -1, Msg: "boom"}
		f := FromError("top.v", unlocated)
		assert.Nil(t, f.Loc)

		var out bytes.Buffer
		newTestReporter(&out, map[string]string{"top.v": "module m;\n"}).Report(f)
		assert.Equal(t, "parse failed: \"top.v\" (top.v: boom)\n", out.String())
	})
}

func TestReportWrappedParseError(t *testing.T) {
	perr := &verilog.ParseError{Path: "top.v", Line: 1, Offset: 7, Length: 3, Msg: "bad name"}
	err := fmt.Errorf("parsing netlist: %w", perr)

	var out bytes.Buffer
	newTestReporter(&out, map[string]string{"top.v": "module 1ab;\n"}).Report(FromError("top.v", err))

	assert.Contains(t, out.String(), " top.v:1:8\n")
	assert.Contains(t, out.String(), "1 | module 1ab;\n")
	assert.Contains(t, out.String(), "  |        ^^^ bad name\n")
}

func TestCaretLayout(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		offset int
		length int
		pad    string
		width  int
	}{
		{"plain", "abc def", 4, 3, "    ", 3},
		{"tabs are kept", "\t\tx = ;", 6, 1, "\t\t    ", 1},
		{"wide runes", "名前 = ;", 9, 1, "       ", 1},
		{"caret at line end", "abc\n", 3, 1, "   ", 1},
		{"span clamped to line", "ab\ncd", 1, 10, " ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ok := position.ResolveSpan([]byte(tt.src), tt.offset, tt.length)
			require.True(t, ok)
			pad, width := caretLayout(pos)
			assert.Equal(t, tt.pad, pad)
			assert.Equal(t, tt.width, width)
		})
	}
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "", Failure{}.Message())
	assert.Equal(t, "x", Failure{Err: errors.New("x")}.Message())
	assert.Equal(t, "bad", Failure{Err: &verilog.ParseError{Msg: "bad"}}.Message())
}
