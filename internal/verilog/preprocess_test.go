package verilog

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFS serves ReadFile from a map.
func memFS(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if s, ok := files[path]; ok {
			return []byte(s), nil
		}
		return nil, fs.ErrNotExist
	}
}

func TestPreprocessConditionals(t *testing.T) {
	src := "`define WIDTH 8\n" +
		"`ifdef FAST\n" +
		"fast\n" +
		"`elsif SLOW\n" +
		"slow\n" +
		"`else\n" +
		"other\n" +
		"`endif\n" +
		"x = `WIDTH;\n"

	out, err := Preprocess("a.v", []byte(src), Options{Defines: map[string]string{"SLOW": ""}})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "slow")
	assert.NotContains(t, out.Text, "fast")
	assert.NotContains(t, out.Text, "other")
	assert.Contains(t, out.Text, "x = 8;")

	out, err = Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "other")
	assert.NotContains(t, out.Text, "slow")
}

func TestPreprocessNestedConditionals(t *testing.T) {
	src := "`ifndef A\n" +
		"`ifdef B\nb\n`else\nnot_b\n`endif\n" +
		"`else\n" +
		"`ifdef B\nhidden\n`endif\n" +
		"`endif\n"

	out, err := Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "not_b")
	assert.NotContains(t, out.Text, "hidden")

	out, err = Preprocess("a.v", []byte(src), Options{Defines: map[string]string{"A": "", "B": ""}})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "hidden")
	assert.NotContains(t, out.Text, "not_b")
}

func TestPreprocessFunctionMacro(t *testing.T) {
	src := "`define AND2(a, b) AND2X1 u_``a (.A(a), .B(b), .Y())\n" +
		"`AND2(n1, n2);\n"

	out, err := Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "AND2X1 u_n1 (.A(n1), .B(n2), .Y());")
	require.Contains(t, out.Macros, "AND2")
	assert.Equal(t, []string{"a", "b"}, out.Macros["AND2"].Params)
}

func TestPreprocessNestedMacrosAndContinuation(t *testing.T) {
	src := "`define CELL INVX1\n" +
		"`define INST(n) `CELL n (.A(a), \\\n  .Y(y)) // comment\n" +
		"`INST(u0);\n" +
		"`undef CELL\n" +
		"`ifdef CELL\ndefined\n`endif\n"

	out, err := Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "INVX1 u0 (.A(a), \n  .Y(y));")
	assert.NotContains(t, out.Text, "comment")
	assert.NotContains(t, out.Text, "defined")
}

func TestPreprocessIgnoresToolDirectives(t *testing.T) {
	src := "`timescale 1ns/1ps\n`celldefine\nmodule m; endmodule\n`endcelldefine\n`default_nettype none\n"
	out, err := Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.NotContains(t, out.Text, "timescale")
	assert.NotContains(t, out.Text, "1ps")
	assert.NotContains(t, out.Text, "none")
	assert.Contains(t, out.Text, "module m; endmodule")
}

func TestPreprocessLeavesCommentsAndStrings(t *testing.T) {
	src := "// `UNDEFINED in a comment\n/* `ALSO */ x = \"`NOT_A_MACRO\";\n"
	out, err := Preprocess("a.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, src, out.Text)
}

func TestPreprocessInclude(t *testing.T) {
	files := map[string]string{
		"inc/cells.vh": "module cell; endmodule\n",
	}
	src := "`include \"cells.vh\"\nmodule top; endmodule\n"

	out, err := Preprocess("rtl/top.v", []byte(src), Options{
		IncludeDirs: []string{"inc"},
		ReadFile:    memFS(files),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Text, "module cell; endmodule\n"))
	assert.Contains(t, out.Text, "module top; endmodule")

	path, origin, _, ok := out.Map.Lookup(strings.Index(out.Text, "cell"), 4)
	require.True(t, ok)
	assert.Equal(t, "inc/cells.vh", path)
	assert.Equal(t, 7, origin)

	path, origin, _, ok = out.Map.Lookup(strings.Index(out.Text, "top"), 3)
	require.True(t, ok)
	assert.Equal(t, "rtl/top.v", path)
	assert.Equal(t, strings.Index(src, "top"), origin)

	assert.Contains(t, out.Map.Files, "inc/cells.vh")
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"undefined macro", "module m;\n  assign y = `FOO;\n", 2, "undefined macro `FOO"},
		{"missing endif", "`ifdef A\nx\n", 1, "missing `endif"},
		{"stray endif", "x\n`endif\n", 2, "`endif without `ifdef"},
		{"stray else", "`else\n", 1, "`else without `ifdef"},
		{"elsif after else", "`ifdef A\n`else\n`elsif B\n`endif\n", 3, "`elsif after `else"},
		{"macro arity", "`define M(a, b) a+b\n`M(1)\n", 2, "expects 2 arguments, got 1"},
		{"define without name", "`define\n", 1, "`define needs a macro name"},
		{"include without name", "`include cells.vh\n", 1, "quoted file name"},
		{"recursive macro", "`define A `A\n`A\n", 2, "expands recursively"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess("bad.v", []byte(tt.src), Options{})
			require.Error(t, err)

			var perr *PreprocessError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "bad.v", perr.Path)
			assert.Equal(t, tt.line, perr.Line)
			assert.Contains(t, perr.Msg, tt.msg)
		})
	}
}

func TestPreprocessMissingInclude(t *testing.T) {
	_, err := Preprocess("top.v", []byte("\n`include \"nope.vh\"\n"), Options{
		IncludeDirs: []string{"inc"},
		ReadFile:    memFS(nil),
	})
	require.Error(t, err)

	var perr *PreprocessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, perr.Err.Error(), "inc/nope.vh")
}
