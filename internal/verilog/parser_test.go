package verilog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topNetlist = `// hierarchical netlist
module top (input a, output y);
  wire n1, n2;
  INVX1 u1 (.A(a), .Y(n1));
  INVX1 u2 (n1, n2), u3 (.A(n2), .Y(y));
  \INVX1  u4 (.A(a), .Y());
  BUFX2 #(.W(2)) b0 (.A(a), .Y());
  assign y = n1 & n2;
  generate
    for (genvar i = 0; i < 2; i = i + 1) begin : g
      INVX1 gi (.A(a), .Y());
    end
  endgenerate
  always @(posedge a) begin
    if (a) q <= 1'b0; else q <= 1'b1;
  end
  my_t data;
  and g1 (y, a, n1);
endmodule
`

func instantiated(t *testing.T, tree *Tree) []string {
	t.Helper()
	var names []string
	for n := range tree.All() {
		if n.Kind != ModuleInstantiation {
			continue
		}
		id := Find(n.Child(ModuleIdentifier), SimpleIdentifier, EscapedIdentifier)
		name, ok := tree.IdentifierName(id)
		require.True(t, ok)
		names = append(names, name)
	}
	return names
}

func countKind(tree *Tree, kind Kind) int {
	n := 0
	for node := range tree.All() {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

func TestParseStructuralNetlist(t *testing.T) {
	tree, err := Parse("top.v", []byte(topNetlist), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"INVX1", "INVX1", "INVX1", "BUFX2", "INVX1"}, instantiated(t, tree))
	assert.Equal(t, 1, countKind(tree, ModuleDeclaration))
	assert.Equal(t, 1, countKind(tree, GateInstantiation))
	assert.Equal(t, 1, countKind(tree, ContinuousAssign))
	assert.Equal(t, 1, countKind(tree, GenerateRegion))
	assert.Equal(t, 1, countKind(tree, ProceduralBlock))
	assert.Equal(t, 1, countKind(tree, ParameterValueAssignment))
	assert.Equal(t, 1, countKind(tree, DataDeclaration))

	mod := tree.Root.Children[0]
	name, ok := tree.IdentifierName(mod.Child(SimpleIdentifier))
	require.True(t, ok)
	assert.Equal(t, "top", name)
	assert.Len(t, mod.ChildrenOf(PortDeclaration), 2)

	var multi *Node
	for n := range tree.All() {
		if n.Kind == ModuleInstantiation && len(n.ChildrenOf(HierarchicalInstance)) == 2 {
			multi = n
		}
	}
	require.NotNil(t, multi, "one statement with two instances is one instantiation node")
	u3 := multi.ChildrenOf(HierarchicalInstance)[1]
	inst, _ := tree.IdentifierName(u3.Child(SimpleIdentifier))
	assert.Equal(t, "u3", inst)
	assert.Len(t, u3.ChildrenOf(PortConnection), 2)
}

func TestParseEscapedIdentifier(t *testing.T) {
	tree, err := Parse("e.v", []byte("module \\top$1 ; \\cell.a  \\u0[1] (); endmodule"), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"cell.a"}, instantiated(t, tree))
	name, ok := tree.IdentifierName(tree.Root.Children[0].Child(EscapedIdentifier))
	require.True(t, ok)
	assert.Equal(t, "top$1", name)
}

func TestParseNonAnsiAndDeclarations(t *testing.T) {
	src := `module m (a, b);
  input a;
  output [3:0] b;
  parameter W = 4, D = 2;
  my_t x, y = 1;
  function f; input i; f = i; endfunction
  specify (a => b) = 1; endspecify
  INVX1 u (.A(a));
endmodule
module empty; endmodule
`
	tree, err := Parse("m.v", []byte(src), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"INVX1"}, instantiated(t, tree))
	assert.Equal(t, 2, countKind(tree, ModuleDeclaration))
	assert.Equal(t, 2, countKind(tree, Skipped))

	var decl *Node
	for n := range tree.All() {
		if n.Kind == DataDeclaration {
			decl = n
		}
	}
	require.NotNil(t, decl)
	assert.Len(t, decl.Children, 2, "initializers are not declared names")

	var param *Node
	for n := range tree.All() {
		if n.Kind == ParameterDeclaration {
			param = n
		}
	}
	require.NotNil(t, param)
	assert.Len(t, param.Children, 2)
}

func TestParseGenerateCaseAndIf(t *testing.T) {
	src := `module m;
  if (W == 1) begin : one
    INVX1 u (.A(a));
  end else begin
    BUFX2 u (.A(a));
  end
  case (W)
    1, 2: INVX1 c1 (.A(a));
    default: ;
  endcase
endmodule
`
	tree, err := Parse("m.v", []byte(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"INVX1", "BUFX2", "INVX1"}, instantiated(t, tree))
}

func TestParseErrorLocation(t *testing.T) {
	src := "module top;\n  wire a;\n  assign y = ;\nendmodule\n"

	_, err := Parse("top.v", []byte(src), Options{})
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "top.v", perr.Path)
	assert.Equal(t, 35, perr.Offset)
	assert.Equal(t, 1, perr.Length)
	assert.Equal(t, 3, perr.Line)
	assert.Contains(t, perr.Msg, "expected expression")
	assert.True(t, perr.Located())
	assert.Equal(t, "top.v:3: expected expression, found ';'", perr.Error())
}

func TestParseErrorInIncludedFile(t *testing.T) {
	files := map[string]string{
		"cells.vh": "module leaf;\n  assign = x;\nendmodule\n",
	}
	src := "`include \"cells.vh\"\nmodule top; endmodule\n"

	_, err := Parse("top.v", []byte(src), Options{ReadFile: memFS(files)})
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "cells.vh", perr.Path)
	assert.Equal(t, 22, perr.Offset)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, perr.Msg, "expected net lvalue")
}

func TestParseErrorInsideMacroPointsAtUse(t *testing.T) {
	src := "`define BAD = ;\nmodule m;\n  assign y `BAD\nendmodule\n"

	_, err := Parse("m.v", []byte(src), Options{})
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 37, perr.Offset)
	assert.Equal(t, 4, perr.Length)
	assert.Equal(t, 3, perr.Line)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		offset int
		msg    string
	}{
		{"missing endmodule", "module top;\n  wire a;\n", 0, "missing 'endmodule'"},
		{"missing semicolon", "module m;\n  wire a\n  assign b = c;\nendmodule\n", 21, "expected ';'"},
		{"stray token at top", "wire a;\n", 0, "expected module declaration"},
		{"unclosed paren", "module m;\n  INVX1 u (.A(a);\nendmodule\n", 26, "expected ')'"},
		{"unterminated comment", "module m; /* oops\nendmodule\n", 10, "unterminated block comment"},
		{"nested module", "module a;\nmodule b;\nendmodule\n", 10, "expected 'endmodule'"},
		{"missing instance name", "module m;\n  INVX1 (.A(a));\nendmodule\n", 18, "expected instance name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.v", []byte(tt.src), Options{})
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %T: %v", err, err)
			assert.Equal(t, tt.offset, perr.Offset)
			assert.Contains(t, perr.Msg, tt.msg)
		})
	}
}

func TestParsePreprocessErrorIsNotParseError(t *testing.T) {
	_, err := Parse("m.v", []byte("module m; `UNDEF endmodule"), Options{})
	require.Error(t, err)

	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
	var pp *PreprocessError
	assert.True(t, errors.As(err, &pp))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cells.vh"), []byte("`define CELL INVX1\n"), 0o644))
	path := filepath.Join(dir, "top.v")
	require.NoError(t, os.WriteFile(path, []byte("`include \"cells.vh\"\nmodule top; `CELL u (); endmodule\n"), 0o644))

	tree, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, path, tree.Path)
	assert.Equal(t, []string{"INVX1"}, instantiated(t, tree))

	_, err = ParseFile(filepath.Join(dir, "missing.v"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTreeGetOutOfRange(t *testing.T) {
	tree := &Tree{Text: "abc"}
	_, ok := tree.Get(Locate{Offset: 2, Len: 5})
	assert.False(t, ok)
	_, ok = tree.Get(Locate{Offset: -1, Len: 1})
	assert.False(t, ok)
	_, ok = tree.IdentifierName(nil)
	assert.False(t, ok)
	s, ok := tree.Get(Locate{Offset: 1, Len: 2})
	assert.True(t, ok)
	assert.Equal(t, "bc", s)
}
