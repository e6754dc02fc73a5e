package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
)

const src = "module top;\n  INVX1 u1 (.A(a));\nendmodule\n"

func TestDumpKind(t *testing.T) {
	tree, err := verilog.Parse("top.v", []byte(src), verilog.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, tree, "ModuleInstantiation"))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], `ModuleInstantiation top.v:2 "INVX1 u1`), lines[0])
	assert.Equal(t, `  ModuleIdentifier top.v:2 "INVX1"`, lines[1])
	assert.Contains(t, buf.String(), "  HierarchicalInstance top.v:2 \"u1")
}

func TestDumpWholeTree(t *testing.T) {
	tree, err := verilog.Parse("top.v", []byte(src), verilog.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, tree, ""))
	assert.True(t, strings.HasPrefix(buf.String(), "SourceText"), buf.String())
	assert.Contains(t, buf.String(), "\n  ModuleDeclaration top.v:1 ")
}

func TestDumpKindMissing(t *testing.T) {
	tree, err := verilog.Parse("top.v", []byte(src), verilog.Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = dump(&buf, tree, "GateInstantiation")
	assert.EqualError(t, err, "no GateInstantiation node found")
	assert.Empty(t, buf.String())
}
