package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
)

func sampleTables() facts.Tables {
	return facts.Tables{
		Files: []facts.FileRow{
			{Path: "cells.cdl", Kind: "cdl"},
			{Path: "top.v", Kind: "verilog"},
		},
		Subcircuits: []facts.SubcircuitRow{
			{Name: "INVX1", File: "cells.cdl", Line: 1, Pins: 4, Elements: 2, Transistors: 2},
			{Name: "BUFX2", File: "cells.cdl", Line: 5, Pins: 4, Elements: 2, Transistors: 0},
			{Name: "SPARE", File: "cells.cdl", Line: 10, Pins: 2, Elements: 0, Transistors: 0},
		},
		Modules: []facts.ModuleRow{
			{Name: "top", File: "top.v", Line: 1},
		},
		Instances: []facts.InstanceRow{
			{Name: "X1", Target: "INVX1", Scope: "BUFX2", Kind: "cdl", File: "cells.cdl", Line: 6},
			{Name: "u1", Target: "BUFX2", Scope: "top", Kind: "verilog", File: "top.v", Line: 2},
			{Name: "u2", Target: "NOR2X1", Scope: "top", Kind: "verilog", File: "top.v", Line: 3},
		},
		Cells: []facts.CellRow{},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(context.Background())
	require.NoError(t, err)
	return engine
}

func rulesOf(vs []Violation) []string {
	var rules []string
	for _, v := range vs {
		rules = append(rules, v.Rule)
	}
	return rules
}

func TestEvaluateDefaults(t *testing.T) {
	engine := newEngine(t)

	result, err := engine.Evaluate(context.Background(), NewInput(sampleTables(), nil))
	require.NoError(t, err)

	// INVX1 is only used by BUFX2, which is enough to count as instantiated.
	want := []Violation{
		{Rule: RuleEmptySubcircuit, Severity: "warning", File: "cells.cdl", Line: 10, Message: "subcircuit SPARE has no elements"},
		{Rule: RuleUnusedSubcircuit, Severity: "info", File: "cells.cdl", Line: 10, Message: "subcircuit SPARE is never instantiated"},
		{Rule: RuleUnknownModule, Severity: "warning", File: "top.v", Line: 3, Message: "instance u2 in top refers to undefined NOR2X1"},
	}
	assert.Equal(t, want, result.Violations)
	assert.Equal(t, Summary{TotalViolations: 3, Errors: 0, Warnings: 2, Info: 1}, result.Summary)
}

func TestEvaluateSeverityOverride(t *testing.T) {
	engine := newEngine(t)

	input := NewInput(sampleTables(), map[string]string{
		RuleUnknownModule:    "error",
		RuleUnusedSubcircuit: "off",
	})
	result, err := engine.Evaluate(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{RuleEmptySubcircuit, RuleUnknownModule}, rulesOf(result.Violations))
	assert.Equal(t, "error", result.Violations[1].Severity)
	assert.Equal(t, Summary{TotalViolations: 2, Errors: 1, Warnings: 1}, result.Summary)
}

func TestEvaluateAllOff(t *testing.T) {
	engine := newEngine(t)

	sev := make(map[string]string)
	for rule := range Rules {
		sev[rule] = "off"
	}
	result, err := engine.Evaluate(context.Background(), NewInput(sampleTables(), sev))
	require.NoError(t, err)

	assert.Empty(t, result.Violations)
	assert.NotNil(t, result.Violations)
	assert.Equal(t, Summary{}, result.Summary)
}

func TestEvaluateModuleDeclaredInNetlist(t *testing.T) {
	engine := newEngine(t)

	tables := sampleTables()
	tables.Modules = append(tables.Modules, facts.ModuleRow{Name: "NOR2X1", File: "top.v", Line: 20})
	tables.Subcircuits = tables.Subcircuits[:2]

	result, err := engine.Evaluate(context.Background(), NewInput(tables, nil))
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestNewInputCopiesSeverities(t *testing.T) {
	sev := map[string]string{RuleEmptySubcircuit: "error"}
	input := NewInput(facts.Tables{}, sev)
	sev[RuleEmptySubcircuit] = "off"

	assert.Equal(t, "error", input.Severities[RuleEmptySubcircuit])
	assert.NotNil(t, NewInput(facts.Tables{}, nil).Severities)
}
