package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
)

// Dependents maps a cell or module name to the scopes that instantiate it.
type Dependents map[string]map[string]bool

// BuildDependents inverts the instance relation of tables: for each
// instantiated target, the subcircuits and modules containing an instance
// of it.
func BuildDependents(tables facts.Tables) Dependents {
	graph := make(Dependents)
	for _, inst := range tables.Instances {
		if inst.Target == "" || inst.Scope == "" || inst.Target == inst.Scope {
			continue
		}
		if graph[inst.Target] == nil {
			graph[inst.Target] = make(map[string]bool)
		}
		graph[inst.Target][inst.Scope] = true
	}
	return graph
}

// Impact lists the scopes affected by a change to Root, level by level:
// level 1 instantiates Root directly, level 2 instantiates level 1, and so
// on. A scope appears once, at its shallowest level.
type Impact struct {
	Root   string
	Levels [][]string
}

// ComputeImpact walks dependents breadth-first from root.
func ComputeImpact(root string, dependents Dependents) Impact {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for dep := range dependents[f] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return Impact{Root: root, Levels: levels}
}

// FormatImpact renders an impact report as indented text.
func FormatImpact(report Impact) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	if len(report.Levels) == 0 {
		b.WriteString("    not instantiated\n")
	}
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
