package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/xtorcount/internal/extractor"
	"github.com/robert-at-pretension-io/xtorcount/internal/xtor"
)

// Tables is the relational fact model of one counting run.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files       []FileRow       `json:"files"`
	Subcircuits []SubcircuitRow `json:"subcircuits"`
	Modules     []ModuleRow     `json:"modules"`
	Instances   []InstanceRow   `json:"instances"`
	Cells       []CellRow       `json:"cells"`
}

type FileRow struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type SubcircuitRow struct {
	Name        string `json:"name"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Pins        int    `json:"pins"`
	Elements    int    `json:"elements"`
	Transistors int    `json:"transistors"`
}

type ModuleRow struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

type InstanceRow struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Scope  string `json:"scope"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// CellRow is one entry of the transistor table after counting.
type CellRow struct {
	Name        string `json:"name"`
	Transistors int64  `json:"transistors"`
	Instances   int64  `json:"instances"`
	Subtotal    int64  `json:"subtotal"`
}

// BuildTables converts extractor FileFacts and the counted table into a
// normalized relational model. table may be nil.
func BuildTables(facts []extractor.FileFacts, table xtor.Table) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, f := range facts {
		if !seenFiles[f.File] {
			seenFiles[f.File] = true
			tables.Files = append(tables.Files, FileRow{Path: f.File, Kind: f.Kind})
		}

		for _, s := range f.Subcircuits {
			tables.Subcircuits = append(tables.Subcircuits, SubcircuitRow{
				Name:        s.Name,
				File:        f.File,
				Line:        s.Line,
				Pins:        len(s.Pins),
				Elements:    s.Elements,
				Transistors: s.Transistors,
			})
		}

		for _, m := range f.Modules {
			tables.Modules = append(tables.Modules, ModuleRow{
				Name: m.Name,
				File: f.File,
				Line: m.Line,
			})
		}

		for _, inst := range f.Instances {
			tables.Instances = append(tables.Instances, InstanceRow{
				Name:   inst.Name,
				Target: inst.Target,
				Scope:  inst.Scope,
				Kind:   f.Kind,
				File:   f.File,
				Line:   inst.Line,
			})
		}
	}

	for _, r := range xtor.Rows(table) {
		tables.Cells = append(tables.Cells, CellRow{
			Name:        r.Name,
			Transistors: r.Transistors,
			Instances:   r.Instances,
			Subtotal:    r.Subtotal,
		})
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func emptyTables() Tables {
	return Tables{
		Files:       []FileRow{},
		Subcircuits: []SubcircuitRow{},
		Modules:     []ModuleRow{},
		Instances:   []InstanceRow{},
		Cells:       []CellRow{},
	}
}
