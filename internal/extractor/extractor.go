package extractor

import (
	"github.com/robert-at-pretension-io/xtorcount/internal/cdl"
	"github.com/robert-at-pretension-io/xtorcount/internal/position"
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
	"github.com/robert-at-pretension-io/xtorcount/internal/xtor"
)

// Source kinds
const (
	KindCDL     = "cdl"
	KindVerilog = "verilog"
)

// Extractor walks parsed CDL documents and netlist trees and extracts facts
type Extractor struct {
	kinds []string
}

// FileFacts contains all extracted information from a single source file
type FileFacts struct {
	File        string
	Kind        string
	Subcircuits []Subcircuit
	Modules     []Module
	Instances   []Instance
}

// Subcircuit represents a CDL .SUBCKT definition
type Subcircuit struct {
	Name        string
	Line        int
	Pins        []string
	Elements    int // every element of the body, calls included
	Transistors int
}

// Module represents a Verilog module declaration
type Module struct {
	Name string
	Line int
}

// Instance is one named instance of a subcircuit or module. In Verilog a
// statement like "INVX1 u1 (...), u2 (...);" yields two instances.
type Instance struct {
	Name   string
	Target string // what it instantiates
	Scope  string // enclosing subcircuit or module
	Line   int
}

// New creates a new Extractor counting the given element letters as
// transistors. No letters means the xtor defaults.
func New(kinds ...string) *Extractor {
	if len(kinds) == 0 {
		kinds = xtor.DefaultTransistorKinds
	}
	return &Extractor{kinds: kinds}
}

// ExtractCDL extracts the subcircuits of doc and the calls between them.
func (e *Extractor) ExtractCDL(doc *cdl.Document) FileFacts {
	facts := FileFacts{File: doc.Path, Kind: KindCDL}

	for _, s := range doc.Subckts() {
		sub := Subcircuit{
			Name: s.Name(),
			Line: s.Header.At.Line,
			Pins: s.Header.Pins,
		}
		for _, el := range s.Elements() {
			sub.Elements++
			if el.IsKind(e.kinds...) {
				sub.Transistors++
			}
			if ref := el.Ref(); ref != "" {
				facts.Instances = append(facts.Instances, Instance{
					Name:   el.Name,
					Target: ref,
					Scope:  sub.Name,
					Line:   el.At.Line,
				})
			}
		}
		facts.Subcircuits = append(facts.Subcircuits, sub)
	}

	return facts
}

// ExtractNetlist extracts modules and instances from tree, one FileFacts
// per source file. The top-level file comes first, included files follow in
// the order they are first seen.
func (e *Extractor) ExtractNetlist(tree *verilog.Tree) []FileFacts {
	byFile := map[string]*FileFacts{tree.Path: {File: tree.Path, Kind: KindVerilog}}
	order := []string{tree.Path}
	get := func(path string) *FileFacts {
		if f, ok := byFile[path]; ok {
			return f
		}
		f := &FileFacts{File: path, Kind: KindVerilog}
		byFile[path] = f
		order = append(order, path)
		return f
	}

	if tree.Root != nil {
		for _, mod := range tree.Root.ChildrenOf(verilog.ModuleDeclaration) {
			name, ok := tree.ModuleName(mod)
			if !ok {
				continue
			}
			file, line := locate(tree, mod.Loc)
			f := get(file)
			f.Modules = append(f.Modules, Module{Name: name, Line: line})

			verilog.Walk(mod, func(n *verilog.Node) bool {
				if n.Kind != verilog.ModuleInstantiation {
					return true
				}
				target, ok := tree.ModuleName(n)
				if !ok {
					return false
				}
				for _, h := range n.ChildrenOf(verilog.HierarchicalInstance) {
					inst, ok := tree.IdentifierName(verilog.Find(h, verilog.SimpleIdentifier, verilog.EscapedIdentifier))
					if !ok {
						continue
					}
					file, line := locate(tree, h.Loc)
					f := get(file)
					f.Instances = append(f.Instances, Instance{
						Name:   inst,
						Target: target,
						Scope:  name,
						Line:   line,
					})
				}
				return false
			})
		}
	}

	out := make([]FileFacts, 0, len(order))
	for _, path := range order {
		out = append(out, *byFile[path])
	}
	return out
}

// locate maps a tree span back to its file and 1-based line. Spans that
// cannot be mapped are attributed to the top-level file with line 0.
func locate(tree *verilog.Tree, loc verilog.Locate) (string, int) {
	path, offset, _, ok := tree.Origin(loc)
	if !ok {
		return tree.Path, 0
	}
	return path, position.LineOf(tree.Map.Files[path], offset)
}
