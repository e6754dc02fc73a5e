// Package verilog preprocesses and parses the structural subset of Verilog
// used by gate-level and hierarchical netlists.
//
// The tree it produces is deliberately shallow: module declarations,
// instantiations, declarations and generate constructs are modeled as
// nodes; behavioral code and expressions are kept as opaque spans.
package verilog

import "iter"

// Kind tags a syntax tree node. The set is closed.
type Kind uint8

const (
	SourceText Kind = iota
	ModuleDeclaration
	ModuleInstantiation
	ModuleIdentifier
	ParameterValueAssignment
	HierarchicalInstance
	PortConnection
	GateInstantiation
	SimpleIdentifier
	EscapedIdentifier
	PortDeclaration
	NetDeclaration
	DataDeclaration
	ParameterDeclaration
	ContinuousAssign
	GenerateRegion
	GenerateBlock
	ProceduralBlock
	Expression
	Skipped
)

var kindNames = [...]string{
	SourceText:               "SourceText",
	ModuleDeclaration:        "ModuleDeclaration",
	ModuleInstantiation:      "ModuleInstantiation",
	ModuleIdentifier:         "ModuleIdentifier",
	ParameterValueAssignment: "ParameterValueAssignment",
	HierarchicalInstance:     "HierarchicalInstance",
	PortConnection:           "PortConnection",
	GateInstantiation:        "GateInstantiation",
	SimpleIdentifier:         "SimpleIdentifier",
	EscapedIdentifier:        "EscapedIdentifier",
	PortDeclaration:          "PortDeclaration",
	NetDeclaration:           "NetDeclaration",
	DataDeclaration:          "DataDeclaration",
	ParameterDeclaration:     "ParameterDeclaration",
	ContinuousAssign:         "ContinuousAssign",
	GenerateRegion:           "GenerateRegion",
	GenerateBlock:            "GenerateBlock",
	ProceduralBlock:          "ProceduralBlock",
	Expression:               "Expression",
	Skipped:                  "Skipped",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Locate is a span of the preprocessed text.
type Locate struct {
	Offset int
	Len    int
}

// Node is one syntax tree node.
type Node struct {
	Kind     Kind
	Loc      Locate
	Children []*Node
}

// Child returns the first direct child of the given kind.
func (n *Node) Child(kind Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// ChildrenOf returns the direct children of the given kind.
func (n *Node) ChildrenOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Tree is a parsed netlist.
type Tree struct {
	Path string // top-level file
	Root *Node
	Text string // preprocessed text the locations refer to
	Map  *SourceMap
}

// Get returns the preprocessed text of loc.
func (t *Tree) Get(loc Locate) (string, bool) {
	if loc.Offset < 0 || loc.Len <= 0 || loc.Offset+loc.Len > len(t.Text) {
		return "", false
	}
	return t.Text[loc.Offset : loc.Offset+loc.Len], true
}

// IdentifierName returns the name an identifier node spells. Escaped
// identifiers lose their leading backslash, so \INVX1 names INVX1.
func (t *Tree) IdentifierName(n *Node) (string, bool) {
	if n == nil {
		return "", false
	}
	text, ok := t.Get(n.Loc)
	if !ok {
		return "", false
	}
	switch n.Kind {
	case SimpleIdentifier:
		return text, true
	case EscapedIdentifier:
		if len(text) < 2 {
			return "", false
		}
		return text[1:], true
	}
	return "", false
}

// Origin maps loc back to the file and byte offset it was read from.
func (t *Tree) Origin(loc Locate) (path string, offset, length int, ok bool) {
	return t.Map.Lookup(loc.Offset, loc.Len)
}

// All yields every node of the tree in pre-order.
func (t *Tree) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if t.Root != nil {
			all(t.Root, yield)
		}
	}
}

func all(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !all(c, yield) {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Find returns the first node of one of kinds in the subtree rooted at n,
// n included.
func Find(n *Node, kinds ...Kind) *Node {
	var found *Node
	Walk(n, func(c *Node) bool {
		if found != nil {
			return false
		}
		for _, k := range kinds {
			if c.Kind == k {
				found = c
				return false
			}
		}
		return true
	})
	return found
}

// ModuleName returns the module a ModuleInstantiation instantiates, or the
// name a ModuleDeclaration declares.
func (t *Tree) ModuleName(n *Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case ModuleInstantiation:
		return t.IdentifierName(Find(n.Child(ModuleIdentifier), SimpleIdentifier, EscapedIdentifier))
	case ModuleDeclaration:
		for _, c := range n.Children {
			if c.Kind == SimpleIdentifier || c.Kind == EscapedIdentifier {
				return t.IdentifierName(c)
			}
		}
	}
	return "", false
}
