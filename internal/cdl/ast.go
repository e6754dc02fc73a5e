// Package cdl parses circuit-description (CDL) netlists, the SPICE dialect
// LVS tools emit for transistor-level subcircuits, into a typed tree.
package cdl

import "strings"

// Pos is a location in a CDL source buffer.
type Pos struct {
	Offset int // 0-based byte offset
	Line   int // 1-based line
	Column int // 1-based byte column
}

// Node is any production of the CDL grammar.
type Node interface {
	Position() Pos
	node()
}

// Document is the root production: everything in one CDL file.
type Document struct {
	Path  string
	Items []Node
}

// Subckt is a complete .SUBCKT ... .ENDS block.
type Subckt struct {
	Header *SubcktHeader
	Body   []Node
	End    *SubcktEnd
}

// SubcktHeader is the opening .SUBCKT line.
type SubcktHeader struct {
	Name   string
	Pins   []string
	Params map[string]string
	At     Pos
}

// SubcktEnd is the closing .ENDS line. Name is empty when the line omits it.
type SubcktEnd struct {
	Name string
	At   Pos
}

// Element is a device or instance statement such as "MM0 d g s b nch W=1u".
type Element struct {
	Name   string
	Kind   byte // upper-case first letter of Name
	Fields []string
	Params map[string]string
	At     Pos

	ref string // subcircuit named after a "/" separator
}

// Directive is any dot command other than .SUBCKT and .ENDS.
type Directive struct {
	Name string // upper case, without the leading dot
	Args []string
	At   Pos
}

// Comment is a full-line comment, including CDL annotations like *.PININFO.
type Comment struct {
	Text string
	At   Pos
}

func (s *Subckt) Position() Pos       { return s.Header.At }
func (h *SubcktHeader) Position() Pos { return h.At }
func (e *SubcktEnd) Position() Pos    { return e.At }
func (e *Element) Position() Pos      { return e.At }
func (d *Directive) Position() Pos    { return d.At }
func (c *Comment) Position() Pos      { return c.At }

func (*Subckt) node()       {}
func (*SubcktHeader) node() {}
func (*SubcktEnd) node()    {}
func (*Element) node()      {}
func (*Directive) node()    {}
func (*Comment) node()      {}

// Name returns the declared subcircuit name.
func (s *Subckt) Name() string {
	if s.Header == nil {
		return ""
	}
	return s.Header.Name
}

// Elements returns the elements directly inside the subcircuit body.
func (s *Subckt) Elements() []*Element {
	var out []*Element
	for _, n := range s.Body {
		if e, ok := n.(*Element); ok {
			out = append(out, e)
		}
	}
	return out
}

// Subckts returns the subcircuit definitions of the document in source order.
func (d *Document) Subckts() []*Subckt {
	var out []*Subckt
	for _, n := range d.Items {
		if s, ok := n.(*Subckt); ok {
			out = append(out, s)
		}
	}
	return out
}

// IsKind reports whether the element letter is one of kinds (case-insensitive).
func (e *Element) IsKind(kinds ...string) bool {
	for _, k := range kinds {
		if len(k) == 1 && strings.ToUpper(k)[0] == e.Kind {
			return true
		}
	}
	return false
}

// Ref returns the subcircuit an X element instantiates. CDL writes it either
// as the last positional field or after a "/" separator.
func (e *Element) Ref() string {
	if e.Kind != 'X' {
		return ""
	}
	if e.ref != "" {
		return e.ref
	}
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[len(e.Fields)-1]
}
