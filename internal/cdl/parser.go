package cdl

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ParseFile reads and parses a CDL file.
func ParseFile(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, src)
}

type parser struct {
	path string
	doc  *Document
	open *Subckt
	done bool
}

// Parse parses CDL source. path is only used in error messages and
// Document.Path. Parsing stops at the first grammar error.
func Parse(path string, src []byte) (*Document, error) {
	p := &parser{path: path, doc: &Document{Path: path}}
	sc := lineScanner{src: src}

	var pending *statement
	var comments []Node
	flush := func() error {
		if pending != nil {
			if err := p.statement(pending); err != nil {
				return err
			}
			pending = nil
		}
		for _, c := range comments {
			p.add(c)
		}
		comments = nil
		return nil
	}

	for !p.done {
		text, start, line, ok := sc.next()
		if !ok {
			break
		}
		trimmed := strings.TrimLeft(text, " \t")
		indent := len(text) - len(trimmed)
		at := Pos{Offset: start + indent, Line: line, Column: indent + 1}

		switch {
		case trimmed == "":
			continue
		case trimmed[0] == '*':
			comments = append(comments, &Comment{Text: trimmed, At: at})
		case trimmed[0] == '+':
			if pending == nil {
				return nil, p.errorf(at, RuleContinuation, "continuation line without a statement to continue")
			}
			next := Pos{Offset: at.Offset + 1, Line: at.Line, Column: at.Column + 1}
			pending.fields = append(pending.fields, tokenize(trimmed[1:], next)...)
		default:
			if err := flush(); err != nil {
				return nil, err
			}
			fields := tokenize(trimmed, at)
			if len(fields) > 0 && strings.EqualFold(fields[0].text, ".END") {
				// Nothing after .END belongs to the document.
				p.done = true
				continue
			}
			if len(fields) > 0 {
				pending = &statement{at: at, fields: fields}
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if p.open != nil {
		return nil, p.errorf(p.open.Header.At, RuleSubcktHeader,
			"unterminated .SUBCKT %s: missing .ENDS", p.open.Header.Name)
	}
	return p.doc, nil
}

func (p *parser) statement(st *statement) error {
	head := st.fields[0].text
	if head[0] != '.' {
		return p.element(st)
	}

	switch name := strings.ToUpper(head[1:]); name {
	case "SUBCKT":
		return p.openSubckt(st)
	case "ENDS":
		return p.closeSubckt(st)
	default:
		p.add(&Directive{Name: name, Args: texts(st.fields[1:]), At: st.at})
	}
	return nil
}

func (p *parser) openSubckt(st *statement) error {
	if p.open != nil {
		return p.errorf(st.at, RuleSubcktHeader, "nested .SUBCKT inside %s", p.open.Header.Name)
	}
	if len(st.fields) < 2 {
		return p.errorf(st.at, RuleSubcktHeader, "missing subcircuit name")
	}

	h := &SubcktHeader{Name: st.fields[1].text, At: st.at}
	for _, f := range st.fields[2:] {
		if strings.EqualFold(f.text, "PARAMS:") {
			continue
		}
		if k, v, ok := splitParam(f.text); ok {
			if h.Params == nil {
				h.Params = make(map[string]string)
			}
			h.Params[k] = v
			continue
		}
		h.Pins = append(h.Pins, f.text)
	}
	p.open = &Subckt{Header: h}
	return nil
}

func (p *parser) closeSubckt(st *statement) error {
	if p.open == nil {
		return p.errorf(st.at, RuleSubcktEnd, ".ENDS without matching .SUBCKT")
	}
	end := &SubcktEnd{At: st.at}
	if len(st.fields) > 1 {
		end.Name = st.fields[1].text
	}
	p.open.End = end
	p.doc.Items = append(p.doc.Items, p.open)
	p.open = nil
	return nil
}

func (p *parser) element(st *statement) error {
	name := st.fields[0].text
	if !unicode.IsLetter(rune(name[0])) {
		return p.errorf(st.at, RuleElement, "element name %q must start with a letter", name)
	}

	e := &Element{Name: name, Kind: byte(unicode.ToUpper(rune(name[0]))), At: st.at}
	rest := st.fields[1:]
	for i := 0; i < len(rest); i++ {
		f := rest[i]
		if f.text == "/" {
			if i+1 >= len(rest) {
				return p.errorf(f.at, RuleElement, "missing subcircuit name after \"/\" in %s", name)
			}
			i++
			e.ref = rest[i].text
			continue
		}
		if k, v, ok := splitParam(f.text); ok {
			if e.Params == nil {
				e.Params = make(map[string]string)
			}
			e.Params[k] = v
			continue
		}
		e.Fields = append(e.Fields, f.text)
	}

	switch e.Kind {
	case 'M':
		if len(e.Fields) < 5 {
			return p.errorf(st.at, RuleElement, "MOSFET %s needs drain, gate, source, bulk and model", name)
		}
	case 'X':
		if e.Ref() == "" {
			return p.errorf(st.at, RuleElement, "instance %s names no subcircuit", name)
		}
	}

	p.add(e)
	return nil
}

func (p *parser) add(n Node) {
	if p.open != nil {
		p.open.Body = append(p.open.Body, n)
		return
	}
	p.doc.Items = append(p.doc.Items, n)
}

func (p *parser) errorf(at Pos, rule, format string, args ...any) error {
	return &GrammarError{Path: p.path, Pos: at, Rule: rule, Msg: fmt.Sprintf(format, args...)}
}
