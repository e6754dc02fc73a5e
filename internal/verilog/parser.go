package verilog

import (
	"errors"
	"fmt"
	"os"
	"slices"
)

// ParseFile reads, preprocesses and parses a netlist file.
func ParseFile(path string, opts Options) (*Tree, error) {
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	src, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, src, opts)
}

// Parse preprocesses and parses netlist source. Syntax errors are returned
// as *ParseError; preprocessing failures as *PreprocessError.
func Parse(path string, src []byte, opts Options) (*Tree, error) {
	pp, err := Preprocess(path, src, opts)
	if err != nil {
		return nil, err
	}

	toks, err := NewLexer(pp.Text).All()
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			return nil, newParseError(path, pp, le.offset, le.length, le.msg)
		}
		return nil, err
	}

	p := &parser{path: path, src: pp, toks: toks}
	root, err := p.sourceText()
	if err != nil {
		return nil, err
	}
	return &Tree{Path: path, Root: root, Text: pp.Text, Map: pp.Map}, nil
}

type parser struct {
	path string
	src  *Source
	toks []Token
	pos  int
}

// keywords that never appear inside an expression; scanning for a
// terminator stops at them so a missing ';' is reported close to the cause.
var statementKeywords = map[string]bool{
	"module": true, "macromodule": true, "endmodule": true, "assign": true,
	"always": true, "initial": true, "generate": true, "endgenerate": true,
	"begin": true, "end": true, "endcase": true, "function": true,
	"endfunction": true, "task": true, "endtask": true,
}

var strengths = map[string]bool{
	"supply0": true, "supply1": true, "strong0": true, "strong1": true,
	"pull0": true, "pull1": true, "weak0": true, "weak1": true,
	"highz0": true, "highz1": true, "small": true, "medium": true, "large": true,
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Kind != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(text string) (Token, error) {
	tok := p.peek()
	if !tok.Is(text) {
		return tok, p.errAt(tok, "expected '%s', found %s", text, tok.describe())
	}
	return p.next(), nil
}

// span covers start through the last consumed token.
func (p *parser) span(start Token) Locate {
	if p.pos == 0 {
		return Locate{Offset: start.Offset}
	}
	return Locate{Offset: start.Offset, Len: p.toks[p.pos-1].End() - start.Offset}
}

// tokSpan covers the tokens in [from, to).
func (p *parser) tokSpan(from, to int) Locate {
	if from >= to {
		return Locate{Offset: p.toks[from].Offset}
	}
	return Locate{Offset: p.toks[from].Offset, Len: p.toks[to-1].End() - p.toks[from].Offset}
}

func (p *parser) errAt(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if tok.Kind == EOF && len(p.toks) > 1 {
		last := p.toks[len(p.toks)-2]
		return newParseError(p.path, p.src, last.Offset, len(last.Text), msg)
	}
	return newParseError(p.path, p.src, tok.Offset, max(len(tok.Text), 1), msg)
}

func (p *parser) sourceText() (*Node, error) {
	root := &Node{Kind: SourceText, Loc: Locate{Len: len(p.src.Text)}}
	for {
		tok := p.peek()
		var item *Node
		var err error
		switch {
		case tok.Kind == EOF:
			return root, nil
		case tok.Is("module") || tok.Is("macromodule"):
			item, err = p.module()
		case tok.Kind == Keyword && blockEnds[tok.Text] != "":
			item, err = p.skipBlock()
		case tok.Is("import") || tok.Is("typedef"):
			item, err = p.declaration(Skipped)
		case tok.Is(";"):
			p.next()
			continue
		default:
			return nil, p.errAt(tok, "expected module declaration, found %s", tok.describe())
		}
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, item)
	}
}

func (p *parser) module() (*Node, error) {
	start := p.next()
	if p.peek().Is("automatic") {
		p.next()
	}
	name, err := p.identifier("module name")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: ModuleDeclaration, Children: []*Node{name}}

	if p.peek().Is("#") {
		hash := p.next()
		if err := p.balanced(); err != nil {
			return nil, err
		}
		n.Children = append(n.Children, &Node{Kind: ParameterDeclaration, Loc: p.span(hash)})
	}
	if p.peek().Is("(") {
		ports, err := p.portList()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, ports...)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		switch {
		case tok.Is("endmodule"):
			p.next()
			if err := p.endLabel(); err != nil {
				return nil, err
			}
			n.Loc = p.span(start)
			return n, nil
		case tok.Kind == EOF:
			return nil, p.errAt(start, "module is missing 'endmodule'")
		case tok.Is("module") || tok.Is("macromodule"):
			return nil, p.errAt(tok, "expected 'endmodule' before %s", tok.describe())
		}
		item, err := p.moduleItem()
		if err != nil {
			return nil, err
		}
		if item != nil {
			n.Children = append(n.Children, item)
		}
	}
}

func (p *parser) identifier(what string) (*Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case Ident:
		p.next()
		return &Node{Kind: SimpleIdentifier, Loc: Locate{Offset: tok.Offset, Len: len(tok.Text)}}, nil
	case EscapedIdent:
		p.next()
		return &Node{Kind: EscapedIdentifier, Loc: Locate{Offset: tok.Offset, Len: len(tok.Text)}}, nil
	}
	return nil, p.errAt(tok, "expected %s, found %s", what, tok.describe())
}

// endLabel consumes an optional ": name" after end keywords.
func (p *parser) endLabel() error {
	if !p.peek().Is(":") {
		return nil
	}
	p.next()
	_, err := p.identifier("block label")
	return err
}

// portList parses the parenthesized port list of a module header.
func (p *parser) portList() ([]*Node, error) {
	p.next()
	var ports []*Node
	if p.peek().Is(")") {
		p.next()
		return nil, nil
	}
	for {
		from, to, err := p.until(",", ")")
		if err != nil {
			return nil, err
		}
		if from == to {
			return nil, p.errAt(p.peek(), "expected port, found %s", p.peek().describe())
		}
		port := &Node{Kind: PortDeclaration, Loc: p.tokSpan(from, to)}
		if id := p.lastIdentifier(from, to); id != nil {
			port.Children = append(port.Children, id)
		}
		ports = append(ports, port)

		if p.peek().Is(",") {
			p.next()
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return ports, nil
	}
}

func (p *parser) moduleItem() (*Node, error) {
	tok := p.peek()
	switch {
	case tok.Is(";"):
		p.next()
		return nil, nil
	case tok.Kind == Ident || tok.Kind == EscapedIdent:
		return p.instantiationOrDeclaration()
	case tok.Kind != Keyword:
		return nil, p.errAt(tok, "unexpected %s in module body", tok.describe())
	case tok.Text == "input" || tok.Text == "output" || tok.Text == "inout":
		return p.declaration(PortDeclaration)
	case netKeywords[tok.Text]:
		return p.declaration(NetDeclaration)
	case dataKeywords[tok.Text]:
		return p.declaration(DataDeclaration)
	case tok.Text == "parameter" || tok.Text == "localparam" || tok.Text == "defparam" || tok.Text == "specparam":
		return p.declaration(ParameterDeclaration)
	case tok.Text == "import" || tok.Text == "typedef":
		return p.declaration(Skipped)
	case tok.Text == "assign":
		return p.continuousAssign()
	case gateKeywords[tok.Text]:
		return p.gateInstantiation()
	case procKeywords[tok.Text]:
		start := p.next()
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
		return &Node{Kind: ProceduralBlock, Loc: p.span(start)}, nil
	case tok.Text == "generate":
		return p.generateRegion()
	case tok.Text == "begin":
		return p.generateBlock()
	case tok.Text == "for" || tok.Text == "if" || tok.Text == "case":
		return p.generateConstruct()
	case blockEnds[tok.Text] != "":
		return p.skipBlock()
	}
	return nil, p.errAt(tok, "unexpected %s in module body", tok.describe())
}

// declaration parses "<keyword> ... ;" and records the declared names.
func (p *parser) declaration(kind Kind) (*Node, error) {
	start := p.next()
	from, to, err := p.until()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return &Node{Kind: kind, Loc: p.span(start), Children: p.declaredNames(from, to)}, nil
}

func (p *parser) continuousAssign() (*Node, error) {
	start := p.next()
	n := &Node{Kind: ContinuousAssign}
	if p.peek().Is("(") {
		if err := p.balanced(); err != nil {
			return nil, err
		}
	}
	if p.peek().Is("#") {
		if err := p.delay(); err != nil {
			return nil, err
		}
	}
	for {
		from, to, err := p.until("=")
		if err != nil {
			return nil, err
		}
		if from == to {
			return nil, p.errAt(p.peek(), "expected net lvalue, found %s", p.peek().describe())
		}
		n.Children = append(n.Children, &Node{Kind: Expression, Loc: p.tokSpan(from, to)})
		if _, err := p.expect("="); err != nil {
			return nil, err
		}

		from, to, err = p.until(",")
		if err != nil {
			return nil, err
		}
		if from == to {
			return nil, p.errAt(p.peek(), "expected expression, found %s", p.peek().describe())
		}
		n.Children = append(n.Children, &Node{Kind: Expression, Loc: p.tokSpan(from, to)})

		if p.peek().Is(",") {
			p.next()
			continue
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		n.Loc = p.span(start)
		return n, nil
	}
}

func (p *parser) gateInstantiation() (*Node, error) {
	start := p.next()
	n := &Node{Kind: GateInstantiation}
	if p.peek().Is("(") && strengths[p.peekAt(1).Text] {
		if err := p.balanced(); err != nil {
			return nil, err
		}
	}
	if p.peek().Is("#") {
		if err := p.delay(); err != nil {
			return nil, err
		}
	}
	for {
		inst := &Node{Kind: HierarchicalInstance}
		first := p.peek()
		if first.Kind == Ident || first.Kind == EscapedIdent {
			id, _ := p.identifier("instance name")
			inst.Children = append(inst.Children, id)
			for p.peek().Is("[") {
				if err := p.balanced(); err != nil {
					return nil, err
				}
			}
		}
		if !p.peek().Is("(") {
			return nil, p.errAt(p.peek(), "expected '(' for %s terminals, found %s", start.Text, p.peek().describe())
		}
		if err := p.balanced(); err != nil {
			return nil, err
		}
		inst.Loc = p.span(first)
		n.Children = append(n.Children, inst)

		if p.peek().Is(",") {
			p.next()
			continue
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		n.Loc = p.span(start)
		return n, nil
	}
}

// instantiationOrDeclaration parses a statement that starts with an
// identifier: a module instantiation "CELL #(...) u1 (...), u2 (...);" or a
// declaration of a user-defined type "my_t a, b;".
func (p *parser) instantiationOrDeclaration() (*Node, error) {
	start := p.peek()
	modID, err := p.identifier("module name")
	if err != nil {
		return nil, err
	}

	var params *Node
	if p.peek().Is("#") {
		hash := p.next()
		if p.peek().Is("(") {
			if err := p.balanced(); err != nil {
				return nil, err
			}
		} else if tok := p.peek(); tok.Kind == Number || tok.Kind == Ident {
			p.next()
		} else {
			return nil, p.errAt(tok, "expected parameter value after '#', found %s", tok.describe())
		}
		params = &Node{Kind: ParameterValueAssignment, Loc: p.span(hash)}
	}

	tok := p.peek()
	if tok.Kind != Ident && tok.Kind != EscapedIdent {
		return nil, p.errAt(tok, "expected instance name, found %s", tok.describe())
	}
	if params == nil && !p.isInstance() {
		from, to, err := p.until()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		return &Node{Kind: DataDeclaration, Loc: p.span(start), Children: p.declaredNames(from, to)}, nil
	}

	inst := &Node{
		Kind:     ModuleInstantiation,
		Children: []*Node{{Kind: ModuleIdentifier, Loc: modID.Loc, Children: []*Node{modID}}},
	}
	if params != nil {
		inst.Children = append(inst.Children, params)
	}
	for {
		h, err := p.hierarchicalInstance()
		if err != nil {
			return nil, err
		}
		inst.Children = append(inst.Children, h)
		if p.peek().Is(",") {
			p.next()
			continue
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
		inst.Loc = p.span(start)
		return inst, nil
	}
}

// isInstance looks past "name [dims]" for the '(' of a port list.
func (p *parser) isInstance() bool {
	i := p.pos + 1
	depth := 0
	for i < len(p.toks) {
		tok := p.toks[i]
		switch {
		case tok.Is("["):
			depth++
		case tok.Is("]"):
			depth--
		case depth == 0:
			return tok.Is("(")
		case tok.Kind == EOF:
			return false
		}
		i++
	}
	return false
}

func (p *parser) hierarchicalInstance() (*Node, error) {
	start := p.peek()
	name, err := p.identifier("instance name")
	if err != nil {
		return nil, err
	}
	h := &Node{Kind: HierarchicalInstance, Children: []*Node{name}}
	for p.peek().Is("[") {
		if err := p.balanced(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	if p.peek().Is(")") {
		p.next()
		h.Loc = p.span(start)
		return h, nil
	}

	for {
		conn, err := p.portConnection()
		if err != nil {
			return nil, err
		}
		if conn != nil {
			h.Children = append(h.Children, conn)
		}
		if p.peek().Is(",") {
			p.next()
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		h.Loc = p.span(start)
		return h, nil
	}
}

// portConnection parses ".name(expr)", ".name", ".*" or a positional
// expression. An empty positional slot yields nil.
func (p *parser) portConnection() (*Node, error) {
	start := p.peek()
	switch {
	case start.Is(".*"):
		p.next()
		return &Node{Kind: PortConnection, Loc: p.span(start)}, nil

	case start.Is("."):
		p.next()
		port, err := p.identifier("port name")
		if err != nil {
			return nil, err
		}
		conn := &Node{Kind: PortConnection, Children: []*Node{port}}
		if p.peek().Is("(") {
			p.next()
			from, to, err := p.until(")")
			if err != nil {
				return nil, err
			}
			if from < to {
				conn.Children = append(conn.Children, &Node{Kind: Expression, Loc: p.tokSpan(from, to)})
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		conn.Loc = p.span(start)
		return conn, nil

	case start.Is(",") || start.Is(")"):
		return nil, nil
	}

	from, to, err := p.until(",", ")")
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, p.errAt(p.peek(), "expected port connection, found %s", p.peek().describe())
	}
	expr := &Node{Kind: Expression, Loc: p.tokSpan(from, to)}
	return &Node{Kind: PortConnection, Loc: expr.Loc, Children: []*Node{expr}}, nil
}

func (p *parser) generateRegion() (*Node, error) {
	start := p.next()
	n := &Node{Kind: GenerateRegion}
	for {
		tok := p.peek()
		if tok.Is("endgenerate") {
			p.next()
			n.Loc = p.span(start)
			return n, nil
		}
		if tok.Kind == EOF || tok.Is("endmodule") {
			return nil, p.errAt(start, "generate region is missing 'endgenerate'")
		}
		item, err := p.moduleItem()
		if err != nil {
			return nil, err
		}
		if item != nil {
			n.Children = append(n.Children, item)
		}
	}
}

// generateBlock parses "begin [: label] items end [: label]".
func (p *parser) generateBlock() (*Node, error) {
	start := p.next()
	n := &Node{Kind: GenerateBlock}
	if err := p.endLabel(); err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Is("end") {
			p.next()
			if err := p.endLabel(); err != nil {
				return nil, err
			}
			n.Loc = p.span(start)
			return n, nil
		}
		if tok.Kind == EOF || tok.Is("endmodule") {
			return nil, p.errAt(start, "'begin' is missing its 'end'")
		}
		item, err := p.moduleItem()
		if err != nil {
			return nil, err
		}
		if item != nil {
			n.Children = append(n.Children, item)
		}
	}
}

// generateConstruct parses loop, conditional and case generate constructs.
// Every alternative is kept: the tree is not elaborated.
func (p *parser) generateConstruct() (*Node, error) {
	start := p.next()
	n := &Node{Kind: GenerateBlock}
	if !p.peek().Is("(") {
		return nil, p.errAt(p.peek(), "expected '(' after '%s', found %s", start.Text, p.peek().describe())
	}
	if err := p.balanced(); err != nil {
		return nil, err
	}

	add := func() error {
		item, err := p.generateItem()
		if err != nil {
			return err
		}
		if item != nil {
			n.Children = append(n.Children, item)
		}
		return nil
	}

	switch start.Text {
	case "for":
		if err := add(); err != nil {
			return nil, err
		}
	case "if":
		if err := add(); err != nil {
			return nil, err
		}
		if p.peek().Is("else") {
			p.next()
			if err := add(); err != nil {
				return nil, err
			}
		}
	case "case":
		for !p.peek().Is("endcase") {
			if p.peek().Kind == EOF {
				return nil, p.errAt(start, "case generate is missing 'endcase'")
			}
			if err := p.caseLabel(); err != nil {
				return nil, err
			}
			if err := add(); err != nil {
				return nil, err
			}
		}
		p.next()
	}
	n.Loc = p.span(start)
	return n, nil
}

func (p *parser) generateItem() (*Node, error) {
	if p.peek().Is("begin") {
		return p.generateBlock()
	}
	return p.moduleItem()
}

// caseLabel consumes "expr, expr :" or "default [:]".
func (p *parser) caseLabel() error {
	if p.peek().Is("default") {
		p.next()
		if p.peek().Is(":") {
			p.next()
		}
		return nil
	}
	from, to, err := p.until(":")
	if err != nil {
		return err
	}
	if from == to {
		return p.errAt(p.peek(), "expected case item, found %s", p.peek().describe())
	}
	_, err = p.expect(":")
	return err
}

// skipStatement consumes one procedural statement without interpreting it.
func (p *parser) skipStatement() error {
	tok := p.peek()
	switch {
	case tok.Is(";"):
		p.next()
		return nil

	case tok.Is("begin") || tok.Is("fork"):
		p.next()
		if err := p.endLabel(); err != nil {
			return err
		}
		for {
			t := p.peek()
			if (tok.Text == "begin" && t.Is("end")) ||
				(tok.Text == "fork" && (t.Is("join") || t.Text == "join_any" || t.Text == "join_none")) {
				p.next()
				return p.endLabel()
			}
			if t.Kind == EOF || t.Is("endmodule") {
				return p.errAt(tok, "'%s' is missing its end", tok.Text)
			}
			if err := p.skipStatement(); err != nil {
				return err
			}
		}

	case tok.Is("if"):
		p.next()
		if err := p.parenthesized(tok); err != nil {
			return err
		}
		if err := p.skipStatement(); err != nil {
			return err
		}
		if p.peek().Is("else") {
			p.next()
			return p.skipStatement()
		}
		return nil

	case tok.Is("case") || tok.Is("casex") || tok.Is("casez"):
		p.next()
		if err := p.parenthesized(tok); err != nil {
			return err
		}
		for !p.peek().Is("endcase") {
			if p.peek().Kind == EOF || p.peek().Is("endmodule") {
				return p.errAt(tok, "'%s' is missing 'endcase'", tok.Text)
			}
			if err := p.caseLabel(); err != nil {
				return err
			}
			if err := p.skipStatement(); err != nil {
				return err
			}
		}
		p.next()
		return nil

	case tok.Is("for") || tok.Is("while") || tok.Is("repeat") || tok.Is("wait"):
		p.next()
		if err := p.parenthesized(tok); err != nil {
			return err
		}
		return p.skipStatement()

	case tok.Is("forever"):
		p.next()
		return p.skipStatement()

	case tok.Is("@"):
		p.next()
		switch {
		case p.peek().Is("("):
			if err := p.balanced(); err != nil {
				return err
			}
		case p.peek().Is("*") || p.peek().Kind == Ident:
			p.next()
		default:
			return p.errAt(p.peek(), "expected event control after '@', found %s", p.peek().describe())
		}
		return p.skipStatement()

	case tok.Is("#"):
		if err := p.delay(); err != nil {
			return err
		}
		return p.skipStatement()

	case tok.Kind == Keyword && statementKeywords[tok.Text] && tok.Text != "assign":
		return p.errAt(tok, "unexpected %s, expected a statement", tok.describe())
	}

	p.next()
	if _, _, err := p.until(); err != nil {
		return err
	}
	_, err := p.expect(";")
	return err
}

func (p *parser) parenthesized(after Token) error {
	if !p.peek().Is("(") {
		return p.errAt(p.peek(), "expected '(' after '%s', found %s", after.Text, p.peek().describe())
	}
	return p.balanced()
}

// delay consumes "#value" or "#(...)".
func (p *parser) delay() error {
	p.next()
	tok := p.peek()
	switch {
	case tok.Is("("):
		return p.balanced()
	case tok.Kind == Number || tok.Kind == Ident:
		p.next()
		return nil
	}
	return p.errAt(tok, "expected delay value after '#', found %s", tok.describe())
}

// skipBlock consumes a construct the netlist does not model, such as a
// function or specify block, through its end keyword.
func (p *parser) skipBlock() (*Node, error) {
	start := p.next()
	end := blockEnds[start.Text]
	for {
		tok := p.next()
		if tok.Kind == EOF {
			return nil, p.errAt(start, "'%s' is missing '%s'", start.Text, end)
		}
		if tok.Is(end) {
			if err := p.endLabel(); err != nil {
				return nil, err
			}
			return &Node{Kind: Skipped, Loc: p.span(start)}, nil
		}
	}
}

// balanced consumes a bracketed group starting at the current opener.
func (p *parser) balanced() error {
	stack := []Token{p.next()}
	for len(stack) > 0 {
		tok := p.next()
		switch {
		case tok.Kind == EOF:
			top := stack[len(stack)-1]
			return p.errAt(top, "unclosed '%s'", top.Text)
		case tok.Kind != Punct:
		case closers[tok.Text] != "":
			stack = append(stack, tok)
		case tok.Text == ")" || tok.Text == "]" || tok.Text == "}":
			top := stack[len(stack)-1]
			if want := closers[top.Text]; tok.Text != want {
				return p.errAt(tok, "expected '%s', found '%s'", want, tok.Text)
			}
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// until advances to the first token of stops at bracket depth 0 without
// consuming it and returns the index range it passed over. A ';' or a
// statement keyword at depth 0 always stops the scan, as does an unmatched
// closing bracket; the caller reports what it expected there.
func (p *parser) until(stops ...string) (int, int, error) {
	from := p.pos
	var stack []Token
	for {
		tok := p.peek()
		if tok.Kind == EOF {
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				return 0, 0, p.errAt(top, "unclosed '%s'", top.Text)
			}
			return from, p.pos, nil
		}
		if len(stack) == 0 {
			if tok.Kind == Punct && (tok.Text == ";" || slices.Contains(stops, tok.Text)) {
				return from, p.pos, nil
			}
			if tok.Kind == Keyword && statementKeywords[tok.Text] {
				return from, p.pos, nil
			}
		}
		if tok.Kind == Punct {
			switch tok.Text {
			case "(", "[", "{":
				stack = append(stack, tok)
			case ")", "]", "}":
				if len(stack) == 0 {
					return from, p.pos, nil
				}
				top := stack[len(stack)-1]
				if want := closers[top.Text]; tok.Text != want {
					return 0, 0, p.errAt(tok, "expected '%s', found '%s'", want, tok.Text)
				}
				stack = stack[:len(stack)-1]
			}
		}
		p.next()
	}
}

// declaredNames returns identifier nodes for the names a declaration in
// tokens [from, to) introduces: identifiers at depth 0 that are not part of
// an initializer.
func (p *parser) declaredNames(from, to int) []*Node {
	var names []*Node
	depth := 0
	inInit := false
	for i := from; i < to; i++ {
		tok := p.toks[i]
		switch {
		case tok.Kind == Punct && closers[tok.Text] != "":
			depth++
		case tok.Is(")") || tok.Is("]") || tok.Is("}"):
			depth--
		case depth > 0:
		case tok.Is("="):
			inInit = true
		case tok.Is(","):
			inInit = false
		case inInit:
		case tok.Kind == Ident:
			names = append(names, &Node{Kind: SimpleIdentifier, Loc: Locate{Offset: tok.Offset, Len: len(tok.Text)}})
		case tok.Kind == EscapedIdent:
			names = append(names, &Node{Kind: EscapedIdentifier, Loc: Locate{Offset: tok.Offset, Len: len(tok.Text)}})
		}
	}
	return names
}

// lastIdentifier returns the last identifier at depth 0 in tokens [from, to).
func (p *parser) lastIdentifier(from, to int) *Node {
	names := p.declaredNames(from, to)
	if len(names) == 0 {
		return nil
	}
	return names[len(names)-1]
}
