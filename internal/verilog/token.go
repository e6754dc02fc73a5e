package verilog

// TokenKind classifies a lexical token.
type TokenKind uint8

const (
	EOF TokenKind = iota
	Ident
	EscapedIdent
	SystemIdent // $display, $fatal, ...
	Keyword
	Number
	String
	Punct // operators and delimiters
)

var tokenKindNames = [...]string{
	EOF:          "end of input",
	Ident:        "identifier",
	EscapedIdent: "escaped identifier",
	SystemIdent:  "system identifier",
	Keyword:      "keyword",
	Number:       "number",
	String:       "string",
	Punct:        "punctuation",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// Token is a lexical item of preprocessed text. Offset indexes the
// preprocessed buffer, not the original file.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

// End returns the offset just past the token.
func (t Token) End() int { return t.Offset + len(t.Text) }

// Is reports whether t is the keyword or punctuation text s.
func (t Token) Is(s string) bool {
	return (t.Kind == Keyword || t.Kind == Punct) && t.Text == s
}

func (t Token) describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case Keyword, Punct:
		return "'" + t.Text + "'"
	default:
		return t.Kind.String() + " " + t.Text
	}
}

// keywords are the reserved words the structural parser cares about, plus
// the rest of the Verilog-2005 reserved set so they never read as identifiers.
var keywords = map[string]bool{
	"always": true, "and": true, "assign": true, "automatic": true, "begin": true,
	"buf": true, "bufif0": true, "bufif1": true, "case": true, "casex": true,
	"casez": true, "cell": true, "cmos": true, "config": true, "deassign": true,
	"default": true, "defparam": true, "design": true, "disable": true, "edge": true,
	"else": true, "end": true, "endcase": true, "endconfig": true, "endfunction": true,
	"endgenerate": true, "endmodule": true, "endprimitive": true, "endspecify": true,
	"endtable": true, "endtask": true, "event": true, "for": true, "force": true,
	"forever": true, "fork": true, "function": true, "generate": true, "genvar": true,
	"highz0": true, "highz1": true, "if": true, "ifnone": true, "incdir": true,
	"include": true, "initial": true, "inout": true, "input": true, "instance": true,
	"integer": true, "join": true, "large": true, "liblist": true, "library": true,
	"localparam": true, "macromodule": true, "medium": true, "module": true, "nand": true,
	"negedge": true, "nmos": true, "nor": true, "noshowcancelled": true, "not": true,
	"notif0": true, "notif1": true, "or": true, "output": true, "parameter": true,
	"pmos": true, "posedge": true, "primitive": true, "pull0": true, "pull1": true,
	"pulldown": true, "pullup": true, "pulsestyle_ondetect": true, "pulsestyle_onevent": true,
	"rcmos": true, "real": true, "realtime": true, "reg": true, "release": true,
	"repeat": true, "rnmos": true, "rpmos": true, "rtran": true, "rtranif0": true,
	"rtranif1": true, "scalared": true, "showcancelled": true, "signed": true, "small": true,
	"specify": true, "specparam": true, "strong0": true, "strong1": true, "supply0": true,
	"supply1": true, "table": true, "task": true, "time": true, "tran": true,
	"tranif0": true, "tranif1": true, "tri": true, "tri0": true, "tri1": true,
	"triand": true, "trior": true, "trireg": true, "unsigned": true, "use": true,
	"uwire": true, "vectored": true, "wait": true, "wand": true, "weak0": true,
	"weak1": true, "while": true, "wire": true, "wor": true, "xnor": true, "xor": true,

	// SystemVerilog words that show up in structural netlists.
	"always_comb": true, "always_ff": true, "always_latch": true, "final": true,
	"logic": true, "bit": true, "import": true, "typedef": true, "package": true,
	"endpackage": true, "interface": true, "endinterface": true,
}

// Gate primitives that start a gate instantiation.
var gateKeywords = map[string]bool{
	"and": true, "nand": true, "or": true, "nor": true, "xor": true, "xnor": true,
	"buf": true, "not": true, "bufif0": true, "bufif1": true, "notif0": true,
	"notif1": true, "nmos": true, "pmos": true, "rnmos": true, "rpmos": true,
	"cmos": true, "rcmos": true, "tran": true, "rtran": true, "tranif0": true,
	"tranif1": true, "rtranif0": true, "rtranif1": true, "pullup": true, "pulldown": true,
}

var netKeywords = map[string]bool{
	"wire": true, "tri": true, "tri0": true, "tri1": true, "supply0": true,
	"supply1": true, "wand": true, "wor": true, "triand": true, "trior": true,
	"trireg": true, "uwire": true,
}

var dataKeywords = map[string]bool{
	"reg": true, "integer": true, "real": true, "realtime": true, "time": true,
	"logic": true, "bit": true, "genvar": true, "event": true,
}

var procKeywords = map[string]bool{
	"always": true, "always_comb": true, "always_ff": true, "always_latch": true,
	"initial": true, "final": true,
}

// skipped blocks and their terminators
var blockEnds = map[string]string{
	"function":  "endfunction",
	"task":      "endtask",
	"specify":   "endspecify",
	"primitive": "endprimitive",
	"config":    "endconfig",
	"table":     "endtable",
	"package":   "endpackage",
	"interface": "endinterface",
}
