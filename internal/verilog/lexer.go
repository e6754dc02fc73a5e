package verilog

import "strings"

// lexError is a tokenization failure at an offset of the preprocessed text.
type lexError struct {
	offset int
	length int
	msg    string
}

func (e *lexError) Error() string { return e.msg }

// puncts lists multi-character operators, longest first.
var puncts = []string{
	"<<<=", ">>>=",
	"===", "!==", "<<<", ">>>", "<<=", ">>=",
	"**", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "~&", "~|", "~^", "^~",
	"->", "::", ".*", "+:", "-:", "++", "--", "+=", "-=", "*=", "/=", "|=", "&=", "^=", "%=",
	"##",
}

// Lexer turns preprocessed Verilog text into tokens. Comments and
// attribute instances "(* ... *)" are dropped.
type Lexer struct {
	src string
	pos int
}

// NewLexer creates a Lexer over preprocessed text.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// All tokenizes the whole input. The last token is always EOF.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Offset: len(l.src)}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		if keywords[text] {
			return Token{Kind: Keyword, Text: text, Offset: start}, nil
		}
		return Token{Kind: Ident, Text: text, Offset: start}, nil

	case c == '\\':
		l.pos++
		for l.pos < len(l.src) && !isSpace(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == start+1 {
			return Token{}, &lexError{offset: start, length: 1, msg: "empty escaped identifier"}
		}
		return Token{Kind: EscapedIdent, Text: l.src[start:l.pos], Offset: start}, nil

	case c == '$':
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return Token{Kind: SystemIdent, Text: l.src[start:l.pos], Offset: start}, nil

	case c == '"':
		return l.readString()

	case isDigit(c):
		l.readDecimal()
		l.readBased()
		return Token{Kind: Number, Text: l.src[start:l.pos], Offset: start}, nil

	case c == '\'':
		if l.readBased() || l.readUnbased() {
			return Token{Kind: Number, Text: l.src[start:l.pos], Offset: start}, nil
		}
		l.pos++
		return Token{Kind: Punct, Text: "'", Offset: start}, nil

	case c == '`':
		return Token{}, &lexError{offset: start, length: 1, msg: "unexpected '`' after preprocessing"}
	}

	for _, p := range puncts {
		if strings.HasPrefix(l.src[l.pos:], p) {
			l.pos += len(p)
			return Token{Kind: Punct, Text: p, Offset: start}, nil
		}
	}
	if strings.IndexByte("()[]{},;.#:=@?+-*/%!~&|^<>", c) >= 0 {
		l.pos++
		return Token{Kind: Punct, Text: l.src[start:l.pos], Offset: start}, nil
	}
	return Token{}, &lexError{offset: start, length: 1, msg: "unexpected character " + quoteByte(c)}
}

func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end + 1
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return &lexError{offset: l.pos, length: 2, msg: "unterminated block comment"}
			}
			l.pos += end + 4
		case strings.HasPrefix(l.src[l.pos:], "(*") && !strings.HasPrefix(l.src[l.pos:], "(*)"):
			end := strings.Index(l.src[l.pos+2:], "*)")
			if end < 0 {
				return &lexError{offset: l.pos, length: 2, msg: "unterminated attribute instance"}
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			return Token{}, &lexError{offset: start, length: 1, msg: "unterminated string literal"}
		case '"':
			l.pos++
			return Token{Kind: String, Text: l.src[start:l.pos], Offset: start}, nil
		}
		l.pos++
	}
	return Token{}, &lexError{offset: start, length: 1, msg: "unterminated string literal"}
}

// readDecimal consumes an unsigned decimal or real literal.
func (l *Lexer) readDecimal() {
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
		l.pos++
	}
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		i := l.pos + 1
		if i < len(l.src) && (l.src[i] == '+' || l.src[i] == '-') {
			i++
		}
		if i < len(l.src) && isDigit(l.src[i]) {
			l.pos = i
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	// time literals such as 10ns
	for _, unit := range []string{"fs", "ps", "ns", "us", "ms", "s"} {
		if strings.HasPrefix(l.src[l.pos:], unit) &&
			(l.pos+len(unit) >= len(l.src) || !isIdentPart(l.src[l.pos+len(unit)])) {
			l.pos += len(unit)
			return
		}
	}
}

// readBased consumes "'[s]b 0101" style digits, allowing blanks between a
// size and the apostrophe and between the base and the value.
func (l *Lexer) readBased() bool {
	i := l.pos
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	if i >= len(l.src) || l.src[i] != '\'' {
		return false
	}
	i++
	if i < len(l.src) && (l.src[i] == 's' || l.src[i] == 'S') {
		i++
	}
	if i >= len(l.src) || strings.IndexByte("bBoOdDhH", l.src[i]) < 0 {
		return false
	}
	i++
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	digits := i
	for i < len(l.src) && (isHexDigit(l.src[i]) || strings.IndexByte("xXzZ?_", l.src[i]) >= 0) {
		i++
	}
	if i == digits {
		return false
	}
	l.pos = i
	return true
}

// readUnbased consumes the fill literals '0, '1, 'x and 'z.
func (l *Lexer) readUnbased() bool {
	if l.pos+1 >= len(l.src) || strings.IndexByte("01xXzZ", l.src[l.pos+1]) < 0 {
		return false
	}
	if l.pos+2 < len(l.src) && isIdentPart(l.src[l.pos+2]) {
		return false
	}
	l.pos += 2
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func quoteByte(c byte) string {
	if c < 0x20 || c >= 0x7f {
		const hex = "0123456789abcdef"
		return "0x" + string([]byte{hex[c>>4], hex[c&0xf]})
	}
	return "'" + string(c) + "'"
}
