package verilog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/xtorcount/internal/position"
)

const (
	maxIncludeDepth   = 32
	maxExpansionDepth = 64
)

// Options control preprocessing.
type Options struct {
	// IncludeDirs are searched, in order, after the directory of the
	// including file.
	IncludeDirs []string
	// Defines are predefined object-like macros, as with +define+NAME=VALUE.
	Defines map[string]string
	// ReadFile loads included files. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Macro is a `define'd text macro.
type Macro struct {
	Name   string
	Params []string // nil for object-like macros
	Body   string
}

// Source is preprocessed text plus the map back to the original files.
type Source struct {
	Text   string
	Map    *SourceMap
	Macros map[string]*Macro
}

// PreprocessError reports a failed directive: an undefined macro, an
// unresolvable include, unbalanced conditionals.
type PreprocessError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *PreprocessError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *PreprocessError) Unwrap() error { return e.Err }

type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
	seenElse     bool
	at           int
}

type preprocessor struct {
	opts   Options
	macros map[string]*Macro
	out    []byte
	sm     *SourceMap
	conds  []condFrame
	depth  int
}

// Preprocess expands compiler directives in src.
func Preprocess(path string, src []byte, opts Options) (*Source, error) {
	p := &preprocessor{opts: opts, macros: make(map[string]*Macro), sm: newSourceMap()}
	if p.opts.ReadFile == nil {
		p.opts.ReadFile = os.ReadFile
	}
	for name, body := range opts.Defines {
		p.macros[name] = &Macro{Name: name, Body: body}
	}
	if err := p.file(path, src); err != nil {
		return nil, err
	}
	return &Source{Text: string(p.out), Map: p.sm, Macros: p.macros}, nil
}

func (p *preprocessor) active() bool {
	if len(p.conds) == 0 {
		return true
	}
	return p.conds[len(p.conds)-1].active
}

func (p *preprocessor) errorf(path string, src string, offset int, format string, args ...any) *PreprocessError {
	return &PreprocessError{
		Path: path,
		Line: position.LineOf([]byte(src), offset),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *preprocessor) file(path string, src []byte) error {
	p.sm.Files[path] = src
	s := string(src)
	base := len(p.conds)

	i := 0
	for i < len(s) {
		var end int
		switch c := s[i]; {
		case strings.HasPrefix(s[i:], "//"):
			end = lineEnd(s, i)
		case strings.HasPrefix(s[i:], "/*"):
			end = len(s)
			if j := strings.Index(s[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
		case c == '"':
			end = stringEnd(s, i)
		case c == '\\':
			end = i + 1
			for end < len(s) && !isSpace(s[end]) {
				end++
			}
		case c == '`':
			next, err := p.directive(path, s, i)
			if err != nil {
				return err
			}
			i = next
			continue
		default:
			end = i + 1
			for end < len(s) && strings.IndexByte("/\"\\`", s[end]) < 0 {
				end++
			}
		}
		p.copy(path, s, i, end)
		i = end
	}

	if len(p.conds) > base {
		open := p.conds[len(p.conds)-1]
		return p.errorf(path, s, open.at, "unterminated `ifdef: missing `endif")
	}
	return nil
}

func (p *preprocessor) copy(path, s string, start, end int) {
	if !p.active() {
		return
	}
	at := len(p.out)
	p.out = append(p.out, s[start:end]...)
	p.sm.addExact(at, len(p.out), path, start)
}

func (p *preprocessor) emit(path string, use, useLen int, text string) {
	at := len(p.out)
	p.out = append(p.out, text...)
	p.sm.addExpansion(at, len(p.out), path, use, useLen)
}

// directive handles the backtick at s[i] and returns where scanning resumes.
func (p *preprocessor) directive(path, s string, i int) (int, error) {
	name, j := readIdent(s, i+1)
	if name == "" {
		if !p.active() {
			return i + 1, nil
		}
		return 0, p.errorf(path, s, i, "expected a directive or macro name after '`'")
	}

	switch name {
	case "ifdef", "ifndef", "elsif":
		arg, k := readIdent(s, skipBlanks(s, j))
		if arg == "" {
			return 0, p.errorf(path, s, i, "`%s needs a macro name", name)
		}
		_, defined := p.macros[arg]
		if name == "elsif" {
			if len(p.conds) == 0 {
				return 0, p.errorf(path, s, i, "`elsif without `ifdef")
			}
			top := &p.conds[len(p.conds)-1]
			if top.seenElse {
				return 0, p.errorf(path, s, i, "`elsif after `else")
			}
			if top.taken {
				top.active = false
			} else {
				top.active = top.parentActive && defined
				top.taken = defined
			}
			return k, nil
		}
		cond := defined == (name == "ifdef")
		parent := p.active()
		p.conds = append(p.conds, condFrame{parentActive: parent, active: parent && cond, taken: cond, at: i})
		return k, nil

	case "else":
		if len(p.conds) == 0 {
			return 0, p.errorf(path, s, i, "`else without `ifdef")
		}
		top := &p.conds[len(p.conds)-1]
		if top.seenElse {
			return 0, p.errorf(path, s, i, "duplicate `else")
		}
		top.active = top.parentActive && !top.taken
		top.taken = true
		top.seenElse = true
		return j, nil

	case "endif":
		if len(p.conds) == 0 {
			return 0, p.errorf(path, s, i, "`endif without `ifdef")
		}
		p.conds = p.conds[:len(p.conds)-1]
		return j, nil
	}

	if !p.active() {
		return j, nil
	}

	switch name {
	case "define":
		return p.define(path, s, i, j)
	case "undef":
		arg, k := readIdent(s, skipBlanks(s, j))
		if arg == "" {
			return 0, p.errorf(path, s, i, "`undef needs a macro name")
		}
		delete(p.macros, arg)
		return k, nil
	case "include":
		return p.include(path, s, i, j)
	case "celldefine", "endcelldefine", "resetall", "nounconnected_drive", "end_keywords":
		return j, nil
	case "timescale", "default_nettype", "unconnected_drive", "line", "pragma", "begin_keywords":
		return lineEnd(s, j), nil
	case "__FILE__":
		p.emit(path, i, j-i, strconv.Quote(path))
		return j, nil
	case "__LINE__":
		p.emit(path, i, j-i, strconv.Itoa(position.LineOf([]byte(s), i)))
		return j, nil
	}
	return p.use(path, s, i, name, j)
}

func (p *preprocessor) define(path, s string, i, j int) (int, error) {
	name, k := readIdent(s, skipBlanks(s, j))
	if name == "" {
		return 0, p.errorf(path, s, i, "`define needs a macro name")
	}
	m := &Macro{Name: name}
	if k < len(s) && s[k] == '(' {
		end := strings.IndexByte(s[k:], ')')
		if end < 0 || strings.IndexByte(s[k:k+end], '\n') >= 0 {
			return 0, p.errorf(path, s, i, "unterminated parameter list for macro `%s", name)
		}
		m.Params = []string{}
		if list := strings.TrimSpace(s[k+1 : k+end]); list != "" {
			for _, param := range strings.Split(list, ",") {
				if eq := strings.IndexByte(param, '='); eq >= 0 {
					param = param[:eq]
				}
				m.Params = append(m.Params, strings.TrimSpace(param))
			}
		}
		k += end + 1
	}
	body, next := readMacroBody(s, k)
	m.Body = body
	p.macros[name] = m
	return next, nil
}

func (p *preprocessor) include(path, s string, i, j int) (int, error) {
	k := skipBlanks(s, j)
	if k >= len(s) || (s[k] != '"' && s[k] != '<') {
		return 0, p.errorf(path, s, i, "`include expects a quoted file name")
	}
	closer := byte('"')
	if s[k] == '<' {
		closer = '>'
	}
	end := strings.IndexByte(s[k+1:], closer)
	if end < 0 || strings.IndexByte(s[k+1:k+1+end], '\n') >= 0 {
		return 0, p.errorf(path, s, i, "unterminated `include file name")
	}
	name := s[k+1 : k+1+end]
	next := k + end + 2

	if p.depth >= maxIncludeDepth {
		return 0, p.errorf(path, s, i, "`include nested more than %d levels", maxIncludeDepth)
	}
	resolved, data, err := p.resolve(path, name)
	if err != nil {
		perr := p.errorf(path, s, i, "cannot open include file %q", name)
		perr.Err = err
		return 0, perr
	}

	p.depth++
	defer func() { p.depth-- }()
	if err := p.file(resolved, data); err != nil {
		return 0, err
	}
	return next, nil
}

func (p *preprocessor) resolve(from, name string) (string, []byte, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = []string{filepath.Join(filepath.Dir(from), name)}
		for _, dir := range p.opts.IncludeDirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	for _, c := range candidates {
		data, err := p.opts.ReadFile(c)
		if err == nil {
			return c, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %s: %w", c, err)
		}
	}
	return "", nil, fmt.Errorf("searched %s: %w", strings.Join(candidates, ", "), fs.ErrNotExist)
}

// use expands a macro reference `name at s[i].
func (p *preprocessor) use(path, s string, i int, name string, j int) (int, error) {
	m, ok := p.macros[name]
	if !ok {
		return 0, p.errorf(path, s, i, "undefined macro `%s", name)
	}
	args, end, err := macroArgs(m, s, j)
	if err != nil {
		return 0, p.errorf(path, s, i, "%v", err)
	}
	text, err := p.expand(m, args, 0)
	if err != nil {
		return 0, p.errorf(path, s, i, "%v", err)
	}
	p.emit(path, i, end-i, text)
	return end, nil
}

func macroArgs(m *Macro, s string, j int) ([]string, int, error) {
	if m.Params == nil {
		return nil, j, nil
	}
	k := j
	for k < len(s) && isSpace(s[k]) {
		k++
	}
	if k >= len(s) || s[k] != '(' {
		if len(m.Params) == 0 {
			return nil, j, nil
		}
		return nil, 0, fmt.Errorf("macro `%s expects %d arguments", m.Name, len(m.Params))
	}
	return readArgs(s, k)
}

func (p *preprocessor) expand(m *Macro, args []string, depth int) (string, error) {
	if depth > maxExpansionDepth {
		return "", fmt.Errorf("macro `%s expands recursively", m.Name)
	}
	body := m.Body
	if len(m.Params) > 0 {
		if len(args) != len(m.Params) {
			return "", fmt.Errorf("macro `%s expects %d arguments, got %d", m.Name, len(m.Params), len(args))
		}
		body = substitute(body, m.Params, args)
	}
	return p.expandText(body, depth+1)
}

// expandText expands macro references and `` token pastes inside a macro body.
func (p *preprocessor) expandText(text string, depth int) (string, error) {
	if strings.IndexByte(text, '`') < 0 {
		return text, nil
	}
	var b strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '"':
			end := stringEnd(text, i)
			b.WriteString(text[i:end])
			i = end
		case strings.HasPrefix(text[i:], "``"):
			i += 2
		case strings.HasPrefix(text[i:], "`\\`\""):
			b.WriteString(`\"`)
			i += 4
		case strings.HasPrefix(text[i:], "`\""):
			b.WriteByte('"')
			i += 2
		case c == '`':
			name, j := readIdent(text, i+1)
			m, ok := p.macros[name]
			if !ok {
				return "", fmt.Errorf("undefined macro `%s", name)
			}
			args, end, err := macroArgs(m, text, j)
			if err != nil {
				return "", err
			}
			out, err := p.expand(m, args, depth)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// substitute replaces parameter identifiers in body with the actual arguments.
func substitute(body string, params, args []string) string {
	var b strings.Builder
	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case c == '"':
			end := stringEnd(body, i)
			b.WriteString(body[i:end])
			i = end
		case strings.HasPrefix(body[i:], "``"):
			b.WriteString("``")
			i += 2
		case c == '`':
			// macro names are never parameters
			_, j := readIdent(body, i+1)
			b.WriteString(body[i:j])
			i = j
		case isIdentStart(c):
			name, j := readIdent(body, i)
			replaced := false
			for n, param := range params {
				if name == param {
					b.WriteString(args[n])
					replaced = true
					break
				}
			}
			if !replaced {
				b.WriteString(name)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// readArgs splits the parenthesized macro arguments starting at s[k].
func readArgs(s string, k int) ([]string, int, error) {
	var args []string
	depth := 0
	start := k + 1
	for i := k; i < len(s); i++ {
		switch s[i] {
		case '"':
			i = stringEnd(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				return args, i + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return nil, 0, errors.New("unterminated macro argument list")
}

// readMacroBody reads a macro body up to the end of the line, following
// backslash-newline continuations. The final newline is not consumed.
func readMacroBody(s string, k int) (string, int) {
	var b strings.Builder
	for {
		end := lineEnd(s, k)
		line := strings.TrimRight(s[k:end], "\r")
		line = stripLineComment(line)
		if strings.HasSuffix(line, "\\") && end < len(s) {
			b.WriteString(line[:len(line)-1])
			b.WriteByte('\n')
			k = end + 1
			continue
		}
		b.WriteString(line)
		return strings.TrimSpace(b.String()), end
	}
}

func stripLineComment(line string) string {
	inString := false
	for i := 0; i+1 < len(line); i++ {
		switch {
		case line[i] == '\\' && inString:
			i++
		case line[i] == '"':
			inString = !inString
		case !inString && line[i] == '/' && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func readIdent(s string, i int) (string, int) {
	if i >= len(s) || !isIdentStart(s[i]) {
		return "", i
	}
	j := i + 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	return s[i:j], j
}

func skipBlanks(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// lineEnd returns the index of the next '\n' at or after i, or len(s).
func lineEnd(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(s)
}

// stringEnd returns the index just past the string literal at s[i]. An
// unterminated literal ends at the line end so the lexer can report it.
func stringEnd(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '\n':
			return j
		case '"':
			return j + 1
		}
	}
	return len(s)
}
