package xtor

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/robert-at-pretension-io/xtorcount/internal/cdl"
)

// DefaultTransistorKinds are the element letters counted as transistors.
var DefaultTransistorKinds = []string{"M"}

// BoundaryMismatchError reports a subcircuit whose .ENDS names a different
// subcircuit than its .SUBCKT header.
type BoundaryMismatchError struct {
	Path  string
	Line  int // line of the .ENDS statement
	Open  string
	Close string
}

func (e *BoundaryMismatchError) Error() string {
	return fmt.Sprintf("%s:%d: subcircuit %q is closed by .ENDS %q", e.Path, e.Line, e.Open, e.Close)
}

// Builder turns CDL documents into a Table.
type Builder struct {
	kinds  []string
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTransistorKinds sets the element letters that count as transistors.
// Letters are matched case-insensitively.
func WithTransistorKinds(kinds ...string) Option {
	return func(b *Builder) {
		if len(kinds) > 0 {
			b.kinds = kinds
		}
	}
}

// WithLogger sets the logger for redefinition notices.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder that counts M elements unless configured
// otherwise.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		kinds:  DefaultTransistorKinds,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a new table with one entry per subcircuit of doc.
func (b *Builder) Build(doc *cdl.Document) (Table, error) {
	t := make(Table)
	if err := b.Merge(t, doc); err != nil {
		return nil, err
	}
	return t, nil
}

// Merge adds the subcircuits of doc to t with zero instances. A later
// definition of a name replaces an earlier one, including one from a
// previously merged document. If any subcircuit of doc is malformed, t is
// left untouched.
func (b *Builder) Merge(t Table, doc *cdl.Document) error {
	type entry struct {
		name string
		stat CellStat
		line int
	}
	var entries []entry

	for _, s := range doc.Subckts() {
		name := s.Name()
		if s.End == nil {
			return &cdl.GrammarError{Path: doc.Path, Pos: s.Header.At, Rule: cdl.RuleSubcktHeader, Msg: "missing .ENDS"}
		}
		// A bare .ENDS closes whatever is open.
		if s.End.Name != "" && s.End.Name != name {
			return &BoundaryMismatchError{Path: doc.Path, Line: s.End.At.Line, Open: name, Close: s.End.Name}
		}
		entries = append(entries, entry{name: name, stat: CellStat{Transistors: b.count(s)}, line: s.Header.At.Line})
	}

	for _, e := range entries {
		if prev, ok := t[e.name]; ok {
			b.logger.Debug("subcircuit redefined",
				"name", e.name,
				"path", doc.Path,
				"line", e.line,
				"previous_transistors", prev.Transistors,
				"transistors", e.stat.Transistors)
		}
		t[e.name] = e.stat
	}
	return nil
}

// count returns the transistors directly in the body of s. Subcircuit
// instances (X elements) are not expanded.
func (b *Builder) count(s *cdl.Subckt) int64 {
	var n int64
	for _, e := range s.Elements() {
		if e.IsKind(b.kinds...) {
			n++
		}
	}
	return n
}

// ParseKinds normalizes a list of element letters, dropping blanks and
// anything longer than one letter.
func ParseKinds(kinds []string) ([]string, error) {
	var out []string
	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if len(k) != 1 {
			return nil, fmt.Errorf("transistor kind %q: must be a single element letter", k)
		}
		out = append(out, strings.ToUpper(k))
	}
	return out, nil
}
