// Package diagnostic renders netlist parse failures for humans.
//
// A failure with a location is shown as the offending source line with a
// caret underneath:
//
//	parse failed: "top.v"
//	 top.v:3:14
//	  |
//	3 |   assign y = ;
//	  |              ^ expected expression, found ';'
//
// Anything else is shown as the error followed by its chain of causes.
// Rendering never fails: when the source cannot be read or the offset does
// not fall inside it, the chain form is used instead.
package diagnostic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/robert-at-pretension-io/xtorcount/internal/position"
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
)

// Location is a byte span inside a file.
type Location struct {
	Path   string
	Offset int
	Length int
}

// Failure is a netlist parse failure. Loc is nil when the error carries no
// usable location.
type Failure struct {
	Path string // netlist named on the command line
	Loc  *Location
	Err  error
}

// FromError classifies err, the result of parsing the netlist at path.
func FromError(path string, err error) Failure {
	f := Failure{Path: path, Err: err}
	var perr *verilog.ParseError
	if errors.As(err, &perr) && perr.Located() {
		f.Loc = &Location{Path: perr.Path, Offset: perr.Offset, Length: perr.Length}
	}
	return f
}

// Message returns the innermost description of the failure.
func (f Failure) Message() string {
	var perr *verilog.ParseError
	if errors.As(f.Err, &perr) {
		return perr.Msg
	}
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

type styles struct {
	header lipgloss.Style
	gutter lipgloss.Style
	caret  lipgloss.Style
}

// Reporter writes failures to a stream, usually stderr.
type Reporter struct {
	w        io.Writer
	readFile func(string) ([]byte, error)
	styles   styles
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithReadFile replaces os.ReadFile for loading the implicated source.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(r *Reporter) { r.readFile = fn }
}

// WithColorProfile forces a color profile instead of detecting one from
// the output stream.
func WithColorProfile(p termenv.Profile) Option {
	return func(r *Reporter) {
		re := lipgloss.NewRenderer(r.w)
		re.SetColorProfile(p)
		r.styles = newStyles(re)
	}
}

// NewReporter returns a Reporter writing to out.
func NewReporter(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: out, readFile: os.ReadFile}
	r.styles = newStyles(lipgloss.NewRenderer(out))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newStyles(re *lipgloss.Renderer) styles {
	return styles{
		header: re.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		gutter: re.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		caret:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Report prints f.
func (r *Reporter) Report(f Failure) {
	if f.Loc != nil {
		if src, err := r.readFile(f.Loc.Path); err == nil {
			if pos, ok := position.ResolveSpan(src, f.Loc.Offset, f.Loc.Length); ok {
				r.located(f, pos)
				return
			}
		}
	}
	r.chain(f)
}

func (r *Reporter) located(f Failure, pos position.Position) {
	var b strings.Builder
	line := strconv.Itoa(pos.Line)
	blank := strings.Repeat(" ", len(line)+1)
	bar := r.styles.gutter.Render("|")

	fmt.Fprintf(&b, "%s %q\n", r.styles.header.Render("parse failed:"), f.Path)
	fmt.Fprintf(&b, " %s:%d:%d\n", f.Loc.Path, pos.Line, pos.Column)
	fmt.Fprintf(&b, "%s%s\n", blank, bar)
	fmt.Fprintf(&b, "%s %s %s\n", r.styles.gutter.Render(line), bar, pos.Excerpt)

	pad, width := caretLayout(pos)
	carets := r.styles.caret.Render(strings.Repeat("^", width))
	if msg := f.Message(); msg != "" {
		fmt.Fprintf(&b, "%s%s %s%s %s\n", blank, bar, pad, carets, msg)
	} else {
		fmt.Fprintf(&b, "%s%s %s%s\n", blank, bar, pad, carets)
	}
	_, _ = io.WriteString(r.w, b.String())
}

// caretLayout returns the padding that lines the caret up under the
// offending text and the number of carets to draw, both in terminal cells.
// Tabs are copied so the padding expands exactly like the excerpt.
func caretLayout(pos position.Position) (string, int) {
	prefix := pos.Excerpt[:pos.CaretOffset]
	var pad strings.Builder
	for _, c := range prefix {
		if c == '\t' {
			pad.WriteByte('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(c)))
	}
	end := min(pos.CaretOffset+pos.CaretWidth, len(pos.Excerpt))
	width := runewidth.StringWidth(pos.Excerpt[pos.CaretOffset:end])
	return pad.String(), max(width, 1)
}

func (r *Reporter) chain(f Failure) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q (%v)\n", r.styles.header.Render("parse failed:"), f.Path, f.Err)
	for cause := errors.Unwrap(f.Err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(&b, "  Caused by %v\n", cause)
	}
	_, _ = io.WriteString(r.w, b.String())
}
