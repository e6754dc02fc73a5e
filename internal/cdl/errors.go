package cdl

import "fmt"

// GrammarError reports CDL text that does not match the grammar.
type GrammarError struct {
	Path string
	Pos  Pos
	Rule string // production being parsed when the error was found
	Msg  string
}

func (e *GrammarError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%d:%d: %s (in %s)", e.Pos.Line, e.Pos.Column, e.Msg, e.Rule)
	}
	return fmt.Sprintf("%s:%d:%d: %s (in %s)", e.Path, e.Pos.Line, e.Pos.Column, e.Msg, e.Rule)
}

// Grammar rules named in GrammarError.Rule.
const (
	RuleDocument     = "document"
	RuleSubcktHeader = "subckt header"
	RuleSubcktEnd    = "subckt end"
	RuleElement      = "element"
	RuleContinuation = "continuation"
)
