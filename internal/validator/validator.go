// Package validator checks the JSON that crosses a boundary against the
// embedded CUE schema: the policy engine input, the fact tables written by
// xtor-facts and the xtorcount JSON report.
//
// A validation failure is a bug in the producer. It is reported, never
// worked around.
package validator

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource []byte

// Definitions of schema.cue.
const (
	DefInput      = "#Input"
	DefFactTables = "#FactTables"
	DefReport     = "#Report"
)

// Validator validates data against one definition of the schema.
type Validator struct {
	ctx *cue.Context
	def cue.Value
	// what names the data in error messages
	what string
}

func newValidator(path, what string) (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	return &Validator{ctx: ctx, def: def, what: what}, nil
}

// New creates a validator for policy engine input.
func New() (*Validator, error) {
	return newValidator(DefInput, "policy input")
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*Validator, error) {
	return newValidator(DefFactTables, "facts")
}

// NewReportValidator creates a validator for the JSON report.
func NewReportValidator() (*Validator, error) {
	return newValidator(DefReport, "report")
}

// Validate checks that data, once marshaled to JSON, conforms to the
// schema. Returns nil if valid, or an error listing what failed.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s to JSON: %w", v.what, err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling %s as CUE: %w", v.what, dataValue.Err())
	}

	unified := v.def.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s schema validation failed: %w", v.what, err)
	}

	return nil
}

// ValidationErrors returns one message per validation error, or nil when
// data is valid.
func (v *Validator) ValidationErrors(data interface{}) []string {
	err := v.Validate(data)
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	if len(errs) == 0 {
		errs = []string{err.Error()}
	}
	return errs
}
