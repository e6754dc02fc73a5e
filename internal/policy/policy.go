package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
)

//go:embed checks.rego
var checksModule string

// Rule names defined by checks.rego.
const (
	RuleUnusedSubcircuit = "unused_subcircuit"
	RuleEmptySubcircuit  = "empty_subcircuit"
	RuleUnknownModule    = "unknown_module"
)

// Rules lists every rule with its default severity.
var Rules = map[string]string{
	RuleUnusedSubcircuit: "info",
	RuleEmptySubcircuit:  "warning",
	RuleUnknownModule:    "warning",
}

// Engine evaluates the embedded OPA policy against fact tables
type Engine struct {
	violations rego.PreparedEvalQuery
	summary    rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA: the fact tables plus the
// configured severity of each rule.
type Input struct {
	facts.Tables
	Severities map[string]string `json:"severities"`
}

// NewInput builds an Input. Rules missing from severities keep their
// default.
func NewInput(tables facts.Tables, severities map[string]string) Input {
	sev := make(map[string]string, len(severities))
	for rule, s := range severities {
		sev[rule] = s
	}
	return Input{Tables: tables, Severities: sev}
}

// New prepares the embedded policy for evaluation
func New(ctx context.Context) (*Engine, error) {
	module := rego.Module("checks.rego", checksModule)

	violations, err := rego.New(module, rego.Query("data.xtorcount.checks.all_violations")).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing violations query: %w", err)
	}

	summary, err := rego.New(module, rego.Query("data.xtorcount.checks.summary")).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing summary query: %w", err)
	}

	return &Engine{violations: violations, summary: summary}, nil
}

// Evaluate runs the policy against the input data. Violations are sorted by
// file, line and rule.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}}

	rs, err := e.violations.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if list, ok := rs[0].Expressions[0].Value.([]interface{}); ok {
			for _, v := range list {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Line:     getInt(vmap, "line"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.Slice(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})

	rs, err = e.summary.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if smap, ok := rs[0].Expressions[0].Value.(map[string]interface{}); ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
