package indexer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/robert-at-pretension-io/xtorcount/internal/config"
	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
	"github.com/robert-at-pretension-io/xtorcount/internal/policy"
	"github.com/robert-at-pretension-io/xtorcount/internal/validator"
	"github.com/robert-at-pretension-io/xtorcount/internal/xtor"
)

// Report is the structured result of a run, written with --json.
type Report struct {
	CDL              string          `json:"cdl"`
	Libraries        []string        `json:"libraries"`
	Netlist          string          `json:"netlist"`
	TotalTransistors int64           `json:"total_transistors"`
	Cells            []facts.CellRow `json:"cells"`
	Stats            ReportStats     `json:"stats"`
	UnknownModules   map[string]int  `json:"unknown_modules"`

	// Present only when checks ran
	Violations []policy.Violation `json:"violations,omitempty"`
	Summary    *policy.Summary    `json:"summary,omitempty"`
}

// ReportStats counts what the netlist pass saw.
type ReportStats struct {
	Subcircuits int `json:"subcircuits"`
	Matched     int `json:"matched"`
	Unknown     int `json:"unknown"`
	Unresolved  int `json:"unresolved"`
}

// NewReport converts a Result into its JSON form.
func NewReport(res *Result) Report {
	r := Report{
		CDL:              res.CDL,
		Libraries:        res.Libraries,
		Netlist:          res.Netlist,
		TotalTransistors: res.Total,
		Cells:            []facts.CellRow{},
		Stats: ReportStats{
			Subcircuits: len(res.Table),
			Matched:     res.Stats.Matched,
			Unknown:     res.Stats.Unknown,
			Unresolved:  res.Stats.Unresolved,
		},
		UnknownModules: make(map[string]int, len(res.Stats.UnknownNames)),
	}
	if r.Libraries == nil {
		r.Libraries = []string{}
	}
	for _, row := range xtor.Rows(res.Table) {
		r.Cells = append(r.Cells, facts.CellRow{
			Name:        row.Name,
			Transistors: row.Transistors,
			Instances:   row.Instances,
			Subtotal:    row.Subtotal,
		})
	}
	for name, n := range res.Stats.UnknownNames {
		r.UnknownModules[name] = n
	}
	if res.Policy != nil {
		r.Violations = res.Policy.Violations
		summary := res.Policy.Summary
		r.Summary = &summary
	}
	return r
}

// Write prints res in the configured format: the JSON report, or the
// optional per-cell table followed by the total line. Policy violations go
// to idx.Err in text mode.
func (idx *Indexer) Write(res *Result) error {
	if idx.Config.Output.Format == config.FormatJSON {
		return writeJSONReport(idx.Out, NewReport(res))
	}

	if idx.Config.Output.Report {
		renderCells(idx.Out, xtor.Rows(res.Table))
	}
	if _, err := fmt.Fprintf(idx.Out, "Transistors: %d\n", res.Total); err != nil {
		return err
	}
	if res.Policy != nil && idx.Err != nil {
		writeViolations(idx.Err, res.Policy)
	}
	return nil
}

// writeJSONReport validates the report against the schema before writing
// it. A report that fails validation is never written.
func writeJSONReport(w io.Writer, r Report) error {
	v, err := validator.NewReportValidator()
	if err != nil {
		return fmt.Errorf("initialize validator: %w", err)
	}
	if err := v.Validate(r); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func renderCells(w io.Writer, rows []xtor.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Cell", "Transistors", "Instances", "Subtotal"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Name, r.Transistors, r.Instances, r.Subtotal})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d cells)\n", len(rows))
}

func writeViolations(w io.Writer, result *policy.Result) {
	for _, v := range result.Violations {
		icon := "ℹ"
		if v.Severity == "error" {
			icon = "✗"
		} else if v.Severity == "warning" {
			icon = "⚠"
		}
		_, _ = fmt.Fprintf(w, "%s [%s] %s:%d - %s\n", icon, v.Rule, v.File, v.Line, v.Message)
	}
	_, _ = fmt.Fprintf(w, "Checks: %d errors, %d warnings, %d info\n",
		result.Summary.Errors, result.Summary.Warnings, result.Summary.Info)
}
