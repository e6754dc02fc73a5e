// Package indexer runs the counting pipeline: read the inputs, build the
// subcircuit table from the CDL documents, count instantiations in the
// netlist and fold the total. With checks enabled it also extracts the fact
// tables, validates them against the CUE contract and evaluates the policy.
//
// The indexer never works around a bad input. A CDL failure or a netlist
// failure ends the run with the typed error so the command can report it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/xtorcount/internal/cdl"
	"github.com/robert-at-pretension-io/xtorcount/internal/config"
	"github.com/robert-at-pretension-io/xtorcount/internal/extractor"
	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
	"github.com/robert-at-pretension-io/xtorcount/internal/policy"
	"github.com/robert-at-pretension-io/xtorcount/internal/validator"
	"github.com/robert-at-pretension-io/xtorcount/internal/verilog"
	"github.com/robert-at-pretension-io/xtorcount/internal/xtor"
)

// Indexer runs the pipeline for one pair of inputs at a time.
type Indexer struct {
	// Configuration, usually from config.Load
	Config *config.Config

	Logger *slog.Logger

	// Out receives the report, Err receives progress and policy violations.
	Out io.Writer
	Err io.Writer

	// CollectFacts builds the fact tables even when checks are disabled
	CollectFacts bool

	// ReadFile loads every input, included netlist files too. Defaults to
	// os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

// NetlistError is a failure to read, preprocess or parse the netlist.
type NetlistError struct {
	Path string
	Err  error
}

func (e *NetlistError) Error() string {
	return fmt.Sprintf("netlist %s: %v", e.Path, e.Err)
}

func (e *NetlistError) Unwrap() error { return e.Err }

// Result is everything one run produced.
type Result struct {
	CDL       string
	Libraries []string
	Netlist   string

	Table xtor.Table
	Stats xtor.CountStats
	Total int64

	// Facts and Tables are set when checks are enabled or CollectFacts is
	// set; Policy only when checks are enabled.
	Facts  []extractor.FileFacts
	Tables *facts.Tables
	Policy *policy.Result
}

// New creates a new Indexer with default configuration
func New() *Indexer {
	return NewWithConfig(config.DefaultConfig())
}

// NewWithConfig creates a new Indexer with the given configuration
func NewWithConfig(cfg *config.Config) *Indexer {
	return &Indexer{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

type input struct {
	path string
	data []byte
	err  error
}

// Run counts the transistors of the design described by the CDL document
// at cdlPath and the netlist at netlistPath. Configured CDL libraries are
// merged before the primary document.
//
// CDL failures are returned as is (*cdl.GrammarError,
// *xtor.BoundaryMismatchError or a read error). Netlist failures are
// returned as *NetlistError.
func (idx *Indexer) Run(ctx context.Context, cdlPath, netlistPath string) (*Result, error) {
	runStart := time.Now()
	if idx.Config == nil {
		idx.Config = config.DefaultConfig()
	}
	logger := idx.logger()

	timing := newTimingRecorder(runStart, idx.Config.Timing.Path)
	if err := timing.Err(); err != nil {
		logger.Warn("timing output disabled", "path", idx.Config.Timing.Path, "error", err)
	}
	defer timing.Close()

	kinds, err := xtor.ParseKinds(idx.Config.CDL.TransistorKinds)
	if err != nil {
		return nil, fmt.Errorf("cdl.transistor_kinds: %w", err)
	}
	libs, err := idx.Config.ResolveLibraries()
	if err != nil {
		return nil, err
	}

	res := &Result{CDL: cdlPath, Libraries: libs, Netlist: netlistPath}
	if res.Libraries == nil {
		res.Libraries = []string{}
	}

	// 1. Read every input up front
	stage := timing.begin("read")
	paths := append(append([]string{}, libs...), cdlPath, netlistPath)
	inputs, err := idx.readAll(ctx, paths, stage)
	stage.end(err)
	if err != nil {
		return nil, err
	}
	idx.progress("Read %d files (%d CDL libraries)\n", len(paths), len(libs))

	cdlInputs := inputs[:len(libs)+1]
	netInput := inputs[len(libs)+1]

	// 2. Subcircuit table: libraries first, the primary document last, so
	// its definitions win.
	stage = timing.begin("cdl")
	res.Table = make(xtor.Table)
	docs, err := idx.buildTable(res.Table, cdlInputs, kinds, stage)
	d := stage.end(err)
	if err != nil {
		return nil, err
	}
	logger.Debug("stage", "stage", "cdl", "subcircuits", len(res.Table), "duration", d)
	idx.progress("Built table with %d subcircuits\n", len(res.Table))

	// 3. Netlist
	stage = timing.begin("netlist")
	tree, err := idx.parseNetlist(netInput)
	d = stage.end(err)
	if err != nil {
		return nil, err
	}
	logger.Debug("stage", "stage", "netlist", "duration", d)

	// 4. Count
	stage = timing.begin("count")
	res.Stats = xtor.CountInstances(res.Table, tree)
	d = stage.end(nil)
	for name, n := range res.Stats.UnknownNames {
		logger.Debug("unknown module skipped", "module", name, "instantiations", n)
	}
	logger.Debug("stage", "stage", "count",
		"matched", res.Stats.Matched,
		"unknown", res.Stats.Unknown,
		"unresolved", res.Stats.Unresolved,
		"duration", d)
	idx.progress("Counted %d instantiations (%d unknown, %d unresolved)\n",
		res.Stats.Matched, res.Stats.Unknown, res.Stats.Unresolved)

	// 5. Facts and policy
	if idx.Config.Checks.Enabled || idx.CollectFacts {
		stage = timing.begin("facts")
		ext := extractor.New(kinds...)
		for _, doc := range docs {
			res.Facts = append(res.Facts, ext.ExtractCDL(doc))
		}
		res.Facts = append(res.Facts, ext.ExtractNetlist(tree)...)
		tables := facts.BuildTables(res.Facts, res.Table)
		res.Tables = &tables
		stage.end(nil)
	}
	if idx.Config.Checks.Enabled {
		stage = timing.begin("policy")
		result, err := idx.check(ctx, *res.Tables)
		stage.end(err)
		if err != nil {
			return nil, err
		}
		res.Policy = result
		idx.progress("Evaluated policy: %d violations\n", result.Summary.TotalViolations)
	}

	// 6. Aggregate
	stage = timing.begin("total")
	res.Total = xtor.Total(res.Table)
	stage.end(nil)

	logger.Debug("run finished", "total", res.Total, "duration", time.Since(runStart))
	return res, nil
}

// readAll reads paths concurrently. Read failures are kept per input, so
// the caller reports them in pipeline order; only cancellation fails the
// whole read.
func (idx *Indexer) readAll(ctx context.Context, paths []string, stage *stageTimer) ([]input, error) {
	inputs := make([]input, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			data, err := idx.readFile(path)
			stage.file(path, start, err)
			inputs[i] = input{path: path, data: data, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// buildTable parses the CDL inputs in order and merges each into table. A
// document that fails leaves table as the previous documents made it.
func (idx *Indexer) buildTable(table xtor.Table, inputs []input, kinds []string, stage *stageTimer) ([]*cdl.Document, error) {
	builder := xtor.NewBuilder(xtor.WithTransistorKinds(kinds...), xtor.WithLogger(idx.logger()))
	docs := make([]*cdl.Document, 0, len(inputs))
	for _, in := range inputs {
		if in.err != nil {
			return nil, fmt.Errorf("reading %s: %w", in.path, in.err)
		}
		start := time.Now()
		doc, err := cdl.Parse(in.path, in.data)
		if err == nil {
			err = builder.Merge(table, doc)
		}
		stage.file(in.path, start, err)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (idx *Indexer) parseNetlist(in input) (*verilog.Tree, error) {
	if in.err != nil {
		return nil, &NetlistError{Path: in.path, Err: fmt.Errorf("reading %s: %w", in.path, in.err)}
	}
	tree, err := verilog.Parse(in.path, in.data, verilog.Options{
		IncludeDirs: idx.Config.ResolveIncludeDirs(),
		Defines:     idx.Config.Netlist.Defines,
		ReadFile:    idx.readFile,
	})
	if err != nil {
		return nil, &NetlistError{Path: in.path, Err: err}
	}
	return tree, nil
}

// check validates the policy input against the schema and evaluates the
// policy. A schema failure is a bug in the extractor, never in the design.
func (idx *Indexer) check(ctx context.Context, tables facts.Tables) (*policy.Result, error) {
	in := policy.NewInput(tables, idx.Config.Checks.Rules)

	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("initialize validator: %w", err)
	}
	if err := v.Validate(in); err != nil {
		return nil, fmt.Errorf("policy input: %w", err)
	}

	engine, err := policy.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	result, err := engine.Evaluate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	return result, nil
}

func (idx *Indexer) readFile(path string) ([]byte, error) {
	if idx.ReadFile != nil {
		return idx.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (idx *Indexer) logger() *slog.Logger {
	if idx.Logger == nil {
		idx.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return idx.Logger
}

// progress prints a user-facing line in verbose text mode.
func (idx *Indexer) progress(format string, args ...any) {
	if !idx.Config.Verbose || idx.Config.Output.Format == config.FormatJSON || idx.Err == nil {
		return
	}
	fmt.Fprintf(idx.Err, format, args...)
}

// IsNetlistError reports whether err came from the netlist stage.
func IsNetlistError(err error) (*NetlistError, bool) {
	var nerr *NetlistError
	if errors.As(err, &nerr) {
		return nerr, true
	}
	return nil, false
}
