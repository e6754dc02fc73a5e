// Command xtor-facts dumps the relational fact tables of a design: files,
// subcircuits, modules, instances and counted cells, as JSON checked
// against the facts schema.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xtorcount/internal/config"
	"github.com/robert-at-pretension-io/xtorcount/internal/diagnostic"
	"github.com/robert-at-pretension-io/xtorcount/internal/facts"
	"github.com/robert-at-pretension-io/xtorcount/internal/indexer"
	"github.com/robert-at-pretension-io/xtorcount/internal/validator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newFactsCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if nerr, ok := indexer.IsNetlistError(err); ok {
			diagnostic.NewReporter(stderr).Report(diagnostic.FromError(nerr.Path, nerr.Err))
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

type factsOptions struct {
	configFile string
	output     string
	cells      []string
	deltaFrom  string
	deltaOut   string
	impact     []string
}

func newFactsCmd() *cobra.Command {
	var opts factsOptions

	cmd := &cobra.Command{
		Use:   "xtor-facts [options] <cdl> <netlist>",
		Short: "Dump the fact tables of a design as JSON",
		Example: `  xtor-facts cells.cdl top.v > facts.json
  xtor-facts --cell INVX1 --cell NAND2X1 cells.cdl top.v
  xtor-facts --delta-from facts.json --delta-out delta.json cells.cdl top.v
  xtor-facts --impact INVX1 cells.cdl top.v`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacts(cmd, opts, args[0], args[1])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./xtorcount.yaml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	cmd.Flags().StringSliceVar(&opts.cells, "cell", nil, "only keep rows about this cell (repeatable)")
	cmd.Flags().StringVar(&opts.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	cmd.Flags().StringVar(&opts.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	cmd.Flags().StringSliceVar(&opts.impact, "impact", nil, "print the modules that transitively contain this cell")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runFacts(cmd *cobra.Command, opts factsOptions, cdlPath, netlistPath string) error {
	if (opts.deltaFrom == "") != (opts.deltaOut == "") {
		return errors.New("--delta-from and --delta-out must be used together")
	}

	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg.Checks.Enabled = false

	idx := indexer.NewWithConfig(cfg)
	idx.CollectFacts = true
	idx.Out = io.Discard
	idx.Err = cmd.ErrOrStderr()
	res, err := idx.Run(cmd.Context(), cdlPath, netlistPath)
	if err != nil {
		return err
	}
	tables := *res.Tables

	if len(opts.impact) > 0 {
		deps := indexer.BuildDependents(tables)
		for _, cell := range opts.impact {
			fmt.Fprint(cmd.OutOrStdout(), indexer.FormatImpact(indexer.ComputeImpact(cell, deps)))
		}
	}

	cells := cellSet(opts.cells)
	if len(cells) > 0 {
		tables = facts.FilterTablesByCells(tables, cells)
	}

	v, err := validator.NewFactsValidator()
	if err != nil {
		return fmt.Errorf("initialize validator: %w", err)
	}
	if err := v.Validate(tables); err != nil {
		return err
	}

	switch {
	case opts.output != "":
		if err := writeJSON(opts.output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	case len(opts.impact) == 0:
		if err := encode(cmd.OutOrStdout(), tables); err != nil {
			return fmt.Errorf("encoding facts: %w", err)
		}
	}

	if opts.deltaFrom != "" {
		prev, err := readTables(opts.deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		if len(cells) > 0 {
			prev = facts.FilterTablesByCells(prev, cells)
		}
		delta := facts.ComputeDelta(prev, tables)
		if err := writeJSON(opts.deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
		if cfg.Verbose && delta.Empty() {
			fmt.Fprintln(cmd.ErrOrStderr(), "No changes since", opts.deltaFrom)
		}
	}
	return nil
}

func cellSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = true
		}
	}
	return set
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return encode(f, data)
}

func encode(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
