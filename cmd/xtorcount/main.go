// =============================================================================
// xtorcount - Main Entry Point
// =============================================================================
//
// Counts the transistors of a design from two descriptions that never meet
// anywhere else: the CDL listing of the standard cells and the structural
// Verilog netlist that instantiates them.
//
//   xtorcount cells.cdl top.v
//   Transistors: 1234
//
// THE PIPELINE:
//   1. Inputs are read up front (CDL libraries, primary CDL, netlist)
//   2. CDL parser builds the per-subcircuit transistor table (.ENDS names
//      must match their .SUBCKT)
//   3. Verilog preprocessor and parser build the netlist syntax tree
//   4. Counter bumps a subcircuit once per module instantiation naming it
//   5. With --check: facts are extracted, CUE validates them, OPA evaluates
//      the rules
//   6. Aggregator prints transistors times instances, summed
//
// FAILURES:
//   A netlist that fails to parse is rendered with its source line and a
//   caret (internal/diagnostic). Anything else prints "Error: ...". Both exit
//   with status 1 and never print a total.
//
// WHEN A COUNT LOOKS WRONG:
//   Run with --report to see per-cell instances, then `debug --kind
//   ModuleInstantiation top.v` to see what the parser made of the netlist.
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xtorcount/internal/config"
	"github.com/robert-at-pretension-io/xtorcount/internal/diagnostic"
	"github.com/robert-at-pretension-io/xtorcount/internal/indexer"
)

// Version is set at build time.
var Version = "0.1.0"

type configKey struct{}

type loggerKey struct{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the exit status. Failures are
// reported on stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// reportError renders netlist failures as located diagnostics and anything
// else as a one-line error.
func reportError(w io.Writer, err error) {
	if nerr, ok := indexer.IsNetlistError(err); ok {
		diagnostic.NewReporter(w).Report(diagnostic.FromError(nerr.Path, nerr.Err))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "xtorcount <cdl> <netlist>",
		Short: "Count the transistors of a design",
		Long: `xtorcount reads a CDL subcircuit listing and a structural Verilog netlist
and prints the aggregate transistor count: for every subcircuit, its
transistors times the number of times the netlist instantiates it.

Configuration is read from ./xtorcount.yaml, ./xtorcount.json,
./.xtorcount.yaml or ~/.config/xtorcount/config.yaml, then from XTORCOUNT_
environment variables, then from flags.`,
		Example: `  xtorcount cells.cdl top.v
  xtorcount --report --lib 'stdcells/**/*.cdl' cells.cdl top.v
  xtorcount --json --check -I rtl/include -D SYNTHESIS cells.cdl top.v`,
		Version: Version,
		Args:    cobra.ExactArgs(2),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "init" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			if cfg.Path != "" {
				logger.Debug("using config file", "path", cfg.Path)
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			idx := newIndexer(cmd)
			res, err := idx.Run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return idx.Write(res)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./xtorcount.yaml)")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return config.DefaultConfig()
}

func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newIndexer returns an indexer writing to the command's streams.
func newIndexer(cmd *cobra.Command) *indexer.Indexer {
	idx := indexer.NewWithConfig(getConfig(cmd.Context()))
	idx.Logger = getLogger(cmd.Context())
	idx.Out = cmd.OutOrStdout()
	idx.Err = cmd.ErrOrStderr()
	return idx
}
