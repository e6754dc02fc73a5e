package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xtorcount/internal/config"
	"github.com/robert-at-pretension-io/xtorcount/internal/policy"
)

const defaultConfigFile = "xtorcount.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Create a configuration file",
		Long: `Write the default configuration to ./xtorcount.yaml, or to the given file.
A name ending in .json writes JSON instead of YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	cfg := config.DefaultConfig()
	for rule, severity := range policy.Rules {
		cfg.Checks.Rules[rule] = severity
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - CDL library patterns and transistor element letters")
	fmt.Fprintln(out, "  - Netlist include directories and defines")
	fmt.Fprintln(out, "  - Check rule severities")
	return nil
}
