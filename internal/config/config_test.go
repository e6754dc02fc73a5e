package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `cdl:
  transistor_kinds: [M, Q]
  libraries: ["lib/**/*.cdl"]
netlist:
  include_dirs: [rtl/include]
  defines:
    SYNTHESIS: "1"
output:
  format: json
  report: true
checks:
  enabled: true
  rules:
    unknown_module: "off"
    empty_subcircuit: error
timing:
  path: timing.jsonl
verbose: true
`

// isolate runs the test in an empty directory with an empty home so that
// no stray configuration is found.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	wd := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Root = wd
	assert.Equal(t, want.CDL.TransistorKinds, cfg.CDL.TransistorKinds)
	assert.Empty(t, cfg.CDL.Libraries)
	assert.Equal(t, FormatText, cfg.Output.Format)
	assert.False(t, cfg.Output.Report)
	assert.False(t, cfg.Checks.Enabled)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, wd, cfg.Root)
	assert.NotNil(t, cfg.Netlist.Defines)
	assert.NotNil(t, cfg.Checks.Rules)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	wd := isolate(t)
	writeFile(t, filepath.Join(wd, "xtorcount.yaml"), fullYAML)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "xtorcount.yaml"), cfg.Path)
	assert.Equal(t, wd, cfg.Root)
	assert.Equal(t, []string{"M", "Q"}, cfg.CDL.TransistorKinds)
	assert.Equal(t, []string{"lib/**/*.cdl"}, cfg.CDL.Libraries)
	assert.Equal(t, []string{"rtl/include"}, cfg.Netlist.IncludeDirs)
	assert.Equal(t, map[string]string{"SYNTHESIS": "1"}, cfg.Netlist.Defines)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.True(t, cfg.Output.Report)
	assert.True(t, cfg.Checks.Enabled)
	assert.Equal(t, "timing.jsonl", cfg.Timing.Path)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{filepath.Join(wd, "rtl", "include")}, cfg.ResolveIncludeDirs())
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	writeFile(t, path, `{"output": {"format": "JSON"}, "checks": {"rules": {"unused_subcircuit": "warning"}}}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.Equal(t, []string{"M"}, cfg.CDL.TransistorKinds)
	assert.Equal(t, "warning", cfg.GetRuleSeverity("unused_subcircuit", "info"))
	assert.Equal(t, dir, cfg.Root)
}

func TestLoadPrecedence(t *testing.T) {
	wd := isolate(t)
	writeFile(t, filepath.Join(wd, "xtorcount.yaml"), fullYAML)

	t.Setenv("XTORCOUNT_OUTPUT__FORMAT", "text")
	t.Setenv("XTORCOUNT_CHECKS__ENABLED", "false")
	t.Setenv("XTORCOUNT_TIMING__PATH", "env.jsonl")

	cfg, err := Load("", newFlags(t, "--json", "--kinds", "m", "-D", "FAST", "-D", "WIDTH=8", "-I", "inc"))
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, cfg.Output.Format, "flag beats env")
	assert.False(t, cfg.Checks.Enabled, "env beats file")
	assert.Equal(t, "env.jsonl", cfg.Timing.Path)
	assert.True(t, cfg.Output.Report, "unset flags keep the file value")
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"m"}, cfg.CDL.TransistorKinds)
	assert.Equal(t, map[string]string{"SYNTHESIS": "1", "FAST": "", "WIDTH": "8"}, cfg.Netlist.Defines)
	assert.Equal(t, []string{filepath.Join(wd, "inc")}, cfg.Netlist.IncludeDirs)
}

func TestLoadFlagPathsStayRelativeToWorkingDirectory(t *testing.T) {
	wd := isolate(t)
	cfgDir := filepath.Join(wd, "conf")
	writeFile(t, filepath.Join(cfgDir, "x.yaml"), "verbose: false\n")

	cfg, err := Load(filepath.Join("conf", "x.yaml"), newFlags(t, "--lib", "cells.cdl", "--timing", "t.jsonl"))
	require.NoError(t, err)

	assert.Equal(t, cfgDir, cfg.Root)
	assert.Equal(t, []string{filepath.Join(wd, "cells.cdl")}, cfg.CDL.Libraries)
	assert.Equal(t, filepath.Join(wd, "t.jsonl"), cfg.Timing.Path)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "output:\n  format: xml\n")
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid output.format "xml"`)

	sev := filepath.Join(dir, "sev.yaml")
	writeFile(t, sev, "checks:\n  rules:\n    unused_subcircuit: fatal\n")
	_, err = LoadFile(sev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid severity "fatal"`)

	broken := filepath.Join(dir, "broken.yaml")
	writeFile(t, broken, "cdl: [\n")
	_, err = LoadFile(broken)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.CDL.Libraries = []string{"lib/*.cdl"}
	cfg.Netlist.Defines["SYNTHESIS"] = "1"
	cfg.Checks.Rules["unknown_module"] = "off"

	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, cfg.Save(path))

			loaded, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.CDL, loaded.CDL)
			assert.Equal(t, cfg.Netlist.Defines, loaded.Netlist.Defines)
			assert.Equal(t, cfg.Output, loaded.Output)
			assert.False(t, loaded.IsRuleEnabled("unknown_module"))
		})
	}
}

func TestRuleSeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checks.Rules["empty_subcircuit"] = "error"
	cfg.Checks.Rules["unknown_module"] = "off"

	assert.Equal(t, "error", cfg.GetRuleSeverity("empty_subcircuit", "warning"))
	assert.Equal(t, "info", cfg.GetRuleSeverity("unused_subcircuit", "info"))
	assert.True(t, cfg.IsRuleEnabled("empty_subcircuit"))
	assert.True(t, cfg.IsRuleEnabled("unused_subcircuit"))
	assert.False(t, cfg.IsRuleEnabled("unknown_module"))
}
