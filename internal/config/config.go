package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: XTORCOUNT_OUTPUT__FORMAT=json sets output.format.
const EnvPrefix = "XTORCOUNT_"

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the top-level configuration for xtorcount
type Config struct {
	CDL     CDLConfig     `koanf:"cdl" json:"cdl"`
	Netlist NetlistConfig `koanf:"netlist" json:"netlist"`
	Output  OutputConfig  `koanf:"output" json:"output"`
	Checks  ChecksConfig  `koanf:"checks" json:"checks"`
	Timing  TimingConfig  `koanf:"timing" json:"timing"`
	Verbose bool          `koanf:"verbose" json:"verbose"`

	// Path is the configuration file that was loaded, empty when none was.
	Path string `koanf:"-" json:"-"`
	// Root anchors the relative paths of the file: its directory, or the
	// working directory when no file was loaded.
	Root string `koanf:"-" json:"-"`
}

// CDLConfig controls how circuit descriptions are read
type CDLConfig struct {
	// TransistorKinds lists the element letters counted as transistors
	TransistorKinds []string `koanf:"transistor_kinds" json:"transistor_kinds"`

	// Libraries is a list of glob patterns for CDL files merged before the
	// primary document, in order
	Libraries []string `koanf:"libraries" json:"libraries"`
}

// NetlistConfig controls the Verilog preprocessor
type NetlistConfig struct {
	IncludeDirs []string          `koanf:"include_dirs" json:"include_dirs"`
	Defines     map[string]string `koanf:"defines" json:"defines"`
}

// OutputConfig selects what the count command prints
type OutputConfig struct {
	// Format is "text" or "json"
	Format string `koanf:"format" json:"format"`

	// Report prints the per-cell table before the total
	Report bool `koanf:"report" json:"report"`
}

// ChecksConfig contains policy check configuration
type ChecksConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled"`

	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `koanf:"rules" json:"rules"`
}

// TimingConfig enables stage timing
type TimingConfig struct {
	// Path receives one JSON line per pipeline stage
	Path string `koanf:"path" json:"path"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		CDL: CDLConfig{
			TransistorKinds: []string{"M"},
			Libraries:       []string{},
		},
		Netlist: NetlistConfig{
			IncludeDirs: []string{},
			Defines:     map[string]string{},
		},
		Output: OutputConfig{Format: FormatText},
		Checks: ChecksConfig{Rules: map[string]string{}},
	}
}

func defaultsMap() map[string]interface{} {
	return map[string]interface{}{
		"cdl.transistor_kinds": []string{"M"},
		"output.format":        FormatText,
		"verbose":              false,
	}
}

// SearchPaths returns the files Load looks for, in order.
func SearchPaths() []string {
	cwd, _ := os.Getwd()
	paths := []string{
		filepath.Join(cwd, "xtorcount.yaml"),
		filepath.Join(cwd, "xtorcount.json"),
		filepath.Join(cwd, ".xtorcount.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "xtorcount", "config.yaml"))
	}
	return paths
}

// Load builds the configuration from defaults, the configuration file,
// XTORCOUNT_ environment variables and the explicitly set flags, in
// increasing order of precedence.
//
// When explicit is empty the first existing file of SearchPaths is used; a
// missing file is not an error. An explicit file must exist.
func Load(explicit string, flags *pflag.FlagSet) (*Config, error) {
	path := explicit
	if path == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	return load(path, flags)
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		// YAML is a superset of JSON, so one parser reads both.
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Path = path
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		cfg.Root = filepath.Dir(abs)
	} else {
		cfg.Root, _ = os.Getwd()
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolP("verbose", "v", false, "enable debug logging and progress output")
	fs.Bool("report", false, "print the per-cell table before the total")
	fs.Bool("json", false, "write the report as JSON")
	fs.Bool("check", false, "evaluate policy checks")
	fs.String("timing", "", "write stage timing as JSON lines to `file`")
	fs.StringSlice("kinds", nil, "element letters counted as transistors")
	fs.StringSlice("lib", nil, "extra CDL library files or glob patterns")
	fs.StringSliceP("include", "I", nil, "netlist include directory")
	fs.StringSliceP("define", "D", nil, "predefine a netlist macro as `NAME[=VALUE]`")
}

// flagKey maps the command flags onto configuration keys. Only flags that
// were set on the command line take part. Path flags are made absolute so
// they stay relative to the working directory, not to the config file.
func flagKey(flags *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		if !f.Changed {
			return "", nil
		}
		switch f.Name {
		case "verbose":
			return "verbose", posflag.FlagVal(flags, f)
		case "report":
			return "output.report", posflag.FlagVal(flags, f)
		case "json":
			if v, _ := flags.GetBool("json"); v {
				return "output.format", FormatJSON
			}
			return "output.format", FormatText
		case "check":
			return "checks.enabled", posflag.FlagVal(flags, f)
		case "timing":
			v, _ := flags.GetString("timing")
			return "timing.path", absPath(v)
		case "kinds":
			return "cdl.transistor_kinds", posflag.FlagVal(flags, f)
		case "lib":
			v, _ := flags.GetStringSlice("lib")
			return "cdl.libraries", absPaths(v)
		case "include":
			v, _ := flags.GetStringSlice("include")
			return "netlist.include_dirs", absPaths(v)
		case "define":
			v, _ := flags.GetStringSlice("define")
			return "netlist.defines", parseDefines(v)
		}
		return "", nil
	}
}

// parseDefines turns NAME=VALUE pairs into a map. A bare NAME defines an
// empty macro.
func parseDefines(pairs []string) map[string]interface{} {
	defs := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		name, value, _ := strings.Cut(p, "=")
		if name = strings.TrimSpace(name); name != "" {
			defs[name] = value
		}
	}
	return defs
}

func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func absPaths(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = absPath(p)
	}
	return out
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.CDL.TransistorKinds) == 0 {
		c.CDL.TransistorKinds = []string{"M"}
	}
	if c.Netlist.Defines == nil {
		c.Netlist.Defines = make(map[string]string)
	}
	if c.Output.Format == "" {
		c.Output.Format = FormatText
	}
	c.Output.Format = strings.ToLower(c.Output.Format)
	if c.Checks.Rules == nil {
		c.Checks.Rules = make(map[string]string)
	}
}

var severities = map[string]bool{"off": true, "info": true, "warning": true, "error": true}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid output.format %q: want %q or %q", c.Output.Format, FormatText, FormatJSON)
	}
	for rule, sev := range c.Checks.Rules {
		if !severities[sev] {
			return fmt.Errorf("invalid severity %q for rule %s", sev, rule)
		}
	}
	return nil
}

// Save writes the configuration to a file, as JSON when the name ends in
// .json and as YAML otherwise.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if !strings.EqualFold(filepath.Ext(path), ".json") {
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		if data, err = yaml.Parser().Marshal(m); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Checks.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Checks.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
