// Package config loads faultline.toml, the per-project defaults for the
// trace and selection passes. Command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"faultline/internal/autoconfig"
	"faultline/internal/instrument"
	"faultline/internal/selector"
)

// FileName is the name searched for by Find.
const FileName = "faultline.toml"

var (
	// ErrSelectorName indicates a [[selector]] table without a name.
	ErrSelectorName = errors.New("missing [[selector]].name")
	// ErrSelectorKind indicates a [[selector]] table without a kind.
	ErrSelectorKind = errors.New("missing [[selector]].kind")
)

// Config mirrors faultline.toml.
type Config struct {
	// Path is the file the config was loaded from; empty for defaults.
	Path string `toml:"-"`

	Trace     TraceConfig      `toml:"trace"`
	Select    SelectConfig     `toml:"select"`
	Selectors []SelectorConfig `toml:"selector"`
	Pipeline  PipelineConfig   `toml:"pipeline"`
}

// TraceConfig holds the instTrace options.
type TraceConfig struct {
	Output   string `toml:"output"`
	MaxTrace int    `toml:"max_trace"`
	Debug    bool   `toml:"debug"`
}

// SelectConfig holds the fiselect options.
type SelectConfig struct {
	Selector         string `toml:"selector"`
	AutomationConfig string `toml:"automation_config"`
	Mode             string `toml:"mode"`
	Report           string `toml:"report"`
}

// SelectorConfig declares a custom selector.
type SelectorConfig struct {
	Name        string   `toml:"name"`
	Kind        string   `toml:"kind"`
	Category    string   `toml:"category"`
	Description string   `toml:"description"`
	Opcodes     []string `toml:"opcodes"`
	Functions   []string `toml:"functions"`
}

// PipelineConfig holds batch options.
type PipelineConfig struct {
	Passes []string `toml:"passes"`
	Jobs   int      `toml:"jobs"`
	OutDir string   `toml:"out_dir"`
}

// DefaultPasses is the pass list used when none is configured.
var DefaultPasses = []string{"genindex", "fiselect", "instTrace"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Trace: TraceConfig{
			Output:   instrument.DefaultOutput,
			MaxTrace: instrument.Unlimited,
		},
		Select: SelectConfig{
			Selector:         selector.BlockCopyName,
			AutomationConfig: autoconfig.DefaultPath,
			Mode:             autoconfig.ModeTruncate.String(),
			Report:           selector.DefaultReportPath,
		},
		Pipeline: PipelineConfig{
			Passes: slices.Clone(DefaultPasses),
		},
	}
}

// Find walks up from startDir looking for faultline.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("pipeline", "passes") && len(cfg.Pipeline.Passes) == 0 {
		return Config{}, fmt.Errorf("%s: [pipeline].passes is empty", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest faultline.toml above startDir, or the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	if c.Trace.MaxTrace < instrument.Unlimited {
		return fmt.Errorf("[trace].max_trace must be >= %d, got %d", instrument.Unlimited, c.Trace.MaxTrace)
	}
	if strings.TrimSpace(c.Trace.Output) == "" {
		return fmt.Errorf("[trace].output is empty")
	}
	if _, err := autoconfig.ParseMode(c.Select.Mode); err != nil {
		return fmt.Errorf("[select].mode: %w", err)
	}
	if c.Pipeline.Jobs < 0 {
		return fmt.Errorf("[pipeline].jobs must not be negative")
	}
	for i, s := range c.Selectors {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("selector #%d: %w", i+1, ErrSelectorName)
		}
		if strings.TrimSpace(s.Kind) == "" {
			return fmt.Errorf("selector %q: %w", s.Name, ErrSelectorKind)
		}
	}
	return nil
}

// TraceOptions converts the [trace] section to pass options.
func (c *Config) TraceOptions() instrument.Config {
	return instrument.Config{
		OutputFilename: c.Trace.Output,
		MaxTrace:       c.Trace.MaxTrace,
		Debug:          c.Trace.Debug,
	}
}

// Customs converts the [[selector]] tables for selector.Bootstrap.
func (c *Config) Customs() []selector.Custom {
	out := make([]selector.Custom, len(c.Selectors))
	for i, s := range c.Selectors {
		out[i] = selector.Custom{
			Name:        s.Name,
			Kind:        s.Kind,
			Category:    s.Category,
			Description: s.Description,
			Opcodes:     slices.Clone(s.Opcodes),
			Functions:   slices.Clone(s.Functions),
		}
	}
	return out
}

// AutomationMode parses [select].mode; Validate has already accepted it.
func (c *Config) AutomationMode() autoconfig.Mode {
	mode, err := autoconfig.ParseMode(c.Select.Mode)
	if err != nil {
		return autoconfig.ModeTruncate
	}
	return mode
}
