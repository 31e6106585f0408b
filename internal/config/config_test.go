package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"faultline/internal/autoconfig"
	"faultline/internal/instrument"
	"faultline/internal/selector"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[trace]
output = "run.trace"
debug = true

[select]
mode = "append"

[[selector]]
name = "cmp-only"
kind = "insttype"
category = "BitFlip"
opcodes = ["icmp", "fcmp"]

[pipeline]
jobs = 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path)
	require.Equal(t, "run.trace", cfg.Trace.Output)
	require.Equal(t, instrument.Unlimited, cfg.Trace.MaxTrace)
	require.True(t, cfg.Trace.Debug)
	require.Equal(t, selector.BlockCopyName, cfg.Select.Selector)
	require.Equal(t, autoconfig.ModeAppend, cfg.AutomationMode())
	require.Equal(t, DefaultPasses, cfg.Pipeline.Passes)
	require.Equal(t, 4, cfg.Pipeline.Jobs)

	customs := cfg.Customs()
	require.Len(t, customs, 1)
	require.Equal(t, []string{"icmp", "fcmp"}, customs[0].Opcodes)

	reg, err := selector.Bootstrap(customs)
	require.NoError(t, err)
	require.Equal(t, []string{selector.BlockCopyName, "cmp-only"}, reg.Names())

	opts := cfg.TraceOptions()
	require.Equal(t, "run.trace", opts.OutputFilename)
	require.True(t, opts.Debug)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		is   error
	}{
		{name: "syntax", body: "[trace\n", want: "failed to parse TOML"},
		{name: "unknown key", body: "[trace]\nout = \"x\"\n", want: "unknown keys: trace.out"},
		{name: "max trace", body: "[trace]\nmax_trace = -2\n", want: "max_trace must be >= -1"},
		{name: "mode", body: "[select]\nmode = \"rotate\"\n", want: "invalid automation-config mode"},
		{name: "empty passes", body: "[pipeline]\npasses = []\n", want: "[pipeline].passes is empty"},
		{name: "selector name", body: "[[selector]]\nkind = \"insttype\"\n", is: ErrSelectorName},
		{name: "selector kind", body: "[[selector]]\nname = \"x\"\n", is: ErrSelectorKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), path)
			if tt.want != "" {
				require.Contains(t, err.Error(), tt.want)
			}
			if tt.is != nil {
				require.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, "[trace]\nmax_trace = 10\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok, err := Find(nested)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, path, found)

	cfg, err := Discover(nested)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Trace.MaxTrace)
}

func TestDiscoverWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	if _, ok, _ := Find(dir); ok {
		t.Skip("a faultline.toml exists above the temp dir")
	}
	cfg, err := Discover(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
