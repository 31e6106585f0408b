package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"faultline/internal/pass"
	"faultline/internal/selector"
	"faultline/internal/version"
)

// versionPayload is the JSON shape of `faultline version --format=json`.
type versionPayload struct {
	Tool string `json:"tool"`
	version.Info
	Go        string   `json:"go,omitempty"`
	Passes    []string `json:"passes,omitempty"`
	Selectors []string `json:"selectors,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show faultline build metadata",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	f := versionCmd.Flags()
	f.Bool("hash", false, "include git commit hash")
	f.Bool("message", false, "include git commit message")
	f.Bool("date", false, "include build timestamp")
	f.Bool("full", false, "include all build metadata and the builtin passes and selectors")
	f.String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	full, _ := flags.GetBool("full")
	want := func(name string) bool {
		v, _ := flags.GetBool(name)
		return v || full
	}
	format, _ := flags.GetString("format")

	info := version.Current()
	payload := versionPayload{Tool: "faultline", Info: version.Info{Version: info.Version}}
	if want("hash") {
		payload.GitCommit = valueOrUnknown(info.GitCommit)
	}
	if want("message") {
		payload.GitMessage = valueOrUnknown(info.GitMessage)
	}
	if want("date") {
		payload.BuildDate = valueOrUnknown(info.BuildDate)
	}
	if full {
		payload.Go = runtime.Version()
		for _, p := range pass.Builtins().Infos() {
			payload.Passes = append(payload.Passes, p.Name)
		}
		if reg, err := selector.Bootstrap(nil); err == nil {
			payload.Selectors = reg.Names()
		}
	}

	switch strings.ToLower(format) {
	case "pretty":
		renderVersionPretty(cmd.OutOrStdout(), payload)
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	return errInvalidFlag("format", format, "pretty|json")
}

func renderVersionPretty(out io.Writer, p versionPayload) {
	fmt.Fprintf(out, "faultline %s\n", version.Colored(p.Version))
	line := func(key, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-10s %s\n", key+":", value)
		}
	}
	line("commit", p.GitCommit)
	line("message", p.GitMessage)
	line("built", p.BuildDate)
	line("go", p.Go)
	line("passes", strings.Join(p.Passes, ", "))
	line("selectors", strings.Join(p.Selectors, ", "))
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
