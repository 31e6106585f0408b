package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"faultline/internal/autoconfig"
	"faultline/internal/config"
	"faultline/internal/diag"
	"faultline/internal/diagfmt"
	"faultline/internal/ir"
	"faultline/internal/observ"
	"faultline/internal/pass"
	"faultline/internal/pipeline"
	"faultline/internal/trace"
	"faultline/internal/ui"
)

var optCmd = &cobra.Command{
	Use:   "opt [flags] <module.ll|module.fib>...",
	Short: "Run fault-injection passes over IR modules",
	Long: `Run the configured passes (by default genindex, fiselect and instTrace)
over each module and write the result next to the input as <name>.fi.<ext>`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOpt,
}

func init() {
	optCmd.Flags().StringSliceP("passes", "p", nil, "passes to run, in order (default from config: genindex,fiselect,instTrace)")
	optCmd.Flags().String("tout", "", "trace output file name handed to printInstTracer (default traceOutput)")
	optCmd.Flags().Bool("debug-trace", false, "print per-instruction instTrace decisions to stderr")
	optCmd.Flags().Int("max-trace", 0, "traces recorded after a fault (-1 = unlimited)")
	optCmd.Flags().String("selector", "", "selector used by fiselect (see 'faultline selectors')")
	optCmd.Flags().String("automation-config", "", "file that receives the category of each selected target")
	optCmd.Flags().String("automation-mode", "", "automation-config write mode (truncate|append)")
	optCmd.Flags().String("report", "", "write the merged fiselect targets here")
	optCmd.Flags().Int("jobs", 0, "max parallel modules (0=auto)")
	optCmd.Flags().StringP("output", "o", "", "output file for a single input (\"-\" for stdout)")
	optCmd.Flags().String("out-dir", "", "directory for derived output files")
	optCmd.Flags().String("emit", "auto", "output IR format (auto|text|binary)")
	optCmd.Flags().Bool("dry-run", false, "run passes without writing modules or reports")
	optCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

// optSettings overlays opt's flags on the loaded configuration.
func optSettings(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("passes") {
		passes, err := cmd.Flags().GetStringSlice("passes")
		if err != nil {
			return cfg, fmt.Errorf("failed to get passes flag: %w", err)
		}
		cfg.Pipeline.Passes = splitList(passes)
	}
	for _, o := range []struct {
		name string
		dst  *string
	}{
		{"tout", &cfg.Trace.Output},
		{"selector", &cfg.Select.Selector},
		{"automation-config", &cfg.Select.AutomationConfig},
		{"automation-mode", &cfg.Select.Mode},
		{"report", &cfg.Select.Report},
		{"out-dir", &cfg.Pipeline.OutDir},
	} {
		if err := overlayString(cmd, o.name, o.dst); err != nil {
			return cfg, err
		}
	}
	if err := overlayInt(cmd, "max-trace", &cfg.Trace.MaxTrace); err != nil {
		return cfg, err
	}
	if err := overlayInt(cmd, "jobs", &cfg.Pipeline.Jobs); err != nil {
		return cfg, err
	}
	if err := overlayBool(cmd, "debug-trace", &cfg.Trace.Debug); err != nil {
		return cfg, err
	}
	if len(cfg.Pipeline.Passes) == 0 {
		return cfg, fmt.Errorf("no passes to run")
	}
	return cfg, cfg.Validate()
}

func runOpt(cmd *cobra.Command, args []string) error {
	cfg, err := optSettings(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(&cfg)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	showTimings, _ := cmd.Root().PersistentFlags().GetBool("timings")
	emitStr, _ := cmd.Flags().GetString("emit")
	format, err := pipeline.ParseFormat(emitStr)
	if err != nil {
		return err
	}
	uiStr, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	toStdout := output == "-"
	if toStdout && len(args) != 1 {
		return fmt.Errorf("-o - needs exactly one input")
	}

	ctx := cmd.Context()
	tr := trace.FromContext(ctx)
	traceOpts := cfg.TraceOptions()
	if traceOpts.Debug {
		traceOpts.DebugOut = cmd.ErrOrStderr()
	}
	req := &pipeline.Request{
		Inputs:    args,
		BaseDir:   ".",
		Passes:    cfg.Pipeline.Passes,
		Registry:  pass.Builtins(),
		Selectors: reg,
		Selector:  cfg.Select.Selector,
		Trace:     traceOpts,
		OutDir:    cfg.Pipeline.OutDir,
		Format:    format,
		DryRun:    dryRun || toStdout,
		Jobs:      cfg.Pipeline.Jobs,
	}
	if !toStdout {
		req.Output = output
	}
	var writer *autoconfig.Writer
	if slices.Contains(req.Passes, pass.FISelect) {
		writer = autoconfig.New(cfg.Select.AutomationConfig, cfg.AutomationMode(), tr)
		req.Recorder = writer
		if !dryRun && !toStdout {
			req.ReportPath = cfg.Select.Report
		}
	}
	if req.OutDir != "" && !req.DryRun {
		if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
		req.Timer = timer
	}

	var res pipeline.Result
	if shouldUseTUI(mode, toStdout) && !quiet {
		files := pipeline.DisplayNames(args, req.BaseDir)
		res, err = ui.Run(ctx, cmd.OutOrStdout(), "instrumenting", files, req)
	} else {
		res, err = pipeline.Run(ctx, req)
	}
	if derr := printLoadDiagnostics(cmd, res); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		return err
	}

	if toStdout {
		if err := ir.Print(cmd.OutOrStdout(), res.Files[0].Module); err != nil {
			return err
		}
	}
	if !quiet && !toStdout {
		printOptSummary(cmd.ErrOrStderr(), res, req, writer)
	}
	if showTimings {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}

// printLoadDiagnostics renders parse diagnostics of all failed inputs as
// one sorted, deduplicated list, capped at --max-diagnostics.
func printLoadDiagnostics(cmd *cobra.Command, res pipeline.Result) error {
	flags := cmd.Root().PersistentFlags()
	maxDiagnostics, _ := flags.GetInt("max-diagnostics")
	format, _ := flags.GetString("diag-format")

	all := diag.NewBag(0)
	sources := map[string]string{}
	for _, fr := range res.Failed() {
		if fr.Bag == nil || fr.Bag.Len() == 0 {
			continue
		}
		all.Merge(fr.Bag)
		if src, err := os.ReadFile(fr.Input); err == nil {
			sources[fr.Input] = string(src)
		}
	}
	if all.Len() == 0 {
		return nil
	}
	all.Sort()
	all.Dedup()
	limit := all.Len()
	if maxDiagnostics > 0 {
		limit = min(limit, maxDiagnostics)
	}
	shown := diag.NewBag(limit)
	for _, d := range all.Items() {
		if !shown.Add(d) {
			break
		}
	}

	switch strings.ToLower(format) {
	case "json":
		return diagfmt.JSON(cmd.ErrOrStderr(), shown, diagfmt.JSONOpts{IncludeNotes: true})
	case "", "pretty":
		diagfmt.Pretty(cmd.ErrOrStderr(), shown, diagfmt.PrettyOpts{
			Color:     !color.NoColor,
			ShowNotes: true,
			Sources:   sources,
		})
		if hidden := all.Len() - shown.Len(); hidden > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "... %d more diagnostics not shown\n", hidden)
		}
		return nil
	}
	return errInvalidFlag("diag-format", format, "pretty|json")
}

func printOptSummary(out io.Writer, res pipeline.Result, req *pipeline.Request, writer *autoconfig.Writer) {
	for _, fr := range res.Files {
		changed := "unchanged"
		if fr.Passes.Modified {
			changed = "modified by " + strings.Join(fr.Passes.Changed, ", ")
		}
		dest := fr.Output
		if dest == "" {
			dest = "(not written)"
		}
		fmt.Fprintf(out, "%s -> %s: %s\n", fr.Input, dest, changed)
	}
	if res.Report != nil {
		where := ""
		if req.ReportPath != "" {
			where = " -> " + req.ReportPath
		}
		fmt.Fprintf(out, "%s: %d targets%s\n", res.Report.Selector, len(res.Report.Targets), where)
	}
	if writer != nil {
		if written, failures := writer.Stats(); failures > 0 {
			fmt.Fprintf(out, "warning: %d of %d automation-config writes to %s failed\n", failures, written+failures, writer.Path())
		}
	}
}
