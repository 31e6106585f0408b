package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultline/internal/trace"
)

func addTraceFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("trace", "", "write pipeline trace events to a file (\"-\" for stderr, \"--\" for stdout)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.String("trace-format", "auto", "trace event format (auto|text|ndjson)")
	flags.Int("trace-ring-size", trace.DefaultRingSize, "events kept in ring mode")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 = off)")
}

// traceConfig reads the persistent trace flags. A trace destination given
// without --trace-level turns on phase events.
func traceConfig(root *cobra.Command) (trace.Config, error) {
	flags := root.PersistentFlags()
	var cfg trace.Config
	var err error

	output, _ := flags.GetString("trace")
	levelStr, _ := flags.GetString("trace-level")
	modeStr, _ := flags.GetString("trace-mode")
	formatStr, _ := flags.GetString("trace-format")
	cfg.RingSize, _ = flags.GetInt("trace-ring-size")
	cfg.Heartbeat, _ = flags.GetDuration("trace-heartbeat")

	if cfg.Level, err = trace.ParseLevel(levelStr); err != nil {
		return cfg, err
	}
	if cfg.Level == trace.LevelOff && output != "" && !flags.Changed("trace-level") {
		cfg.Level = trace.LevelPhase
	}
	if cfg.Mode, err = trace.ParseMode(modeStr); err != nil {
		return cfg, err
	}
	if cfg.Format, err = trace.ParseFormat(formatStr); err != nil {
		return cfg, err
	}
	cfg.OutputPath = output
	if cfg.OutputPath == "" {
		cfg.OutputPath = "-"
	}
	return cfg, nil
}

// setupTracing installs the tracer on the command context and returns the
// cleanup that stops beats, dumps the ring and closes the sink.
func setupTracing(cmd *cobra.Command) (func(), error) {
	cfg, err := traceConfig(cmd.Root())
	if err != nil {
		return nil, fmt.Errorf("invalid trace flags: %w", err)
	}
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, cfg.Heartbeat)
	stderr := cmd.ErrOrStderr()
	return func() {
		heartbeat.Stop()
		// In both mode the stream already holds every event.
		if ring := trace.RingOf(tracer); ring != nil && cfg.Mode == trace.ModeRing {
			if n := ring.Dropped(); n > 0 {
				fmt.Fprintf(stderr, "trace: %d earlier events dropped\n", n)
			}
			if err := ring.Dump(stderr, cfg.Resolve()); err != nil {
				fmt.Fprintf(stderr, "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(stderr, "trace: close error: %v\n", err)
		}
	}, nil
}
