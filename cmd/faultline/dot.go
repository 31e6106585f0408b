package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"faultline/internal/dot"
	"faultline/internal/index"
	"faultline/internal/ir"
	"faultline/internal/pipeline"
	"faultline/internal/selector"
)

var dotCmd = &cobra.Command{
	Use:   "dot [flags] <module.ll|module.fib>",
	Short: "Render the data-dependence graph of indexed instructions",
	Long: `Render indexed instructions as llfiID_<N> nodes joined by def-use edges.
Targets from a selection report (or a selector run on the spot) are bordered
red; with --affected the instructions they reach are filled yellow`,
	Args: cobra.ExactArgs(1),
	RunE: runDot,
}

func init() {
	dotCmd.Flags().StringP("output", "o", "", "output .dot file (default <name>.dot, \"-\" for stdout)")
	dotCmd.Flags().String("targets", "", "fiselect report whose targets are highlighted")
	dotCmd.Flags().String("selector", "", "select targets with this selector instead of reading a report")
	dotCmd.Flags().Bool("affected", false, "fill instructions reachable from targets")
	dotCmd.Flags().String("uses", "", "also write the llfiID use listing to this file")
	dotCmd.Flags().Bool("raw-names", false, "keep mangled function names in cluster labels")
}

func runDot(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	targetsPath, _ := cmd.Flags().GetString("targets")
	selName, _ := cmd.Flags().GetString("selector")
	affected, _ := cmd.Flags().GetBool("affected")
	usesPath, _ := cmd.Flags().GetString("uses")
	raw, _ := cmd.Flags().GetBool("raw-names")
	if targetsPath != "" && selName != "" {
		return fmt.Errorf("--targets and --selector cannot be used together")
	}

	m, bag, err := pipeline.Load(input)
	if err != nil {
		printLoadDiagnostics(cmd, pipeline.Result{Files: []pipeline.FileResult{{Input: input, Bag: bag, Err: err}}})
		return err
	}
	if err := ensureIndexed(m); err != nil {
		return err
	}

	opts := dot.Options{Raw: raw}
	switch {
	case targetsPath != "":
		rep, err := selector.ReadReportFile(targetsPath)
		if err != nil {
			return err
		}
		opts.Targets = rep.IDs(m.Name)
	case selName != "":
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := loadRegistry(&cfg)
		if err != nil {
			return err
		}
		entry, ok := reg.Entry(selName)
		if !ok {
			return fmt.Errorf("unknown selector %q (known: %s)", selName, strings.Join(reg.Names(), ", "))
		}
		rep, err := selector.Run(cmd.Context(), m, entry.Name, entry.Selector, index.Meta{}, nil)
		if err != nil {
			return err
		}
		opts.Targets = rep.IDs("")
	}
	if affected {
		opts.Affected = dot.Affected(m, opts.Targets)
	}

	if output == "" {
		base := filepath.Base(input)
		output = filepath.Join(filepath.Dir(input), strings.TrimSuffix(base, filepath.Ext(base))+".dot")
	}
	if err := writeTo(cmd.OutOrStdout(), output, func(w io.Writer) error { return dot.Write(w, m, opts) }); err != nil {
		return err
	}
	if usesPath != "" {
		if err := writeTo(cmd.OutOrStdout(), usesPath, func(w io.Writer) error { return dot.WriteUses(w, m) }); err != nil {
			return err
		}
	}
	return nil
}

// ensureIndexed numbers a module that carries no IDs at all; a partly
// indexed module is only verified.
func ensureIndexed(m *ir.Module) error {
	tbl, err := index.Build(m)
	if err != nil {
		return err
	}
	if tbl.Len() > 0 {
		return nil
	}
	_, err = index.Assign(m)
	return err
}

func writeTo(stdout io.Writer, path string, render func(io.Writer) error) error {
	if path == "-" {
		return render(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := render(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
