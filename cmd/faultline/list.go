package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"faultline/internal/pass"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "List registered fault-injection selectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := loadRegistry(&cfg)
		if err != nil {
			return err
		}
		rows := make([][2]string, 0, reg.Len())
		for _, e := range reg.Entries() {
			rows = append(rows, [2]string{e.Name, e.Description})
		}
		return printTable(cmd.OutOrStdout(), rows)
	},
}

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List available passes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := pass.Builtins().Infos()
		rows := make([][2]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, [2]string{info.Name, info.Description})
		}
		return printTable(cmd.OutOrStdout(), rows)
	},
}

func printTable(out io.Writer, rows [][2]string) error {
	name := color.New(color.Bold)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", name.Sprint(r[0]), r[1])
	}
	return tw.Flush()
}
