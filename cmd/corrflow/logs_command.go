package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"corrflow/internal/logging"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logging.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName)
			result, err := logging.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range result.Entries {
				printEntry(out, e, ctx.jsonOutput())
			}
			if !follow {
				return nil
			}

			base := cmd.Context()
			if base == nil {
				base = context.Background()
			}
			followCtx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logging.Follow(followCtx, path, result.Offset, filter, 0, func(e logging.Entry) {
				printEntry(out, e, ctx.jsonOutput())
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only lines from this component")
	cmd.Flags().Int64Var(&filter.CorrespondenceID, "correspondence", 0, "Only lines about this correspondence id")
	return cmd
}

func printEntry(out io.Writer, e logging.Entry, raw bool) {
	if raw || e.Time == "" {
		fmt.Fprintln(out, e.Raw)
		return
	}
	component := ""
	if e.Component != "" {
		component = " [" + e.Component + "]"
	}
	fmt.Fprintf(out, "%s %-5s%s %s\n", e.Time, strings.ToUpper(e.Level), component, e.Message)
}
