package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"corrflow/internal/api"
	"corrflow/internal/daemonctl"
	"corrflow/internal/ipc"
	"corrflow/internal/store"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStatusCommand(ctx),
		newHealthCommand(ctx),
		newStopCommand(ctx),
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp.Status)
				}
				renderStatus(cmd, resp.Status)
				return nil
			})
		},
	}
}

// newHealthCommand asks the daemon first and falls back to opening the
// database directly when no daemon is listening.
func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database schema and integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var health api.Health
			source := "daemon"
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Health()
				if err != nil {
					return err
				}
				health = resp.Health
				return nil
			})
			if err != nil {
				source = "local"
				err = ctx.withBackend(func(b *backend) error {
					h, herr := b.store.CheckHealth(cmd.Context())
					health = api.FromHealth(withError(h, herr))
					return nil
				})
				if err != nil {
					return err
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Health:         %s (%s)\n", health.Status, source)
			fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
			fmt.Fprintf(out, "Integrity:      %s\n", yesNo(health.Integrity))
			if len(health.MissingTables) > 0 {
				fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(health.MissingTables, ", "))
			}
			if health.Detail != "" {
				fmt.Fprintf(out, "Detail:         %s\n", health.Detail)
			}
			if health.Status != "ok" {
				return fmt.Errorf("database is %s", health.Status)
			}
			return nil
		},
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			socket := ctx.socketPath()
			result, err := daemonctl.EnsureStarted(socket, exe, daemonctl.LaunchOptions{
				SocketPath: socket,
				ConfigPath: strings.TrimSpace(ctx.configPath),
				LogLevel:   logLevel,
			}, timeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d, %s)\n", result.PID, result.Bind)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d, %s)\n", result.PID, result.Bind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the daemon socket")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running daemon to shut down and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopped, err := daemonctl.Stop(ctx.socketPath(), timeout)
			if err != nil {
				return err
			}
			if !stopped {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "How long to wait for shutdown")
	return cmd
}

func withError(h store.DatabaseHealth, err error) store.DatabaseHealth {
	if err != nil && h.Error == "" {
		h.Error = err.Error()
	}
	return h
}

func renderStatus(cmd *cobra.Command, s api.DaemonStatus) {
	out := cmd.OutOrStdout()
	running := "stopped"
	if s.Running {
		running = "running"
	}
	fmt.Fprintf(out, "Daemon:    %s (pid %d)\n", running, s.PID)
	fmt.Fprintf(out, "Listening: %s\n", s.Bind)
	fmt.Fprintf(out, "Database:  %s\n", s.DatabasePath)
	fmt.Fprintf(out, "Lock:      %s\n", s.LockFilePath)
	if s.SessionID != "" {
		fmt.Fprintf(out, "Session:   %s\n", s.SessionID)
	}
	if s.StartedAt != "" {
		fmt.Fprintf(out, "Started:   %s\n", s.StartedAt)
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Counter", "Value"},
		[][]string{
			{"effects queued", strconv.FormatInt(s.Effects.Queued, 10)},
			{"effects completed", strconv.FormatInt(s.Effects.Completed, 10)},
			{"effects failed", strconv.FormatInt(s.Effects.Failed, 10)},
			{"effects dropped", strconv.FormatInt(s.Effects.Dropped, 10)},
			{"effects pending", strconv.Itoa(s.Effects.Pending)},
			{"effect workers", strconv.Itoa(s.Effects.Workers)},
			{"directory cache hits", strconv.FormatUint(s.Directory.Hits, 10)},
			{"directory cache misses", strconv.FormatUint(s.Directory.Misses, 10)},
			{"directory cache evictions", strconv.FormatUint(s.Directory.Evictions, 10)},
			{"directory cache size", strconv.Itoa(s.Directory.Size)},
		},
		1,
	))
}
