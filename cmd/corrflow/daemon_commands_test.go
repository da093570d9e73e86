package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"corrflow/internal/api"
	"corrflow/internal/daemon"
	"corrflow/internal/ipc"
	"corrflow/internal/logging"
	"corrflow/internal/testsupport"
)

func startDaemon(t *testing.T, env *cliTestEnv) {
	t.Helper()
	logger := logging.NewNop()
	d, err := daemon.New(env.cfg, env.store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, cancel, logger)
	if err != nil {
		cancel()
		d.Stop()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
}

func TestStatusAndHealthViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	startDaemon(t, env)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")
	requireContains(t, out, env.cfg.DatabasePath())

	out, _, err = runCLI(t, []string{"--json", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Bind == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	out, _, err = runCLI(t, []string{"health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "ok (daemon)")
}

func TestHealthFallsBackToLocalDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.sock")

	out, _, err := runCLI(t, []string{"health"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "ok (local)")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.sock")

	_, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err == nil {
		t.Fatal("expected status to fail without a daemon")
	}
	if !strings.Contains(err.Error(), "corrflow serve") {
		t.Fatalf("expected a hint to start the daemon, got %v", err)
	}
}

func TestLogsCommandFiltersDaemonLog(t *testing.T) {
	env := setupCLITestEnv(t)
	contents := strings.Join([]string{
		`{"ts":"2026-03-14T09:30:00Z","level":"info","msg":"corrflow daemon started","component":"daemon"}`,
		`{"ts":"2026-03-14T09:30:02Z","level":"info","msg":"stage signed","component":"workflow","correspondence_id":7}`,
		`{"ts":"2026-03-14T09:30:03Z","level":"error","msg":"effect failed","component":"effects","correspondence_id":9}`,
	}, "\n") + "\n"
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.LogDir, logging.DaemonLogName), contents)

	out, _, err := runCLI(t, []string{"logs", "--correspondence", "7"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "INFO  [workflow] stage signed")
	if strings.Contains(out, "effect failed") {
		t.Fatalf("unexpected entry in filtered output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--level", "error", "-n", "5"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	if got := strings.Count(strings.TrimSpace(out), "\n") + 1; got != 1 {
		t.Fatalf("expected one error line, got %d:\n%s", got, out)
	}
}

func TestStopCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	startDaemon(t, env)

	out, _, err := runCLI(t, []string{"stop", "--timeout", "5s"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")

	out, _, err = runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
