package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"corrflow/internal/config"
	"corrflow/internal/correspondence"
	"corrflow/internal/directory"
	"corrflow/internal/logging"
	"corrflow/internal/notifications"
	"corrflow/internal/store"
	"corrflow/internal/testsupport"
	"corrflow/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("CORRFLOW_CONFIG", "")
	t.Setenv("CORRFLOW_JWT_SECRET", "")
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "home", ".config", "corrflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		socketPath: cfg.Paths.SocketPath,
		configPath: configPath,
	}
}

// createCorrespondence submits a correspondence through the same services
// the daemon uses.
func (e *cliTestEnv) createCorrespondence(t *testing.T, actor int64, in correspondence.CreateInput) correspondence.Created {
	t.Helper()
	dir := directory.NewSQLDirectory(e.store)
	engine := workflow.NewEngine(e.cfg, e.store, dir, logging.NewNop(),
		workflow.WithNotifier(notifications.NewService(e.cfg, e.store, nil, logging.NewNop())))
	svc := correspondence.NewService(e.cfg, e.store, dir, engine, logging.NewNop())
	created, err := svc.Create(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return created
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\nsocket_path = %q\n\n[server]\nbind = %q\n\n[auth]\njwt_secret = %q\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.SocketPath,
		cfg.Server.Bind,
		cfg.Auth.JWTSecret,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
