package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"corrflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CORRFLOW_CONFIG", "")
	t.Setenv("CORRFLOW_JWT_SECRET", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "corrflow")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "corrflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.SocketPath != filepath.Join(wantState, "corrflow.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.Server.Bind != "127.0.0.1:7520" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Workflow.EmptyChain != config.EmptyChainReject {
		t.Fatalf("unexpected empty chain policy: %q", cfg.Workflow.EmptyChain)
	}
	if len(cfg.Workflow.RejectionLabels) != 3 || cfg.Workflow.RejectionLabels[0] != "مرفوض" {
		t.Fatalf("unexpected rejection labels: %v", cfg.Workflow.RejectionLabels)
	}
	if cfg.RateLimit.Requests != 200 || cfg.RateWindow().Seconds() != 60 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if err := cfg.RequireSecret(); err == nil {
		t.Fatal("expected missing secret to be reported")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CORRFLOW_JWT_SECRET", "")

	custom := filepath.Join(t.TempDir(), "corrflow.toml")
	payload := map[string]any{
		"paths":    map[string]any{"state_dir": "~/corr"},
		"auth":     map[string]any{"jwt_secret": "file-secret"},
		"workflow": map[string]any{"empty_chain": "APPROVE", "rejection_labels": []string{" denied ", "", "denied"}},
		"logging":  map[string]any{"format": "JSON", "level": "DEBUG"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(custom, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(custom)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != custom {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "corr") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "corrflow", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Workflow.EmptyChain != config.EmptyChainApprove {
		t.Fatalf("expected approve policy, got %q", cfg.Workflow.EmptyChain)
	}
	if len(cfg.Workflow.RejectionLabels) != 1 || cfg.Workflow.RejectionLabels[0] != "denied" {
		t.Fatalf("expected deduplicated labels, got %v", cfg.Workflow.RejectionLabels)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
	if err := cfg.RequireSecret(); err != nil {
		t.Fatalf("RequireSecret returned error: %v", err)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CORRFLOW_JWT_SECRET", "env-secret")
	t.Setenv("CORRFLOW_NTFY_TOPIC", "https://ntfy.example/topic")

	custom := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(custom, []byte("[auth]\njwt_secret = \"file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(custom)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/topic" {
		t.Fatalf("expected env topic, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	custom := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(custom, []byte("[workflow]\nempty_chains = \"approve\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(custom); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CORRFLOW_JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "empty_chain") {
		t.Fatalf("sample config missing workflow section: %s", data)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad bind", func(c *config.Config) { c.Server.Bind = "localhost" }},
		{"empty chain", func(c *config.Config) { c.Workflow.EmptyChain = "ignore" }},
		{"priority", func(c *config.Config) { c.Workflow.DefaultPriority = "low" }},
		{"cache size", func(c *config.Config) { c.Directory.CacheSize = 0 }},
		{"workers", func(c *config.Config) { c.Effects.Workers = 0 }},
		{"rate", func(c *config.Config) { c.RateLimit.Requests = 0 }},
		{"levels", func(c *config.Config) { c.Auth.ManagerLevel = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestEncodeMasksSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "top-secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Contains(string(data), "top-secret") {
		t.Fatalf("secret leaked in encoded config: %s", data)
	}
}

func TestLoadReadsEnvFileBesideConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "corrflow.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nstate_dir = \""+filepath.ToSlash(filepath.Join(dir, "state"))+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.EnvFileName), []byte("CORRFLOW_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// Register restoration first, then unset so the dotenv value can apply.
	t.Setenv("CORRFLOW_LOG_LEVEL", "")
	os.Unsetenv("CORRFLOW_LOG_LEVEL")
	t.Setenv("CORRFLOW_CONFIG", "")

	cfg, _, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level from env file, got %q", cfg.Logging.Level)
	}
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	if err := config.LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
}
