package testsupport

import (
	"path/filepath"
	"testing"

	"corrflow/internal/config"
)

// TestJWTSecret is the signing secret placed in generated test configs.
const TestJWTSecret = "test-secret-0123456789abcdef"

// ConfigOption adjusts a test config before its directories are created.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a valid config whose paths live under t.TempDir().
// Options run after the test defaults are applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "state", "corrflow.sock")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Auth.JWTSecret = TestJWTSecret
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithEmptyChain sets the empty chain policy on the test config.
func WithEmptyChain(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.EmptyChain = policy
	}
}

// WithNtfyTopic points push notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithRateLimit overrides the API rate limit.
func WithRateLimit(requests, windowSeconds, burst int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RateLimit.Enabled = true
		b.cfg.RateLimit.Requests = requests
		b.cfg.RateLimit.WindowSeconds = windowSeconds
		b.cfg.RateLimit.Burst = burst
	}
}

// BaseDir returns the temp directory NewConfig placed the paths under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
