package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket locations.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Server contains HTTP listener settings.
type Server struct {
	Bind                string `toml:"bind"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Auth contains bearer-token verification settings. Tokens are issued by an
// external login service sharing JWTSecret; corrflow only verifies them.
type Auth struct {
	JWTSecret    string `toml:"jwt_secret"`
	Issuer       string `toml:"issuer"`
	AdminLevel   int    `toml:"admin_level"`
	ManagerLevel int    `toml:"manager_level"`
}

// RateLimit bounds API requests per client address.
type RateLimit struct {
	Enabled       bool `toml:"enabled"`
	Requests      int  `toml:"requests"`
	WindowSeconds int  `toml:"window_seconds"`
	Burst         int  `toml:"burst"`
}

// Workflow contains approval chain settings.
type Workflow struct {
	// EmptyChain decides what happens when no approval stage applies:
	// "reject" refuses the submission, "approve" finalizes it immediately.
	EmptyChain      string   `toml:"empty_chain"`
	RejectionLabels []string `toml:"rejection_labels"`
	DefaultType     string   `toml:"default_type"`
	DefaultPriority string   `toml:"default_priority"`
	DivisionStage   string   `toml:"division_stage_name"`
	DepartmentStage string   `toml:"department_stage_name"`
	FinalStage      string   `toml:"final_stage_name"`
}

// Directory configures the organization lookup cache.
type Directory struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	CacheSize       int `toml:"cache_size"`
}

// Effects configures the asynchronous audit/notification dispatcher.
type Effects struct {
	Workers                int `toml:"workers"`
	QueueSize              int `toml:"queue_size"`
	TimeoutSeconds         int `toml:"timeout_seconds"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

// Notifications contains in-app inbox and ntfy push settings.
type Notifications struct {
	Inbox          bool   `toml:"inbox"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Approvals      bool   `toml:"approvals"`
	Copies         bool   `toml:"copies"`
	Outcomes       bool   `toml:"outcomes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for corrflow.
//
// Configuration sections by subsystem:
//   - Paths: state directory (database, lock), logs, IPC socket
//   - Server: HTTP bind address and timeouts
//   - Auth: bearer token verification and role levels
//   - RateLimit: per-client API throttling
//   - Workflow: approval chain labels and empty-chain policy
//   - Directory: organization lookup cache bounds
//   - Effects: audit/notification worker pool
//   - Notifications: inbox and ntfy routing
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Auth          Auth          `toml:"auth"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Workflow      Workflow      `toml:"workflow"`
	Directory     Directory     `toml:"directory"`
	Effects       Effects       `toml:"effects"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the expanded ~/.config/corrflow/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the config file at path (or the discovered one when path is
// empty), applies the sibling .env file and CORRFLOW_* overrides, then
// normalizes and validates. It returns the resolved path and whether a file
// was actually read; a missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	source, found, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if found {
		if err := decodeFile(source, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := LoadEnvFile(envFileFor(source)); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, source, found, nil
}

// decodeFile strictly decodes TOML, rejecting keys the Config does not know.
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)
	var strict *toml.StrictMissingError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &strict):
		return fmt.Errorf("config %s: unknown keys:\n%s", path, strict.String())
	}
	return fmt.Errorf("config %s: %w", path, err)
}

// locate picks the config file: explicit path, then $CORRFLOW_CONFIG, then
// the user config directory, then ./corrflow.toml. found is false when the
// chosen file does not exist.
func locate(path string) (resolved string, found bool, err error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CORRFLOW_CONFIG"))
	}
	if path != "" {
		if resolved, err = expandPath(path); err != nil {
			return "", false, err
		}
		found, err = isFile(resolved)
		return resolved, found, err
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("corrflow.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("config %s: %w", path, err)
}

// EnsureDirectories creates the state and log directories when set.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir = strings.TrimSpace(dir); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "corrflow.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "corrflowd.lock")
}

// CacheTTL returns the directory cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Directory.CacheTTLSeconds) * time.Second
}

// RateWindow returns the rate limit accounting window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// EffectTimeout returns the per-effect execution deadline.
func (c *Config) EffectTimeout() time.Duration {
	return time.Duration(c.Effects.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long the dispatcher may drain on shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Effects.ShutdownTimeoutSeconds) * time.Second
}

// expandPath resolves a leading ~ against the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimLeft(value[1:], `/\`))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("absolute path of %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute-path rules the loader uses.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the commented sample config to path, creating parent
// directories. The file is private because it may later hold the JWT secret.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sample config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with the secret masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	if masked.Auth.JWTSecret != "" {
		masked.Auth.JWTSecret = "********"
	}
	data, err := toml.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
