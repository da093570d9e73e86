package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeAuth()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.StateDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if value, ok := os.LookupEnv("CORRFLOW_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Server.Bind = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeAuth() {
	if value, ok := os.LookupEnv("CORRFLOW_JWT_SECRET"); ok && strings.TrimSpace(value) != "" {
		c.Auth.JWTSecret = strings.TrimSpace(value)
	}
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.EmptyChain = strings.ToLower(strings.TrimSpace(c.Workflow.EmptyChain))
	if c.Workflow.EmptyChain == "" {
		c.Workflow.EmptyChain = defaultEmptyChain
	}
	labels := make([]string, 0, len(c.Workflow.RejectionLabels))
	seen := make(map[string]struct{}, len(c.Workflow.RejectionLabels))
	for _, label := range c.Workflow.RejectionLabels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		labels = append(labels, trimmed)
	}
	if len(labels) == 0 {
		labels = DefaultRejectionLabels()
	}
	c.Workflow.RejectionLabels = labels
	if strings.TrimSpace(c.Workflow.DefaultType) == "" {
		c.Workflow.DefaultType = defaultCorrType
	}
	c.Workflow.DefaultPriority = strings.ToLower(strings.TrimSpace(c.Workflow.DefaultPriority))
	if c.Workflow.DefaultPriority == "" {
		c.Workflow.DefaultPriority = defaultPriority
	}
	if strings.TrimSpace(c.Workflow.DivisionStage) == "" {
		c.Workflow.DivisionStage = defaultDivisionStage
	}
	if strings.TrimSpace(c.Workflow.DepartmentStage) == "" {
		c.Workflow.DepartmentStage = defaultDepartmentStage
	}
	if strings.TrimSpace(c.Workflow.FinalStage) == "" {
		c.Workflow.FinalStage = defaultFinalStage
	}
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("CORRFLOW_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(value)
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("CORRFLOW_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
