package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateDirectory(); err != nil {
		return err
	}
	if err := c.validateEffects(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if !strings.Contains(c.Server.Bind, ":") {
		return fmt.Errorf("server.bind must be host:port, got %q", c.Server.Bind)
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		return errors.New("server.read_timeout_seconds must be positive")
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		return errors.New("server.write_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.AdminLevel <= 0 {
		return errors.New("auth.admin_level must be positive")
	}
	if c.Auth.ManagerLevel < c.Auth.AdminLevel {
		return errors.New("auth.manager_level must not be lower than auth.admin_level")
	}
	return nil
}

// RequireSecret reports a configuration error when no token secret is set.
// Only the HTTP server needs it, so offline CLI commands skip this check.
func (c *Config) RequireSecret() error {
	if strings.TrimSpace(c.Auth.JWTSecret) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("auth.jwt_secret is required. Set CORRFLOW_JWT_SECRET or edit %s (create with 'corrflow config init')", defaultPath)
}

func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be positive")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return errors.New("rate_limit.window_seconds must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit.burst must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	switch c.Workflow.EmptyChain {
	case EmptyChainReject, EmptyChainApprove:
	default:
		return fmt.Errorf("workflow.empty_chain must be %q or %q, got %q", EmptyChainReject, EmptyChainApprove, c.Workflow.EmptyChain)
	}
	switch c.Workflow.DefaultPriority {
	case "normal", "important", "urgent":
	default:
		return fmt.Errorf("workflow.default_priority must be normal, important, or urgent, got %q", c.Workflow.DefaultPriority)
	}
	return nil
}

func (c *Config) validateDirectory() error {
	if c.Directory.CacheTTLSeconds < 0 {
		return errors.New("directory.cache_ttl_seconds must not be negative")
	}
	if c.Directory.CacheSize <= 0 {
		return errors.New("directory.cache_size must be positive")
	}
	return nil
}

func (c *Config) validateEffects() error {
	if c.Effects.Workers <= 0 {
		return errors.New("effects.workers must be positive")
	}
	if c.Effects.QueueSize <= 0 {
		return errors.New("effects.queue_size must be positive")
	}
	if c.Effects.TimeoutSeconds <= 0 {
		return errors.New("effects.timeout_seconds must be positive")
	}
	if c.Effects.ShutdownTimeoutSeconds <= 0 {
		return errors.New("effects.shutdown_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
