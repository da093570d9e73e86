package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"corrflow/internal/config"
	"corrflow/internal/correspondence"
	"corrflow/internal/directory"
	"corrflow/internal/ipc"
	"corrflow/internal/logging"
	"corrflow/internal/notifications"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

// commandContext carries the persistent flags and the lazily loaded config
// shared by every subcommand.
type commandContext struct {
	socket     string
	configPath string
	asJSON     bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configPath))
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool { return c.asJSON }

// backend bundles the services a local command works against. Side effects
// run inline so audit rows and notifications exist when the command returns.
type backend struct {
	cfg       *config.Config
	store     *store.Store
	directory *directory.Service
	engine    *workflow.Engine
	corr      *correspondence.Service
	inbox     *notifications.Inbox
	logger    *slog.Logger
}

func (c *commandContext) withBackend(fn func(*backend) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	dir := directory.NewService(cfg, st, logger)
	engine := workflow.NewEngine(cfg, st, dir, logger,
		workflow.WithNotifier(notifications.NewService(cfg, st, nil, logger)))
	return fn(&backend{
		cfg:       cfg,
		store:     st,
		directory: dir,
		engine:    engine,
		corr:      correspondence.NewService(cfg, st, dir, engine, logger),
		inbox:     notifications.NewInbox(st, nil),
		logger:    logger,
	})
}

func (c *commandContext) socketPath() string {
	if socket := strings.TrimSpace(c.socket); socket != "" {
		return socket
	}
	if cfg, err := c.ensureConfig(); err == nil && strings.TrimSpace(cfg.Paths.SocketPath) != "" {
		return cfg.Paths.SocketPath
	}
	stateDir, err := config.ExpandPath("~/.local/share/corrflow")
	if err != nil {
		return filepath.Join(os.TempDir(), "corrflow.sock")
	}
	return filepath.Join(stateDir, "corrflow.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("no daemon socket at %s; start one with `corrflow serve` or `corrflow start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("daemon socket %s refused the connection; is the daemon still running?", socket)
	}
	return fmt.Errorf("dial daemon: %w", err)
}

// shouldSkipConfig reports whether cmd or an ancestor opts out of loading
// the config before it runs.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
