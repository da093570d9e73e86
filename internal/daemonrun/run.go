package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/config"
	"corrflow/internal/daemon"
	"corrflow/internal/ipc"
	"corrflow/internal/logging"
	"corrflow/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the corrflow daemon and blocks until SIGINT/SIGTERM, an IPC stop
// request, or cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rotated := rotateLog(cfg.Paths.LogDir)
	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	base, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := uuid.NewString()
	logger := base.With(logging.String("session_id", sessionID))
	if rotated != "" {
		logger.Debug("previous daemon log rotated", logging.String("path", rotated))
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "corrflowd-*.log",
		filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName), cfg.Logging.RetentionDays); removed > 0 {
		logger.Info("old daemon logs removed", logging.Int("count", removed))
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "corrflowd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions and free disk space"),
		)
		return err
	}

	d, err := daemon.New(cfg, st, logger, daemon.WithSessionID(sessionID))
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	if socket := strings.TrimSpace(cfg.Paths.SocketPath); socket != "" {
		ipcServer, err := ipc.NewServer(signalCtx, socket, d, cancel, logger)
		if err != nil {
			logging.WarnWithContext(logger, "IPC server unavailable", "ipc_start_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "corrflow status and health cannot reach the daemon"),
				logging.String(logging.FieldErrorHint, "check paths.socket_path"),
			)
		} else {
			defer ipcServer.Close()
			ipcServer.Serve()
		}
	}

	<-signalCtx.Done()
	logger.Info("corrflow daemon shutting down")
	return nil
}

// rotateLog renames a non-empty corrflowd.log left by a previous run so each
// run starts a fresh file. It returns the new name, or "" when nothing moved.
func rotateLog(logDir string) string {
	if strings.TrimSpace(logDir) == "" {
		return ""
	}
	current := filepath.Join(logDir, logging.DaemonLogName)
	info, err := os.Stat(current)
	if err != nil || info.Size() == 0 {
		return ""
	}
	stamp := info.ModTime().UTC().Format("20060102T150405")
	target := filepath.Join(logDir, "corrflowd-"+stamp+".log")
	if err := os.Rename(current, target); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warn: unable to rotate %s: %v\n", current, err)
		}
		return ""
	}
	return target
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("bind", cfg.Server.Bind),
		logging.String("database", cfg.DatabasePath()),
		logging.String("empty_chain", cfg.Workflow.EmptyChain),
		logging.Bool("rate_limit", cfg.RateLimit.Enabled),
		logging.Int("effect_workers", cfg.Effects.Workers),
		logging.Bool("inbox", cfg.Notifications.Inbox),
		logging.Bool("ntfy", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Duration("cache_ttl", cfg.CacheTTL()),
		logging.String("started", time.Now().UTC().Format(time.RFC3339)),
	)
}
