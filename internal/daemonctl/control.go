package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"corrflow/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions are forwarded to the spawned `corrflow serve` as flags.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

func (o LaunchOptions) args() []string {
	args := []string{"serve"}
	for _, flag := range [][2]string{
		{"--socket", o.SocketPath},
		{"--config", o.ConfigPath},
		{"--log-level", o.LogLevel},
	} {
		if value := strings.TrimSpace(flag[1]); value != "" {
			args = append(args, flag[0], value)
		}
	}
	return args
}

// StartState describes what EnsureStarted did.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult reports the daemon that answered after EnsureStarted.
type StartResult struct {
	State StartState
	PID   int
	Bind  string
}

// Launch spawns `<executable> serve` in its own session and does not wait for it.
func Launch(executable string, opts LaunchOptions) error {
	if strings.TrimSpace(executable) == "" {
		return errors.New("launch daemon: no executable path")
	}
	cmd := exec.Command(executable, opts.args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

// poll calls check every pollInterval until it reports done, returns an
// error wrapped with what, or timeout elapses.
func poll(timeout time.Duration, what string, check func() (done bool, err error)) error {
	deadline := time.Now().Add(timeout)
	var last error
	for {
		done, err := check()
		if done {
			return nil
		}
		last = err
		if !time.Now().Add(pollInterval).Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if last == nil {
		last = fmt.Errorf("timed out after %s", timeout)
	}
	return fmt.Errorf("%s: %w", what, last)
}

// WaitForClient dials socketPath until the daemon accepts or timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := poll(timeout, "daemon did not come up", func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		client = c
		return err == nil, err
	})
	return client, err
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executable string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	result := StartResult{State: StartStateAlreadyRunning}
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executable, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = WaitForClient(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		result.State = StartStateStarted
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("daemon status: %w", err)
	}
	result.PID, result.Bind = status.Status.PID, status.Status.Bind
	return result, nil
}

// Stop asks the daemon to shut down and waits up to timeout for it to go
// away. It reports false when no daemon was listening.
func Stop(socketPath string, timeout time.Duration) (bool, error) {
	client, err := ipc.Dial(socketPath)
	if isUnavailable(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = client.Stop()
	_ = client.Close()
	if err != nil {
		return true, fmt.Errorf("request stop: %w", err)
	}
	return true, WaitForShutdown(socketPath, timeout)
}

// WaitForShutdown returns once nothing listens on socketPath or the daemon
// reports it is no longer running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	return poll(timeout, "daemon did not stop", func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if isUnavailable(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		defer client.Close()
		status, err := client.Status()
		if err != nil {
			return false, err
		}
		if status.Status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
}

// isUnavailable reports whether a dial error means nothing is listening.
func isUnavailable(err error) bool {
	return err != nil && (errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED))
}
