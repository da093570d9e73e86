package daemonrun

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"corrflow/internal/logging"
)

func TestRotateLogMovesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, logging.DaemonLogName)
	if err := os.WriteFile(current, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	target := rotateLog(dir)
	if target == "" || !strings.HasPrefix(filepath.Base(target), "corrflowd-") {
		t.Fatalf("unexpected rotation target %q", target)
	}
	if _, err := os.Stat(current); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be moved, stat err=%v", current, err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "previous run\n" {
		t.Fatalf("rotated content mismatch: %q %v", data, err)
	}
}

func TestRotateLogSkipsEmptyOrMissing(t *testing.T) {
	dir := t.TempDir()
	if got := rotateLog(dir); got != "" {
		t.Fatalf("missing log rotated to %q", got)
	}
	if err := os.WriteFile(filepath.Join(dir, logging.DaemonLogName), nil, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if got := rotateLog(dir); got != "" {
		t.Fatalf("empty log rotated to %q", got)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrflowd.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Fatal("pid file is empty")
	}
}
