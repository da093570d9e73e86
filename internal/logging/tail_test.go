package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"corrflow/internal/logging"
)

const sampleLog = `{"ts":"2026-03-14T09:30:00Z","level":"info","msg":"corrflow daemon started","component":"daemon"}
{"ts":"2026-03-14T09:30:01Z","level":"debug","msg":"request","component":"api","request_id":"r1"}
{"ts":"2026-03-14T09:30:02Z","level":"info","msg":"stage signed","component":"workflow","correspondence_id":7}
{"ts":"2026-03-14T09:30:03Z","level":"warn","msg":"notification dropped","component":"effects","correspondence_id":7}
plain text line
`

func writeLog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrflowd.log")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailReturnsLastMatchingEntries(t *testing.T) {
	path := writeLog(t, sampleLog)

	result, err := logging.Tail(path, 2, logging.Filter{})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Message != "notification dropped" || result.Entries[1].Raw != "plain text line" {
		t.Fatalf("unexpected entries %+v", result.Entries)
	}
	if result.Offset != int64(len(sampleLog)) {
		t.Fatalf("offset = %d, want %d", result.Offset, len(sampleLog))
	}

	result, err = logging.Tail(path, 10, logging.Filter{CorrespondenceID: 7})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(result.Entries) != 2 || result.Entries[0].Component != "workflow" {
		t.Fatalf("unexpected correspondence entries %+v", result.Entries)
	}

	result, err = logging.Tail(path, 10, logging.Filter{MinLevel: "warn"})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Level != "warn" {
		t.Fatalf("unexpected warn entries %+v", result.Entries)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logging.Tail(filepath.Join(t.TempDir(), "absent.log"), 5, logging.Filter{})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(result.Entries) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestFollowDeliversAppendedEntries(t *testing.T) {
	path := writeLog(t, sampleLog)
	start, err := logging.Tail(path, 0, logging.Filter{})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan logging.Entry, 4)
	done := make(chan error, 1)
	go func() {
		done <- logging.Follow(ctx, path, start.Offset, logging.Filter{Component: "api"}, 10*time.Millisecond, func(e logging.Entry) {
			got <- e
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	lines := []string{
		`{"level":"info","msg":"ignored","component":"workflow"}`,
		`{"level":"info","msg":"GET /api/health","component":"api"}`,
	}
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	f.Close()

	select {
	case e := <-got:
		if e.Message != "GET /api/health" {
			t.Fatalf("unexpected entry %+v", e)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for followed entry")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned %v", err)
	}
}
