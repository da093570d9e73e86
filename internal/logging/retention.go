package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs deletes files in dir matching pattern (all files when
// pattern is empty) that were last modified more than retentionDays ago.
// active is always kept. It returns how many files were deleted; a
// non-positive retentionDays deletes nothing.
func CleanupOldLogs(logger *slog.Logger, dir, pattern, active string, retentionDays int) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	if pattern == "" {
		pattern = "*"
	}
	candidates, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	activeInfo, _ := os.Stat(active)
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, path := range candidates {
		info, err := os.Stat(path)
		switch {
		case err != nil, info.IsDir(), !info.ModTime().Before(cutoff):
			continue
		case activeInfo != nil && os.SameFile(info, activeInfo):
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of the log directory"),
				String(FieldImpact, "disk usage grows until the file is removed by hand"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("old log removed", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
