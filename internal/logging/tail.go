package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Entry is one decoded line of the daemon's JSON log.
type Entry struct {
	Time             string
	Level            string
	Message          string
	Component        string
	CorrespondenceID int64
	RequestID        string
	Raw              string
}

// Filter selects log entries. Zero values match everything.
type Filter struct {
	MinLevel         string
	Component        string
	CorrespondenceID int64
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.MinLevel != "" && parseLevel(e.Level) < parseLevel(f.MinLevel) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(f.Component, e.Component) {
		return false
	}
	if f.CorrespondenceID > 0 && f.CorrespondenceID != e.CorrespondenceID {
		return false
	}
	return true
}

// ParseEntry decodes a JSON log line. Lines that are not JSON objects are
// returned as info-level messages carrying the raw text.
func ParseEntry(line string) Entry {
	entry := Entry{Raw: line, Level: "info", Message: line}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return entry
	}
	entry.Time, _ = record["ts"].(string)
	if level, ok := record["level"].(string); ok {
		entry.Level = strings.ToLower(level)
	}
	if msg, ok := record["msg"].(string); ok {
		entry.Message = msg
	}
	entry.Component, _ = record[FieldComponent].(string)
	entry.RequestID, _ = record[FieldRequestID].(string)
	if id, ok := record[FieldCorrespondenceID].(float64); ok {
		entry.CorrespondenceID = int64(id)
	}
	return entry
}

// TailResult carries matching entries and the byte offset to resume from.
type TailResult struct {
	Entries []Entry
	Offset  int64
}

// Tail returns the last limit entries of path that match filter. A missing
// file yields an empty result.
func Tail(path string, limit int, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: offset}, nil
	}

	ring := make([]Entry, limit)
	count, idx := 0, 0
	offset, err := scanEntries(file, filter, func(e Entry) {
		ring[idx] = e
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	entries := make([]Entry, count)
	if count == limit {
		for i := 0; i < count; i++ {
			entries[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	return TailResult{Entries: entries, Offset: offset}, nil
}

// Follow polls path from offset and hands each new matching entry to fn
// until ctx is done. A truncated file is read again from the start.
func Follow(ctx context.Context, path string, offset int64, filter Filter, interval time.Duration, fn func(Entry)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, fn)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, fn func(Entry)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	next, err := scanEntries(file, filter, fn)
	if err != nil {
		return offset, err
	}
	return next, nil
}

// scanEntries reads complete lines from the current position and returns the
// offset just past the last newline, so a half-written line is read again on
// the next poll.
func scanEntries(file *os.File, filter Filter, fn func(Entry)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if text == "" {
			continue
		}
		if entry := ParseEntry(text); filter.Match(entry) {
			fn(entry)
		}
	}
}
