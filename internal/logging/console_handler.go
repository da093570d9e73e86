package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

// consoleHandler prints a header line per record and then one indented
// "- key: value" line per field. The component and correspondence id are
// shown in the header instead of as fields.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string  // dotted group path for attrs added after WithGroup
	bound     []field // attrs from WithAttrs, already flattened
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	fields := append([]field(nil), h.bound...)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendFlat(fields, h.prefix, a)
		return true
	})
	fields = mergeByKey(fields)

	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}
	var sb strings.Builder
	sb.WriteString(at.In(time.Local).Format(consoleTimestampLayout))
	sb.WriteString(" " + levelLabel(record.Level))

	rest := fields[:0]
	var corrID string
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			sb.WriteString(" [" + renderValue(f.value, false) + "]")
		case FieldCorrespondenceID:
			corrID = renderValue(f.value, false)
		default:
			rest = append(rest, f)
		}
	}
	if corrID != "" {
		sb.WriteString(" Correspondence #" + corrID)
	}

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	sb.WriteString(" – " + msg)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(&sb, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	sb.WriteByte('\n')
	for _, f := range rest {
		fmt.Fprintf(&sb, "    - %s: %s\n", f.key, renderValue(f.value, true))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = append([]field(nil), h.bound...)
	for _, a := range attrs {
		next.bound = appendFlat(next.bound, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}

// appendFlat adds a to dst, expanding groups into dotted keys.
func appendFlat(dst []field, prefix string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return append(dst, field{key: joinKey(prefix, a.Key), value: v})
	}
	inner := prefix
	if a.Key != "" {
		inner = joinKey(prefix, a.Key)
	}
	for _, member := range v.Group() {
		dst = appendFlat(dst, inner, member)
	}
	return dst
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// mergeByKey drops repeated keys, keeping the first position and the last value.
func mergeByKey(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, seen := index[f.key]; seen {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}
