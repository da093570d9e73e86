package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// renderValue turns an attribute value into console text. When quote is set,
// empty strings and strings holding quotes or control characters are quoted
// so key=value pairs stay parseable.
func renderValue(v slog.Value, quote bool) string {
	v = v.Resolve()
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimestampLayout)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		// String, Bool, Int64 and Uint64 already render plainly.
		s = v.String()
	}
	if quote && (s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' })) {
		return strconv.Quote(s)
	}
	return s
}
