// Package refnum parses and formats correspondence reference numbers of the
// form "<sequence>/<year>".
package refnum

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders a reference number.
func Format(seq, year int) string {
	return fmt.Sprintf("%d/%d", seq, year)
}

// Parse splits a "<sequence>/<year>" reference. ok is false when value does
// not have that shape; such references are still valid as manual input but
// do not take part in numbering.
func Parse(value string) (seq, year int, ok bool) {
	head, tail, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return 0, 0, false
	}
	seq, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || seq <= 0 {
		return 0, 0, false
	}
	year, err = strconv.Atoi(strings.TrimSpace(tail))
	if err != nil || year < 1000 || year > 9999 {
		return 0, 0, false
	}
	return seq, year, true
}

// Next returns the reference that follows last within year. A last reference
// from another year, or one that does not parse, starts the year at 1.
func Next(last string, year int) string {
	seq, lastYear, ok := Parse(last)
	if !ok || lastYear != year {
		return Format(1, year)
	}
	return Format(seq+1, year)
}
