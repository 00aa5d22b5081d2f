// Package util provides shared utilities: date and value parsing and error
// collection.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const dateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{dateLayout, "2006/01/02", time.RFC3339, "2006-01-02 15:04:05"}

// ParseDate parses a YYYY-MM-DD string (or a timestamp) into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// ─── Value Parsing ────────────────────────────────────────────────────────────

// IsNA reports whether a raw cell denotes a missing value.
func IsNA(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", ".", "NA", "NAN", "NULL":
		return true
	}
	return false
}

// ParseValue parses a numeric cell. Returns NaN for missing values and
// ok=false when the cell is present but not a number.
// Uses strconv.ParseFloat to avoid locale issues.
func ParseValue(s string) (v float64, ok bool) {
	if IsNA(s) {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error { return m.Errors }

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
