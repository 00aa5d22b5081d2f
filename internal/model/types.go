// Package model defines the canonical data types used throughout athmon.
// These types are the single source of truth for input datasets, the
// columnar daily frame, the prepared result object, and the result envelope
// that every command returns.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// ─── Dataset ──────────────────────────────────────────────────────────────────

// ColumnType identifies the storage of a Dataset column.
type ColumnType string

const (
	ColumnNumeric ColumnType = "numeric"
	ColumnDate    ColumnType = "date"
	ColumnString  ColumnType = "string"
)

// Column is a single named, typed column of a Dataset.
// Exactly one of Num, Dates, Str is populated, matching Type.
// Missing cells are NaN (numeric), the zero time (date) or "" (string).
type Column struct {
	Name  string
	Type  ColumnType
	Num   []float64
	Dates []time.Time
	Str   []string
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Type {
	case ColumnNumeric:
		return len(c.Num)
	case ColumnDate:
		return len(c.Dates)
	default:
		return len(c.Str)
	}
}

// IsMissing reports whether cell i holds no value.
func (c *Column) IsMissing(i int) bool {
	switch c.Type {
	case ColumnNumeric:
		return math.IsNaN(c.Num[i])
	case ColumnDate:
		return c.Dates[i].IsZero()
	default:
		return c.Str[i] == ""
	}
}

// Text returns cell i formatted as a string ("" when missing).
func (c *Column) Text(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	switch c.Type {
	case ColumnNumeric:
		return strconv.FormatFloat(c.Num[i], 'f', -1, 64)
	case ColumnDate:
		return c.Dates[i].Format("2006-01-02")
	default:
		return c.Str[i]
	}
}

// Dataset is a column-oriented input table.
type Dataset struct {
	Columns []*Column
}

// Column returns the column with the given name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Len returns the number of rows (the length of the first column).
func (d *Dataset) Len() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// ─── Records ──────────────────────────────────────────────────────────────────

// Record is one raw (athlete, day, variable, value) entry.
// Day is a day ordinal (see DayOrdinal); Value is NaN when the raw cell is NA.
// Level is set only for records produced by nominal expansion.
type Record struct {
	Athlete  string
	Day      int64
	Variable string
	Level    string
	Value    float64
}

// DayOrdinal converts a calendar date to days since 1970-01-01 (UTC).
func DayOrdinal(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DayTime converts a day ordinal back to UTC midnight.
func DayTime(day int64) time.Time {
	return time.Unix(day*86400, 0).UTC()
}

// ─── Prepared ─────────────────────────────────────────────────────────────────

// Type distinguishes numeric value columns from nominal (categorical) ones.
type Type string

const (
	TypeNumeric Type = "numeric"
	TypeNominal Type = "nominal"
)

// DateKind records whether Frame.Day holds calendar ordinals or plain integers.
type DateKind string

const (
	DateNumeric  DateKind = "numeric"
	DateCalendar DateKind = "date"
)

// FormatDay renders a day ordinal according to kind.
func FormatDay(kind DateKind, day int64) string {
	if kind == DateCalendar {
		return DayTime(day).Format("2006-01-02")
	}
	return strconv.FormatInt(day, 10)
}

// Settings echoes the configuration a Prepared object was built with.
// Pluggable functions are echoed by the column names they produced.
type Settings struct {
	Acute           int      `json:"acute"`
	Chronic         int      `json:"chronic"`
	RollingFill     float64  `json:"rolling_fill"`
	NASession       float64  `json:"na_session"`
	NADay           float64  `json:"na_day"`
	UseCounts       bool     `json:"use_counts"`
	RollingColumns  []string `json:"rolling_columns"`
	PosthocColumns  []string `json:"posthoc_columns,omitempty"`
	GroupEstimators []string `json:"group_estimators"`
	Concurrency     int      `json:"concurrency"`
}

// MarshalJSON writes NaN settings as null, which encoding/json cannot do itself.
func (s Settings) MarshalJSON() ([]byte, error) {
	type alias Settings
	return json.Marshal(struct {
		alias
		RollingFill *float64 `json:"rolling_fill"`
		NASession   *float64 `json:"na_session"`
		NADay       *float64 `json:"na_day"`
	}{
		alias:       alias(s),
		RollingFill: NullFloat(s.RollingFill),
		NASession:   NullFloat(s.NASession),
		NADay:       NullFloat(s.NADay),
	})
}

// NullFloat returns nil for NaN, otherwise a pointer to v.
func NullFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Proportion is the share of one level within a nominal variable for an athlete.
type Proportion struct {
	Athlete    string  `json:"athlete"`
	Variable   string  `json:"variable"`
	Level      string  `json:"level"`
	LevelSum   float64 `json:"level_sum"`
	Total      float64 `json:"total"`
	Proportion float64 `json:"proportion"`
}

// GroupRow is the cross-athlete summary of one column on one day.
// Values align with GroupSummary.Names.
type GroupRow struct {
	Day      int64
	Variable string
	Level    string
	Column   string
	Values   []float64
}

// GroupSummary holds every GroupRow together with the output names of the
// group-summary estimator.
type GroupSummary struct {
	Names []string
	Rows  []GroupRow
}

// Prepared is the immutable product of a preparation run. Summary, plot and
// render code only read from it.
type Prepared struct {
	ID          string
	Type        Type
	DateKind    DateKind
	Frame       *Frame
	Settings    Settings
	Levels      []string
	Proportions []Proportion
	Groups      *GroupSummary
}

// FormatDay renders a frame day for display.
func (p *Prepared) FormatDay(day int64) string {
	return FormatDay(p.DateKind, day)
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindPrepared   = "prepared"
	KindSummary    = "summary"
	KindGroups     = "group_summary"
	KindProfile    = "profile"
	KindEstimators = "estimators"
	KindTable      = "table"
)

// Table is a generic header + rows payload for KindTable results.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}
