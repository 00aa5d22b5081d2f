package model

import (
	"fmt"
	"math"
)

// Frame is the dense daily panel: one row per (athlete, variable[, level], day).
//
// Dimensions are integer-coded against the sorted dictionaries Athletes,
// Variables and Levels. Level is nil for numeric frames. Rows are ordered by
// athlete, variable, level, then day ascending, so every partition occupies
// a contiguous row range.
//
// Named float columns (rolling estimates, posthoc metrics) live in Names/Cols
// with Cols[i] aligned to the rows.
type Frame struct {
	Athletes  []string
	Variables []string
	Levels    []string

	Athlete  []int32
	Variable []int32
	Level    []int32
	Day      []int64

	Value        []float64
	MissingEntry []bool
	MissingDay   []bool

	Names []string
	Cols  [][]float64
}

// Partition is a contiguous row range [Start, End) sharing athlete, variable
// and level.
type Partition struct {
	Start int
	End   int
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Day)
}

// Nominal reports whether rows carry a level dimension.
func (f *Frame) Nominal() bool {
	return f.Level != nil
}

// AthleteAt returns the athlete name of row i.
func (f *Frame) AthleteAt(i int) string {
	return f.Athletes[f.Athlete[i]]
}

// VariableAt returns the variable name of row i.
func (f *Frame) VariableAt(i int) string {
	return f.Variables[f.Variable[i]]
}

// LevelAt returns the level name of row i, or "" for numeric frames.
func (f *Frame) LevelAt(i int) string {
	if f.Level == nil {
		return ""
	}
	return f.Levels[f.Level[i]]
}

// Col returns the named float column.
func (f *Frame) Col(name string) ([]float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Cols[i], true
		}
	}
	return nil, false
}

// AddColumn appends a named float column. The name must be new and vals must
// have one entry per row.
func (f *Frame) AddColumn(name string, vals []float64) error {
	if name == "" {
		return fmt.Errorf("add column: empty name")
	}
	if _, exists := f.Col(name); exists || isKeyColumn(name) {
		return fmt.Errorf("add column: %q already exists", name)
	}
	if len(vals) != f.Len() {
		return fmt.Errorf("add column %q: %d values for %d rows", name, len(vals), f.Len())
	}
	f.Names = append(f.Names, name)
	f.Cols = append(f.Cols, vals)
	return nil
}

// NewColumn allocates a NaN-filled column sized to the frame and appends it.
func (f *Frame) NewColumn(name string) ([]float64, error) {
	vals := make([]float64, f.Len())
	for i := range vals {
		vals[i] = math.NaN()
	}
	if err := f.AddColumn(name, vals); err != nil {
		return nil, err
	}
	return vals, nil
}

func isKeyColumn(name string) bool {
	switch name {
	case "athlete", "date", "variable", "level", "value", "missing_entry", "missing_day":
		return true
	}
	return false
}

// Clone returns a deep copy so callers can modify the copy freely.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Athletes:     append([]string(nil), f.Athletes...),
		Variables:    append([]string(nil), f.Variables...),
		Athlete:      append([]int32(nil), f.Athlete...),
		Variable:     append([]int32(nil), f.Variable...),
		Day:          append([]int64(nil), f.Day...),
		Value:        append([]float64(nil), f.Value...),
		MissingEntry: append([]bool(nil), f.MissingEntry...),
		MissingDay:   append([]bool(nil), f.MissingDay...),
		Names:        append([]string(nil), f.Names...),
		Cols:         make([][]float64, len(f.Cols)),
	}
	if f.Level != nil {
		out.Levels = append([]string(nil), f.Levels...)
		out.Level = append([]int32(nil), f.Level...)
	}
	for i, c := range f.Cols {
		out.Cols[i] = append([]float64(nil), c...)
	}
	return out
}

// SameKeys reports whether g has the same rows as f in the same order,
// compared on athlete, variable, level and day.
func (f *Frame) SameKeys(g *Frame) bool {
	if g == nil || f.Len() != g.Len() || len(g.Athlete) != f.Len() ||
		len(g.Variable) != f.Len() || (f.Level == nil) != (g.Level == nil) {
		return false
	}
	for i := 0; i < f.Len(); i++ {
		if f.Day[i] != g.Day[i] ||
			f.AthleteAt(i) != g.AthleteAt(i) ||
			f.VariableAt(i) != g.VariableAt(i) ||
			f.LevelAt(i) != g.LevelAt(i) {
			return false
		}
	}
	return true
}

// Partitions returns the contiguous row ranges of each
// (athlete, variable, level) combination in row order.
func (f *Frame) Partitions() []Partition {
	var parts []Partition
	start := 0
	for i := 1; i <= f.Len(); i++ {
		if i == f.Len() || f.Athlete[i] != f.Athlete[start] ||
			f.Variable[i] != f.Variable[start] ||
			(f.Level != nil && f.Level[i] != f.Level[start]) {
			if i > start {
				parts = append(parts, Partition{Start: start, End: i})
			}
			start = i
		}
	}
	return parts
}
