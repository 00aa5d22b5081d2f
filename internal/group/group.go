// Package group summarizes each day of a prepared Frame across athletes.
package group

import (
	"fmt"
	"sort"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/model"
)

// ValueColumn is the column name used for the daily value in group rows.
const ValueColumn = "value"

type key struct {
	variable int32
	level    int32
	day      int64
}

// Summarize applies fn to the cross-athlete values of every (day, variable,
// level) group, for the daily value and for every named column of f. Rows
// are ordered by variable, level, day, then column in frame order. A nil fn
// uses estimator.MedianIQR.
func Summarize(f *model.Frame, fn estimator.Func) (*model.GroupSummary, error) {
	if fn == nil {
		fn = estimator.MedianIQR
	}
	index := make(map[key]int)
	var keys []key
	var members [][]int
	for i := 0; i < f.Len(); i++ {
		k := key{variable: f.Variable[i], day: f.Day[i]}
		if f.Level != nil {
			k.level = f.Level[i]
		}
		g, ok := index[k]
		if !ok {
			g = len(keys)
			index[k] = g
			keys = append(keys, k)
			members = append(members, nil)
		}
		members[g] = append(members[g], i)
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka.variable != kb.variable {
			return ka.variable < kb.variable
		}
		if ka.level != kb.level {
			return ka.level < kb.level
		}
		return ka.day < kb.day
	})

	columns := append([]string{ValueColumn}, f.Names...)
	data := append([][]float64{f.Value}, f.Cols...)

	// Output names come from the first group evaluated and later groups
	// must match them.
	var names []string
	out := &model.GroupSummary{
		Rows: make([]model.GroupRow, 0, len(keys)*len(columns)),
	}
	x := make([]float64, 0, len(f.Athletes))
	for pos, g := range order {
		first := members[g][0]
		for c, col := range data {
			x = x[:0]
			for _, row := range members[g] {
				x = append(x, col[row])
			}
			est, err := estimator.Eval(fn, x)
			if err == nil {
				if names == nil {
					if err = estimator.ValidateNames(est.Names()); err == nil {
						names = est.Names()
					}
				} else {
					err = estimator.CheckNames(est, names)
				}
			}
			if err != nil {
				return nil, &model.EstimatorError{
					Stage:    "group",
					Variable: f.VariableAt(first),
					Level:    f.LevelAt(first),
					Column:   columns[c],
					Row:      pos,
					Err:      fmt.Errorf("day %d: %w", keys[g].day, err),
				}
			}
			vals := make([]float64, len(est))
			for j, e := range est {
				vals[j] = e.Value
			}
			out.Rows = append(out.Rows, model.GroupRow{
				Day:      keys[g].day,
				Variable: f.VariableAt(first),
				Level:    f.LevelAt(first),
				Column:   columns[c],
				Values:   vals,
			})
		}
	}
	if names == nil {
		var err error
		if names, err = estimator.NAWindowNames(fn, len(f.Athletes)); err != nil {
			return nil, &model.EstimatorError{Stage: "group", Row: -1, Err: err}
		}
	}
	out.Names = names
	return out, nil
}

// Series returns the values of output name for one (variable, level, column)
// keyed by day, for use as a plot reference line.
func Series(gs *model.GroupSummary, variable, level, column, name string) map[int64]float64 {
	idx := -1
	for i, n := range gs.Names {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make(map[int64]float64)
	for _, r := range gs.Rows {
		if r.Variable == variable && r.Level == level && r.Column == column {
			out[r.Day] = r.Values[idx]
		}
	}
	return out
}
