package grid

import (
	"fmt"
	"math"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/model"
)

// ─── Day Aggregation ──────────────────────────────────────────────────────────

// Aggregate collapses the records falling on each grid row into one value
// with agg and sets the missing flags:
//
//   - MissingEntry: no non-NaN raw value exists for the exact row key
//   - MissingDay:   no raw record at all exists for (athlete, variable, day)
//
// Rows without any record keep a NaN value; agg is never called for them.
func (g *Grid) Aggregate(records []model.Record, agg estimator.AggregateFunc) error {
	if agg == nil {
		agg = estimator.Sum
	}
	f := g.Frame
	byRow := make(map[int][]float64)
	recorded := make([]bool, len(f.Athletes)*len(f.Variables)*g.Days)

	for _, r := range records {
		row, ok := g.Row(r.Athlete, r.Variable, r.Level, r.Day)
		if !ok {
			return fmt.Errorf("aggregate: record %s/%s/%q day %d is outside the grid",
				r.Athlete, r.Variable, r.Level, r.Day)
		}
		byRow[row] = append(byRow[row], r.Value)
		recorded[g.dayKey(row)] = true
	}

	for i := 0; i < f.Len(); i++ {
		f.MissingDay[i] = !recorded[g.dayKey(i)]
		vals, ok := byRow[i]
		if !ok {
			continue
		}
		f.MissingEntry[i] = !hasValue(vals)
		f.Value[i] = agg(vals)
	}
	return nil
}

func hasValue(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// ─── Missing-Value Policy ─────────────────────────────────────────────────────

// Impute applies the two substitutions in order: NaN values on rows flagged
// MissingEntry become naSession, then every row flagged MissingDay becomes
// naDay. A NaN replacement leaves the value as NA.
func Impute(f *model.Frame, naSession, naDay float64) {
	for i := 0; i < f.Len(); i++ {
		if f.MissingEntry[i] && math.IsNaN(f.Value[i]) {
			f.Value[i] = naSession
		}
		if f.MissingDay[i] {
			f.Value[i] = naDay
		}
	}
}
