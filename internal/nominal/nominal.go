// Package nominal expresses categorical value columns as per-level numeric
// streams so the numeric pipeline can process them unchanged, and derives the
// share of each level afterwards.
package nominal

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/athmon/internal/model"
)

// Levels returns the sorted distinct non-empty categories held in
// Record.Level. A positive limit rejects inputs with more levels than that,
// which usually means a free-text column was selected as the value.
func Levels(records []model.Record, limit int) ([]string, error) {
	set := make(map[string]bool)
	for _, r := range records {
		if r.Level != "" {
			set[r.Level] = true
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("nominal: value column holds no categories")
	}
	if limit > 0 && len(set) > limit {
		return nil, fmt.Errorf("nominal: %d distinct levels exceeds the limit of %d", len(set), limit)
	}
	levels := make([]string, 0, len(set))
	for l := range set {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels, nil
}

// Expand turns every categorical record into one record per level, valued 1
// when the record holds that level and 0 otherwise. A record with no category
// expands to NaN for every level.
func Expand(records []model.Record, levels []string) []model.Record {
	out := make([]model.Record, 0, len(records)*len(levels))
	for _, r := range records {
		for _, l := range levels {
			v := 0.0
			switch {
			case r.Level == "":
				v = math.NaN()
			case r.Level == l:
				v = 1
			}
			out = append(out, model.Record{
				Athlete:  r.Athlete,
				Day:      r.Day,
				Variable: r.Variable,
				Level:    l,
				Value:    v,
			})
		}
	}
	return out
}

// Indicator converts aggregated per-day counts to presence flags: any
// positive value becomes 1. NaN and non-positive values are kept.
func Indicator(f *model.Frame) {
	for i, v := range f.Value {
		if v > 0 {
			f.Value[i] = 1
		}
	}
}

// Proportions computes level_sum / variable_total per (athlete, variable,
// level) over rows holding a recorded value. It must run before imputation
// so imputed days do not count.
func Proportions(f *model.Frame) []model.Proportion {
	if !f.Nominal() {
		return nil
	}
	parts := f.Partitions()
	sums := make([]float64, len(parts))
	totals := make(map[[2]int32]float64)
	for p, part := range parts {
		for i := part.Start; i < part.End; i++ {
			if f.MissingEntry[i] || math.IsNaN(f.Value[i]) {
				continue
			}
			sums[p] += f.Value[i]
		}
		totals[[2]int32{f.Athlete[part.Start], f.Variable[part.Start]}] += sums[p]
	}

	out := make([]model.Proportion, len(parts))
	for p, part := range parts {
		total := totals[[2]int32{f.Athlete[part.Start], f.Variable[part.Start]}]
		prop := math.NaN()
		if total != 0 {
			prop = sums[p] / total
		}
		out[p] = model.Proportion{
			Athlete:    f.AthleteAt(part.Start),
			Variable:   f.VariableAt(part.Start),
			Level:      f.LevelAt(part.Start),
			LevelSum:   sums[p],
			Total:      total,
			Proportion: prop,
		}
	}
	return out
}
