// Package summary computes descriptive statistics over the recorded days of a
// prepared Frame. All functions are pure; no I/O.
package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/model"
)

// Summary holds descriptive statistics for one athlete/variable/level stream,
// or for a variable/level across all athletes when Athlete is empty.
type Summary struct {
	Athlete       string  `json:"athlete,omitempty"`
	Variable      string  `json:"variable"`
	Level         string  `json:"level,omitempty"`
	Days          int     `json:"days"`            // grid days
	Entries       int     `json:"entries"`         // days with a recorded value
	MissingEntry  int     `json:"missing_entries"` // days with no recorded value
	MissingDay    int     `json:"missing_days"`    // days with no record at all
	MissingPct    float64 `json:"missing_pct"`     // percent of days without a value
	FirstDay      int64   `json:"-"`
	LastDay       int64   `json:"-"`
	First         string  `json:"first"` // first recorded date
	Last          string  `json:"last"`  // last recorded date
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	Min           float64 `json:"min"`
	P25           float64 `json:"p25"`
	Median        float64 `json:"median"`
	P75           float64 `json:"p75"`
	Max           float64 `json:"max"`
	Proportion    float64 `json:"proportion"`
	hasProportion bool
}

// HasProportion reports whether Proportion applies (nominal mode).
func (s Summary) HasProportion() bool { return s.hasProportion }

// Build summarizes every (athlete, variable, level) partition of p in frame
// order. With byVariable set, athletes are pooled and one Summary is returned
// per (variable, level).
func Build(p *model.Prepared, byVariable bool) []Summary {
	f := p.Frame
	parts := f.Partitions()

	props := make(map[[3]string]float64, len(p.Proportions))
	levelSums := make(map[[2]string]float64)
	varTotals := make(map[string]float64)
	for _, pr := range p.Proportions {
		props[[3]string{pr.Athlete, pr.Variable, pr.Level}] = pr.Proportion
		levelSums[[2]string{pr.Variable, pr.Level}] += pr.LevelSum
		varTotals[pr.Variable] += pr.LevelSum
	}
	nominal := p.Type == model.TypeNominal

	if !byVariable {
		out := make([]Summary, 0, len(parts))
		for _, part := range parts {
			s := summarize(p, []model.Partition{part})
			s.Athlete = f.AthleteAt(part.Start)
			if nominal {
				s.hasProportion = true
				s.Proportion = props[[3]string{s.Athlete, s.Variable, s.Level}]
			}
			out = append(out, s)
		}
		return out
	}

	type key struct{ variable, level string }
	groups := make(map[key][]model.Partition)
	var keys []key
	for _, part := range parts {
		k := key{f.VariableAt(part.Start), f.LevelAt(part.Start)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], part)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].variable != keys[j].variable {
			return keys[i].variable < keys[j].variable
		}
		return keys[i].level < keys[j].level
	})

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		s := summarize(p, groups[k])
		if nominal {
			s.hasProportion = true
			s.Proportion = math.NaN()
			if total := varTotals[k.variable]; total != 0 {
				s.Proportion = levelSums[[2]string{k.variable, k.level}] / total
			}
		}
		out = append(out, s)
	}
	return out
}

// summarize computes the statistics over the recorded rows of parts, which
// all share a variable and level.
func summarize(p *model.Prepared, parts []model.Partition) Summary {
	f := p.Frame
	s := Summary{
		Variable:   f.VariableAt(parts[0].Start),
		Level:      f.LevelAt(parts[0].Start),
		Proportion: math.NaN(),
	}

	var vals []float64
	first, last := int64(math.MaxInt64), int64(math.MinInt64)
	for _, part := range parts {
		for i := part.Start; i < part.End; i++ {
			s.Days++
			if f.MissingDay[i] {
				s.MissingDay++
			}
			if f.MissingEntry[i] {
				s.MissingEntry++
				continue
			}
			s.Entries++
			vals = append(vals, f.Value[i])
			if f.Day[i] < first {
				first = f.Day[i]
			}
			if f.Day[i] > last {
				last = f.Day[i]
			}
		}
	}
	if s.Days > 0 {
		s.MissingPct = float64(s.MissingEntry) / float64(s.Days) * 100
	}
	if s.Entries > 0 {
		s.FirstDay, s.LastDay = first, last
		s.First, s.Last = p.FormatDay(first), p.FormatDay(last)
	}

	vals = estimator.DropNaN(vals)
	if len(vals) == 0 {
		s.Mean, s.Std, s.Min, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		s.P25, s.Median, s.P75 = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	sort.Float64s(vals)
	s.Min = vals[0]
	s.Max = vals[len(vals)-1]
	s.Mean = stat.Mean(vals, nil)
	s.Std = math.NaN()
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	s.P25 = estimator.Percentile(vals, 25)
	s.Median = estimator.Percentile(vals, 50)
	s.P75 = estimator.Percentile(vals, 75)
	return s
}
