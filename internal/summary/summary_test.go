package summary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/athmon/internal/model"
)

// twoAthletes holds one load stream per athlete over days 1-4. A has no
// record on day 3, imputed to zero.
func twoAthletes() *model.Prepared {
	return &model.Prepared{
		Type:     model.TypeNumeric,
		DateKind: model.DateNumeric,
		Frame: &model.Frame{
			Athletes:     []string{"A", "B"},
			Variables:    []string{"load"},
			Athlete:      []int32{0, 0, 0, 0, 1, 1, 1, 1},
			Variable:     []int32{0, 0, 0, 0, 0, 0, 0, 0},
			Day:          []int64{1, 2, 3, 4, 1, 2, 3, 4},
			Value:        []float64{10, 20, 0, 40, 1, 2, 3, 4},
			MissingEntry: []bool{false, false, true, false, false, false, false, false},
			MissingDay:   []bool{false, false, true, false, false, false, false, false},
		},
	}
}

func TestBuildPerAthlete(t *testing.T) {
	out := Build(twoAthletes(), false)
	require.Len(t, out, 2)

	a := out[0]
	assert.Equal(t, "A", a.Athlete)
	assert.Equal(t, "load", a.Variable)
	assert.Empty(t, a.Level)
	assert.Equal(t, 4, a.Days)
	assert.Equal(t, 3, a.Entries)
	assert.Equal(t, 1, a.MissingEntry)
	assert.Equal(t, 1, a.MissingDay)
	assert.InDelta(t, 25, a.MissingPct, 1e-9)
	assert.Equal(t, "1", a.First)
	assert.Equal(t, "4", a.Last)

	// the imputed zero is not part of the statistics
	assert.Equal(t, 10.0, a.Min)
	assert.Equal(t, 40.0, a.Max)
	assert.InDelta(t, 70.0/3, a.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(700.0/3), a.Std, 1e-9)
	assert.InDelta(t, 15, a.P25, 1e-9)
	assert.InDelta(t, 20, a.Median, 1e-9)
	assert.InDelta(t, 30, a.P75, 1e-9)
	assert.False(t, a.HasProportion(), "numeric summaries carry no proportion")

	assert.Equal(t, "B", out[1].Athlete)
	assert.InDelta(t, 2.5, out[1].Mean, 1e-9)
}

func TestBuildByVariablePoolsAthletes(t *testing.T) {
	out := Build(twoAthletes(), true)
	require.Len(t, out, 1)

	s := out[0]
	assert.Empty(t, s.Athlete, "pooled summary should have no athlete")
	assert.Equal(t, 8, s.Days)
	assert.Equal(t, 7, s.Entries)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.InDelta(t, 4, s.Median, 1e-9)
}

func TestBuildSingleValue(t *testing.T) {
	p := &model.Prepared{
		Type:     model.TypeNumeric,
		DateKind: model.DateCalendar,
		Frame: &model.Frame{
			Athletes:     []string{"A"},
			Variables:    []string{"load"},
			Athlete:      []int32{0, 0},
			Variable:     []int32{0, 0},
			Day:          []int64{19723, 19724},
			Value:        []float64{5, math.NaN()},
			MissingEntry: []bool{false, false},
			MissingDay:   []bool{false, false},
		},
	}
	s := Build(p, false)[0]
	assert.Equal(t, 5.0, s.Mean)
	assert.True(t, math.IsNaN(s.Std), "std of one value: %v", s.Std)
	assert.Equal(t, "2024-01-01", s.First)
	assert.Equal(t, "2024-01-02", s.Last)
}

func TestBuildAllMissing(t *testing.T) {
	p := twoAthletes()
	for i := range p.Frame.MissingEntry {
		p.Frame.MissingEntry[i] = true
	}
	s := Build(p, false)[0]
	assert.Zero(t, s.Entries)
	assert.Empty(t, s.First)
	for name, v := range map[string]float64{"mean": s.Mean, "median": s.Median, "max": s.Max} {
		assert.True(t, math.IsNaN(v), "%s: %v", name, v)
	}
}

func TestBuildNominalProportions(t *testing.T) {
	p := &model.Prepared{
		Type:     model.TypeNominal,
		DateKind: model.DateNumeric,
		Levels:   []string{"High", "Low"},
		Frame: &model.Frame{
			Athletes:     []string{"A", "B"},
			Variables:    []string{"rpe"},
			Levels:       []string{"High", "Low"},
			Athlete:      []int32{0, 0, 0, 0, 1, 1, 1, 1},
			Variable:     []int32{0, 0, 0, 0, 0, 0, 0, 0},
			Level:        []int32{0, 0, 1, 1, 0, 0, 1, 1},
			Day:          []int64{1, 2, 1, 2, 1, 2, 1, 2},
			Value:        []float64{1, 0, 0, 1, 1, 0, 0, 1},
			MissingEntry: make([]bool, 8),
			MissingDay:   make([]bool, 8),
		},
		Proportions: []model.Proportion{
			{Athlete: "A", Variable: "rpe", Level: "High", LevelSum: 1, Total: 3, Proportion: 1.0 / 3},
			{Athlete: "A", Variable: "rpe", Level: "Low", LevelSum: 2, Total: 3, Proportion: 2.0 / 3},
			{Athlete: "B", Variable: "rpe", Level: "High", LevelSum: 1, Total: 2, Proportion: 0.5},
			{Athlete: "B", Variable: "rpe", Level: "Low", LevelSum: 1, Total: 2, Proportion: 0.5},
		},
	}

	per := Build(p, false)
	require.Len(t, per, 4)
	assert.True(t, per[0].HasProportion())
	assert.InDelta(t, 1.0/3, per[0].Proportion, 1e-9)
	assert.Equal(t, "Low", per[1].Level)
	assert.InDelta(t, 2.0/3, per[1].Proportion, 1e-9)

	pooled := Build(p, true)
	require.Len(t, pooled, 2)
	assert.Equal(t, "High", pooled[0].Level)
	assert.InDelta(t, 0.4, pooled[0].Proportion, 1e-9)
	assert.Equal(t, "Low", pooled[1].Level)
	assert.InDelta(t, 0.6, pooled[1].Proportion, 1e-9)
}
