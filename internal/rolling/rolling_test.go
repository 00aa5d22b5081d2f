package rolling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/grid"
	"github.com/derickschaefer/athmon/internal/model"
)

var nan = math.NaN()

// frame builds an imputed frame with one partition per athlete, each holding
// the given daily values starting at day 1.
func frame(t *testing.T, series map[string][]float64) *model.Frame {
	t.Helper()
	var records []model.Record
	for a, vals := range series {
		for i, v := range vals {
			records = append(records, model.Record{Athlete: a, Day: int64(i + 1), Variable: "load", Value: v})
		}
	}
	g, err := grid.Build(records, nil)
	require.NoError(t, err)
	require.NoError(t, g.Aggregate(records, nil))
	return g.Frame
}

func col(t *testing.T, f *model.Frame, name string) []float64 {
	t.Helper()
	c, ok := f.Col(name)
	require.True(t, ok, "column %s", name)
	return c
}

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "row %d: want NA, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "row %d", i)
	}
}

func TestRingLast(t *testing.T) {
	r := newRing(3)
	dst := make([]float64, 3)
	r.push(1)
	r.push(2)
	assert.Equal(t, []float64{1, 2}, r.last(2, dst))
	r.push(3)
	r.push(4)
	assert.Equal(t, []float64{2, 3, 4}, r.last(3, dst))
	assert.Equal(t, []float64{4}, r.last(1, dst))
}

func TestRunAcuteMean(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {10, 20, 30}})
	stats, err := Run(context.Background(), f, Options{
		Acute: 2, Chronic: 3, Fill: nan, Estimator: estimator.Mean,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acute.mean", "chronic.mean"}, stats.Columns)
	assert.Equal(t, 1, stats.Partitions)
	// acute: rows 1,2; chronic: row 2
	assert.Equal(t, int64(3), stats.Evaluations)

	assertSeries(t, []float64{nan, 15, 25}, col(t, f, "acute.mean"))
	assertSeries(t, []float64{nan, nan, 20}, col(t, f, "chronic.mean"))
}

func TestRunWarmupFill(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 2, 3, 4}})
	_, err := Run(context.Background(), f, Options{
		Acute: 1, Chronic: 3, Fill: -1, Estimator: estimator.Mean,
	})
	require.NoError(t, err)
	assertSeries(t, []float64{1, 2, 3, 4}, col(t, f, "acute.mean"))
	assertSeries(t, []float64{-1, -1, 2, 3}, col(t, f, "chronic.mean"))
}

func TestRunWindowsIncludeNaN(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {10, nan, 30}})
	_, err := Run(context.Background(), f, Options{
		Acute: 2, Chronic: 3, Fill: nan, Estimator: estimator.Combine(estimator.Mean, estimator.Count),
	})
	require.NoError(t, err)
	assertSeries(t, []float64{nan, 10, 30}, col(t, f, "acute.mean"))
	assertSeries(t, []float64{nan, 1, 1}, col(t, f, "acute.n"))
	assertSeries(t, []float64{nan, nan, 2}, col(t, f, "chronic.n"))
}

func TestRunPartitionsIndependent(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 1, 1}, "B": {100, 200, 300}})
	_, err := Run(context.Background(), f, Options{Acute: 2, Chronic: 2, Fill: nan, Estimator: estimator.Mean})
	require.NoError(t, err)
	// B's first row is warm-up even though A precedes it.
	assertSeries(t, []float64{nan, 1, 1, nan, 150, 250}, col(t, f, "acute.mean"))
}

func TestRunDefaultEstimator(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 2, 3}})
	stats, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 2, Fill: nan})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"acute.mean", "acute.sd", "acute.cv",
		"chronic.mean", "chronic.sd", "chronic.cv",
	}, stats.Columns)
}

func TestRunInvalidWindows(t *testing.T) {
	for _, o := range []Options{{Acute: 0, Chronic: 3}, {Acute: 4, Chronic: 3}, {Acute: 2, Chronic: -1}} {
		f := frame(t, map[string][]float64{"A": {1}})
		_, err := Run(context.Background(), f, o)
		assert.True(t, errors.Is(err, model.ErrInvalidWindowSize), "%+v", o)
		assert.Empty(t, f.Names, "no columns on invalid windows")
	}
}

func TestRunConcurrencyDeterministic(t *testing.T) {
	series := map[string][]float64{}
	for a := 0; a < 12; a++ {
		vals := make([]float64, 40)
		for d := range vals {
			vals[d] = float64((a*7 + d*3) % 11)
		}
		series[fmt.Sprintf("A%02d", a)] = vals
	}

	base := frame(t, series)
	_, err := Run(context.Background(), base, Options{Acute: 3, Chronic: 9, Fill: nan, Concurrency: 1})
	require.NoError(t, err)

	for _, conc := range []int{2, 4, 16} {
		f := frame(t, series)
		_, err := Run(context.Background(), f, Options{Acute: 3, Chronic: 9, Fill: nan, Concurrency: conc})
		require.NoError(t, err)
		for i, name := range base.Names {
			assertSeries(t, base.Cols[i], col(t, f, name))
		}
	}
}

func TestRunReportsLowestFailingPartition(t *testing.T) {
	series := map[string][]float64{}
	for a := 0; a < 8; a++ {
		series[fmt.Sprintf("A%d", a)] = []float64{float64(a), float64(a), float64(a)}
	}
	// Athletes A3 and A6 carry values that make the estimator fail.
	failing := func(x []float64) (estimator.Estimates, error) {
		for _, v := range x {
			if v == 3 || v == 6 {
				return nil, fmt.Errorf("bad value %v", v)
			}
		}
		return estimator.Estimates{{Name: "m", Value: 0}}, nil
	}

	for _, conc := range []int{1, 3, 8} {
		f := frame(t, series)
		_, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 2, Fill: nan, Estimator: failing, Concurrency: conc})
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrEstimatorEvaluation))
		var ee *model.EstimatorError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "A3", ee.Athlete, "concurrency %d", conc)
		assert.Equal(t, "load", ee.Variable)
		assert.Equal(t, Acute, ee.Window)
		assert.Equal(t, 9, ee.Row)
	}
}

func TestRunEstimatorPanic(t *testing.T) {
	calls := 0
	panicky := func(x []float64) (estimator.Estimates, error) {
		calls++
		if calls > 2 {
			panic("index out of range")
		}
		return estimator.Estimates{{Name: "m", Value: 1}}, nil
	}
	f := frame(t, map[string][]float64{"A": {1, 2, 3}})
	_, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 1, Fill: nan, Estimator: panicky})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrEstimatorEvaluation))
	assert.Contains(t, err.Error(), "panic")
}

func TestRunInconsistentNames(t *testing.T) {
	calls := 0
	shifty := func(x []float64) (estimator.Estimates, error) {
		calls++
		if calls > 2 {
			return estimator.Estimates{{Name: "other", Value: 1}}, nil
		}
		return estimator.Estimates{{Name: "m", Value: 1}}, nil
	}
	f := frame(t, map[string][]float64{"A": {1, 2}})
	_, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 1, Fill: nan, Estimator: shifty})
	assert.True(t, errors.Is(err, model.ErrEstimatorEvaluation))
}

func TestRunFirstEvaluationFailure(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 2}})
	bad := func(x []float64) (estimator.Estimates, error) { return nil, errors.New("no") }
	_, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 1, Estimator: bad})
	var ee *model.EstimatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "A", ee.Athlete)
	assert.Equal(t, "load", ee.Variable)
	assert.Equal(t, Acute, ee.Window)
	assert.Equal(t, 0, ee.Row)
	assert.Empty(t, f.Names)
}

// rejectNA fails on any missing value in its window.
func rejectNA(x []float64) (estimator.Estimates, error) {
	for _, v := range x {
		if math.IsNaN(v) {
			return nil, errors.New("NA in window")
		}
	}
	return estimator.Mean(x)
}

func TestRunNARejectingEstimatorOnCompleteData(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {10, 20, 30}})
	stats, err := Run(context.Background(), f, Options{Acute: 2, Chronic: 3, Fill: nan, Estimator: rejectNA})
	require.NoError(t, err)
	assert.Equal(t, []string{"acute.mean", "chronic.mean"}, stats.Columns)
	assert.Equal(t, int64(3), stats.Evaluations)
	assertSeries(t, []float64{nan, 15, 25}, col(t, f, "acute.mean"))
	assertSeries(t, []float64{nan, nan, 20}, col(t, f, "chronic.mean"))
}

func TestRunAllWarmupFallsBackToNAWindow(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 2}})
	_, err := Run(context.Background(), f, Options{Acute: 1, Chronic: 5, Fill: -1, Estimator: estimator.Mean})
	require.NoError(t, err)
	assertSeries(t, []float64{-1, -1}, col(t, f, "chronic.mean"))

	f = frame(t, map[string][]float64{"A": {1, 2}})
	_, err = Run(context.Background(), f, Options{Acute: 1, Chronic: 5, Fill: -1, Estimator: rejectNA})
	var ee *model.EstimatorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Chronic, ee.Window)
	assert.Equal(t, -1, ee.Row)
}

func TestRunCancelled(t *testing.T) {
	f := frame(t, map[string][]float64{"A": {1, 2}, "B": {3, 4}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, f, Options{Acute: 1, Chronic: 1, Fill: nan})
	assert.ErrorIs(t, err, context.Canceled)
}
