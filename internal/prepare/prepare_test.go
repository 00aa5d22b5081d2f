package prepare

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/grid"
	"github.com/derickschaefer/athmon/internal/metrics"
	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/posthoc"
)

var nan = math.NaN()

var cols = grid.Columns{Athlete: "athlete", Date: "date", Variable: "variable", Value: "value"}

type row struct {
	athlete  string
	day      float64
	variable string
	value    float64
}

func numeric(rows ...row) *model.Dataset {
	ds := &model.Dataset{Columns: []*model.Column{
		{Name: "athlete", Type: model.ColumnString},
		{Name: "date", Type: model.ColumnNumeric},
		{Name: "variable", Type: model.ColumnString},
		{Name: "value", Type: model.ColumnNumeric},
	}}
	for _, r := range rows {
		ds.Columns[0].Str = append(ds.Columns[0].Str, r.athlete)
		ds.Columns[1].Num = append(ds.Columns[1].Num, r.day)
		ds.Columns[2].Str = append(ds.Columns[2].Str, r.variable)
		ds.Columns[3].Num = append(ds.Columns[3].Num, r.value)
	}
	return ds
}

func nominalDataset(athlete string, levels ...string) *model.Dataset {
	ds := &model.Dataset{Columns: []*model.Column{
		{Name: "athlete", Type: model.ColumnString},
		{Name: "date", Type: model.ColumnNumeric},
		{Name: "variable", Type: model.ColumnString},
		{Name: "value", Type: model.ColumnString},
	}}
	for i, l := range levels {
		ds.Columns[0].Str = append(ds.Columns[0].Str, athlete)
		ds.Columns[1].Num = append(ds.Columns[1].Num, float64(i+1))
		ds.Columns[2].Str = append(ds.Columns[2].Str, "rpe")
		ds.Columns[3].Str = append(ds.Columns[3].Str, l)
	}
	return ds
}

func column(t *testing.T, p *model.Prepared, name string) []float64 {
	t.Helper()
	c, ok := p.Frame.Col(name)
	require.True(t, ok, "column %s", name)
	return c
}

func TestPrepareAcuteMean(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 2, 3
	opts.RollingEstimators = estimator.Mean

	p, err := Prepare(context.Background(), numeric(
		row{"A", 1, "load", 10}, row{"A", 2, "load", 20}, row{"A", 3, "load", 30},
	), cols, opts)
	require.NoError(t, err)

	assert.Equal(t, model.TypeNumeric, p.Type)
	assert.NotEmpty(t, p.ID)
	acute := column(t, p, "acute.mean")
	assert.True(t, math.IsNaN(acute[0]))
	assert.InDelta(t, 15, acute[1], 1e-12)
	assert.InDelta(t, 25, acute[2], 1e-12)
	assert.Equal(t, []string{"acute.mean", "chronic.mean"}, p.Settings.RollingColumns)
	assert.Equal(t, []string{"median", "lower", "upper"}, p.Settings.GroupEstimators)
}

func TestPrepareMissingDayImputedZero(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 1, 3
	opts.NADay = 0
	opts.RollingEstimators = estimator.Mean

	p, err := Prepare(context.Background(), numeric(
		row{"A", 1, "load", 10}, row{"A", 3, "load", 30},
	), cols, opts)
	require.NoError(t, err)
	require.Equal(t, 3, p.Frame.Len())
	assert.Equal(t, []bool{false, true, false}, p.Frame.MissingDay)
	assert.Equal(t, 0.0, p.Frame.Value[1])
	assert.InDelta(t, 40.0/3, column(t, p, "chronic.mean")[2], 1e-9)
}

func TestPrepareNominalProportions(t *testing.T) {
	levels := []string{"Low", "Low", "Low", "Low", "Low", "Low", "High", "High", "High", "High"}
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 2, 4

	p, err := Prepare(context.Background(), nominalDataset("A", levels...), cols, opts)
	require.NoError(t, err)
	assert.Equal(t, model.TypeNominal, p.Type)
	assert.Equal(t, []string{"High", "Low"}, p.Levels)
	assert.Equal(t, 20, p.Frame.Len())

	byLevel := map[string]float64{}
	for _, pr := range p.Proportions {
		byLevel[pr.Level] = pr.Proportion
	}
	assert.InDelta(t, 0.6, byLevel["Low"], 1e-12)
	assert.InDelta(t, 0.4, byLevel["High"], 1e-12)
}

func TestPrepareMaxLevels(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 1, 1
	opts.MaxLevels = 2
	_, err := Prepare(context.Background(), nominalDataset("A", "a", "b", "c"), cols, opts)
	assert.True(t, errors.Is(err, model.ErrInvalidColumnReference))
}

func TestPreparePosthocShapeError(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 1, 2
	opts.Posthoc = func(f *model.Frame) (*model.Frame, error) {
		f.Day = f.Day[1:]
		return f, nil
	}
	p, err := Prepare(context.Background(), numeric(row{"A", 1, "load", 1}, row{"A", 2, "load", 2}), cols, opts)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, model.ErrPosthocShape))
}

func TestPreparePosthocRatios(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 1, 2
	opts.Posthoc = posthoc.LoadRatios("mean")
	p, err := Prepare(context.Background(), numeric(row{"A", 1, "load", 10}, row{"A", 2, "load", 30}), cols, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACD", "ACR", "ES"}, p.Settings.PosthocColumns)
	assert.InDelta(t, 1.5, column(t, p, "ACR")[1], 1e-12)

	// group summaries cover posthoc columns too
	found := false
	for _, r := range p.Groups.Rows {
		found = found || r.Column == "ACR"
	}
	assert.True(t, found)
}

func TestPrepareInvalidWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 10, 5
	_, err := Prepare(context.Background(), numeric(row{"A", 1, "load", 1}), cols, opts)
	assert.True(t, errors.Is(err, model.ErrInvalidWindowSize))
}

func TestPrepareColumnErrors(t *testing.T) {
	opts := DefaultOptions()
	bad := cols
	bad.Value = "rpe"
	_, err := Prepare(context.Background(), numeric(row{"A", 1, "load", 1}), bad, opts)
	assert.True(t, errors.Is(err, model.ErrInvalidColumnReference))
}

func TestPrepareOversizedDateSpan(t *testing.T) {
	ds := numeric(row{"A", -4e18, "load", 1}, row{"A", 4e18, "load", 2})
	_, err := Prepare(context.Background(), ds, cols, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidDateType))
	var ce *model.ColumnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "date", ce.Column)
}

func TestPrepareIdempotent(t *testing.T) {
	ds := numeric(
		row{"A", 1, "load", 10}, row{"A", 2, "load", nan}, row{"A", 4, "load", 30},
		row{"B", 2, "load", 5}, row{"B", 3, "load", 7}, row{"B", 3, "load", 1},
	)
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 2, 3

	first, err := Prepare(context.Background(), ds, cols, opts)
	require.NoError(t, err)
	opts.Concurrency = 4
	second, err := Prepare(context.Background(), ds, cols, opts)
	require.NoError(t, err)

	require.Equal(t, first.Frame.Names, second.Frame.Names)
	for i := range first.Frame.Cols {
		a, b := first.Frame.Cols[i], second.Frame.Cols[i]
		for r := range a {
			if math.IsNaN(a[r]) {
				assert.True(t, math.IsNaN(b[r]))
				continue
			}
			assert.Equal(t, a[r], b[r])
		}
	}
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPrepareRecordsMetrics(t *testing.T) {
	rec := metrics.New()
	opts := DefaultOptions()
	opts.Acute, opts.Chronic = 1, 2
	opts.Metrics = rec

	_, err := Prepare(context.Background(), numeric(row{"A", 1, "load", 1}, row{"B", 2, "load", 2}), cols, opts)
	require.NoError(t, err)
	_, err = Prepare(context.Background(), numeric(row{"A", 1, "load", 1}), cols, Options{Acute: 3, Chronic: 1, Metrics: rec})
	require.Error(t, err)

	// one series per outcome
	n, err := testutil.GatherAndCount(rec.Registry(), "athmon_prepare_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(rec.Registry(), "athmon_rolling_partitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
