package chart_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/athmon/internal/chart"
	"github.com/derickschaefer/athmon/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// prepared builds a numeric Prepared with one load stream per athlete over
// days 1..n, plus an acute.mean column equal to twice the value.
func prepared(vals map[string][]float64) *model.Prepared {
	f := &model.Frame{Variables: []string{"load"}, Names: []string{"acute.mean"}, Cols: [][]float64{nil}}
	for _, a := range []string{"A", "B"} {
		vs, ok := vals[a]
		if !ok {
			continue
		}
		code := int32(len(f.Athletes))
		f.Athletes = append(f.Athletes, a)
		for d, v := range vs {
			f.Athlete = append(f.Athlete, code)
			f.Variable = append(f.Variable, 0)
			f.Day = append(f.Day, int64(d+1))
			f.Value = append(f.Value, v)
			f.MissingEntry = append(f.MissingEntry, math.IsNaN(v))
			f.MissingDay = append(f.MissingDay, false)
			f.Cols[0] = append(f.Cols[0], 2*v)
		}
	}
	return &model.Prepared{Type: model.TypeNumeric, DateKind: model.DateNumeric, Frame: f}
}

func series(vals ...float64) chart.Series {
	s := chart.Series{Title: "A  load  value"}
	for i, v := range vals {
		s.Points = append(s.Points, chart.Point{Label: string(rune('a' + i)), Value: v})
	}
	return s
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

// ─── Slice ────────────────────────────────────────────────────────────────────

func TestSliceValue(t *testing.T) {
	p := prepared(map[string][]float64{"A": {1, 2, 3}, "B": {10, 20, 30}})
	s, err := chart.Slice(p, chart.Selection{Athlete: "B", Variable: "load"})
	require.NoError(t, err)
	require.Len(t, s.Points, 3)
	assert.Equal(t, "1", s.Points[0].Label)
	assert.Equal(t, 30.0, s.Points[2].Value)
	assert.Equal(t, "B  load  value", s.Title)
	assert.Nil(t, s.Ref, "no reference requested")
}

func TestSliceColumnAndLastN(t *testing.T) {
	p := prepared(map[string][]float64{"A": {1, 2, 3, 4}})
	s, err := chart.Slice(p, chart.Selection{Athlete: "A", Variable: "load", Column: "acute.mean", LastN: 2})
	require.NoError(t, err)
	require.Len(t, s.Points, 2)
	assert.Equal(t, 6.0, s.Points[0].Value)
	assert.Equal(t, "4", s.Points[1].Label)
}

func TestSliceErrors(t *testing.T) {
	p := prepared(map[string][]float64{"A": {1, 2}})
	_, err := chart.Slice(p, chart.Selection{Athlete: "A", Variable: "load", Column: "chronic.sd"})
	assert.ErrorIs(t, err, model.ErrInvalidColumnReference)
	assert.ErrorContains(t, err, "acute.mean", "error should list available columns")

	_, err = chart.Slice(p, chart.Selection{Athlete: "Z", Variable: "load"})
	assert.Error(t, err, "unknown athlete should fail")
}

func TestSliceReference(t *testing.T) {
	p := prepared(map[string][]float64{"A": {1, 2, 3}})
	p.Groups = &model.GroupSummary{
		Names: []string{"median", "lower", "upper"},
		Rows: []model.GroupRow{
			{Day: 1, Variable: "load", Column: "value", Values: []float64{5, 4, 6}},
			{Day: 3, Variable: "load", Column: "value", Values: []float64{7, 6, 8}},
		},
	}
	s, err := chart.Slice(p, chart.Selection{Athlete: "A", Variable: "load", Reference: "median"})
	require.NoError(t, err)
	assert.Equal(t, "group median", s.RefName)
	require.Len(t, s.Ref, 3)
	assert.Equal(t, 5.0, s.Ref[0])
	assert.True(t, math.IsNaN(s.Ref[1]), "day 2 has no group row")
	assert.Equal(t, 7.0, s.Ref[2])
}

// ─── Bar ──────────────────────────────────────────────────────────────────────

func TestBarSkipsNaN(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Bar(&buf, series(10, math.NaN(), 30), chart.BarOptions{Width: 40}))
	out := lines(buf.String())
	// title + two bars
	require.Len(t, out, 3, buf.String())
	assert.True(t, strings.HasPrefix(out[0], "A  load  value  a – c"), "title line: %q", out[0])
	short := strings.Count(out[1], "█")
	long := strings.Count(out[2], "█")
	assert.Positive(t, short)
	assert.Greater(t, long, short, "bar lengths should grow with value")
}

func TestBarMaxBars(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Bar(&buf, series(1, 2, 3, 4, 5), chart.BarOptions{Width: 40, MaxBars: 2}))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"), "expected title + 2 bars")
}

func TestBarNegativeValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Bar(&buf, series(-5, 5), chart.BarOptions{Width: 40}))
	assert.Contains(t, buf.String(), "│", "mixed-sign bars need a zero line")
}

func TestBarAllNaN(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, chart.Bar(&buf, series(math.NaN()), chart.BarOptions{}))
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

func TestPlotDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Plot(&buf, series(1, 3, 2, 5, 4), chart.PlotOptions{Width: 40, Height: 6}))
	out := lines(buf.String())
	// title + 6 rows + axis + labels
	require.Len(t, out, 9, buf.String())
	assert.Contains(t, out[0], "(a to e)")
	assert.Contains(t, out[7], "└")
}

func TestPlotReferenceLegend(t *testing.T) {
	s := series(1, 2, 3)
	s.Ref = []float64{2, math.NaN(), 2}
	s.RefName = "group median"
	var buf bytes.Buffer
	require.NoError(t, chart.Plot(&buf, s, chart.PlotOptions{Width: 30, Height: 5}))
	assert.Contains(t, buf.String(), "·· group median")
}

func TestPlotNeedsTwoValues(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, chart.Plot(&buf, series(1, math.NaN()), chart.PlotOptions{}))
}

func TestPlotFlatLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, chart.Plot(&buf, series(4, 4, 4), chart.PlotOptions{Width: 30, Height: 4}))
	assert.Contains(t, buf.String(), "─", "flat series should draw a horizontal line")
}
