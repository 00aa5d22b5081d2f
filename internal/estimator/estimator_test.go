package estimator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestMeanSDCV(t *testing.T) {
	est, err := MeanSDCV([]float64{10, 20, 30})
	require.NoError(t, err)
	require.Equal(t, []string{"mean", "sd", "cv"}, est.Names())
	assert.InDelta(t, 20, est[0].Value, 1e-12)
	assert.InDelta(t, 10, est[1].Value, 1e-12)
	assert.InDelta(t, 0.5, est[2].Value, 1e-12)
}

func TestBuiltinsSkipNaN(t *testing.T) {
	est, err := MeanSDCV([]float64{nan, 4, nan, 6})
	require.NoError(t, err)
	assert.InDelta(t, 5, est[0].Value, 1e-12)
	assert.InDelta(t, math.Sqrt2, est[1].Value, 1e-12)
}

func TestSDNeedsTwoValues(t *testing.T) {
	est, err := SD([]float64{nan, 3})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(est[0].Value))
}

func TestCVZeroMean(t *testing.T) {
	est, err := CV([]float64{-1, 1})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(est[0].Value), "cv with zero mean should be NA")
}

func TestAllNaNWindow(t *testing.T) {
	est, err := Combine(Mean, Total, Median, EWMA)([]float64{nan, nan})
	require.NoError(t, err)
	for _, e := range est {
		assert.True(t, math.IsNaN(e.Value), "%s of all-NA window", e.Name)
	}
	n, err := Count([]float64{nan, nan})
	require.NoError(t, err)
	assert.Equal(t, 0.0, n[0].Value)
}

func TestMedianIQR(t *testing.T) {
	est, err := MedianIQR([]float64{4, 1, 3, 2, 5})
	require.NoError(t, err)
	require.Equal(t, []string{"median", "lower", "upper"}, est.Names())
	assert.InDelta(t, 3, est[0].Value, 1e-12)
	assert.InDelta(t, 2, est[1].Value, 1e-12)
	assert.InDelta(t, 4, est[2].Value, 1e-12)
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.InDelta(t, 25, Percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 10, Percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 40, Percentile(sorted, 100), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func TestEWMAWeightsRecentValues(t *testing.T) {
	est, err := EWMA([]float64{0, 0, 10})
	require.NoError(t, err)
	// lambda 2/(3+1) = 0.5
	assert.InDelta(t, 5, est[0].Value, 1e-12)
}

func TestAggregates(t *testing.T) {
	x := []float64{2, nan, 6}
	cases := map[string]float64{"sum": 8, "mean": 4, "max": 6, "min": 2}
	for name, want := range cases {
		f, err := Aggregate(name)
		require.NoError(t, err, name)
		assert.InDelta(t, want, f(x), 1e-12, name)
		assert.True(t, math.IsNaN(f([]float64{nan})), "%s of only NA", name)
	}
	_, err := Aggregate("mode")
	assert.Error(t, err)
}

func TestLookupAndParse(t *testing.T) {
	f, err := Parse([]string{"mean", " SD ", "q90"})
	require.NoError(t, err)
	est, err := f([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	require.NoError(t, err)
	assert.Equal(t, []string{"mean", "sd", "q90"}, est.Names())
	assert.InDelta(t, 10, est[2].Value, 1e-12)

	_, err = Lookup("q101")
	assert.Error(t, err)
	_, err = Parse([]string{"mean", "bogus"})
	assert.ErrorContains(t, err, "bogus")
	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "ewma")
	assert.IsIncreasing(t, names)
}

func TestEvalRecoversPanic(t *testing.T) {
	boom := func(x []float64) (Estimates, error) { panic("boom") }
	_, err := Eval(boom, []float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNAWindowNames(t *testing.T) {
	names, err := NAWindowNames(MeanSDCV, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"mean", "sd", "cv"}, names)

	dup := Combine(Mean, Mean)
	_, err = NAWindowNames(dup, 3)
	assert.ErrorContains(t, err, "duplicate")

	empty := func(x []float64) (Estimates, error) { return nil, nil }
	_, err = NAWindowNames(empty, 3)
	assert.Error(t, err)

	failing := func(x []float64) (Estimates, error) { return nil, errors.New("nope") }
	_, err = NAWindowNames(failing, 3)
	assert.ErrorContains(t, err, "nope")
}

func TestCheckNames(t *testing.T) {
	est := Estimates{{Name: "a", Value: 1}, {Name: "b", Value: 2}}
	assert.NoError(t, CheckNames(est, []string{"a", "b"}))
	assert.Error(t, CheckNames(est, []string{"a"}))
	assert.Error(t, CheckNames(est, []string{"b", "a"}))
}
