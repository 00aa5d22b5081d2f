package estimator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ─── Day aggregates ───────────────────────────────────────────────────────────

// Sum adds the non-NaN values; NaN when there are none.
func Sum(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return floats.Sum(vals)
}

// MeanAgg averages the non-NaN values; NaN when there are none.
func MeanAgg(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// MaxAgg returns the largest non-NaN value; NaN when there are none.
func MaxAgg(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return floats.Max(vals)
}

// MinAgg returns the smallest non-NaN value; NaN when there are none.
func MinAgg(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return floats.Min(vals)
}

var aggregates = map[string]AggregateFunc{
	"sum":  Sum,
	"mean": MeanAgg,
	"max":  MaxAgg,
	"min":  MinAgg,
}

// Aggregate looks up a built-in day aggregate by name.
func Aggregate(name string) (AggregateFunc, error) {
	f, ok := aggregates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown day aggregate %q (use sum, mean, max, min)", name)
	}
	return f, nil
}

// ─── Scalar statistics ────────────────────────────────────────────────────────

func mean(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// sd is the sample standard deviation; NaN with fewer than two values.
func sd(x []float64) float64 {
	vals := DropNaN(x)
	if len(vals) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vals, nil)
}

// cv is sd/mean; NaN when the mean is zero.
func cv(x []float64) float64 {
	m := mean(x)
	if m == 0 {
		return math.NaN()
	}
	return sd(x) / m
}

func count(x []float64) float64 {
	return float64(len(DropNaN(x)))
}

func quantile(p float64) func(x []float64) float64 {
	return func(x []float64) float64 {
		return Percentile(sortedValues(x), p*100)
	}
}

// ewma is the exponentially weighted mean of the window, oldest value first,
// with smoothing 2/(n+1) for a window of n values. NaN values are skipped.
func ewma(x []float64) float64 {
	lambda := 2.0 / (float64(len(x)) + 1)
	acc := math.NaN()
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(acc) {
			acc = v
			continue
		}
		acc = lambda*v + (1-lambda)*acc
	}
	return acc
}

// ─── Built-in Funcs ───────────────────────────────────────────────────────────

var (
	Mean   = Single("mean", mean)
	SD     = Single("sd", sd)
	CV     = Single("cv", cv)
	Total  = Single("sum", Sum)
	Min    = Single("min", MinAgg)
	Max    = Single("max", MaxAgg)
	Count  = Single("n", count)
	Median = Single("median", quantile(0.5))
	Lower  = Single("lower", quantile(0.25))
	Upper  = Single("upper", quantile(0.75))
	EWMA   = Single("ewma", ewma)
)

// MeanSDCV is the default rolling estimator: mean, sd and cv of each window.
var MeanSDCV = Combine(Mean, SD, CV)

// MedianIQR is the default group-summary estimator: median with the
// 25th (lower) and 75th (upper) percentiles.
var MedianIQR = Combine(Median, Lower, Upper)

// Quantile returns a Func named name for the p-th quantile (0..1).
func Quantile(name string, p float64) Func {
	return Single(name, quantile(p))
}

var builtins = map[string]Func{
	"mean":   Mean,
	"sd":     SD,
	"cv":     CV,
	"sum":    Total,
	"min":    Min,
	"max":    Max,
	"n":      Count,
	"median": Median,
	"lower":  Lower,
	"upper":  Upper,
	"ewma":   EWMA,
}

// Names lists the built-in estimator names, sorted. Quantiles are also
// accepted as qNN (e.g. q10, q90).
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the built-in Func for name.
func Lookup(name string) (Func, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if f, ok := builtins[name]; ok {
		return f, nil
	}
	if strings.HasPrefix(name, "q") {
		if p, err := strconv.Atoi(name[1:]); err == nil && p >= 0 && p <= 100 {
			return Quantile(name, float64(p)/100), nil
		}
	}
	return nil, fmt.Errorf("unknown estimator %q (available: %s, qNN)", name, strings.Join(Names(), ", "))
}

// Parse builds a combined Func from names such as []string{"mean", "sd"}.
func Parse(names []string) (Func, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no estimators given")
	}
	fs := make([]Func, 0, len(names))
	for _, n := range names {
		f, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return Combine(fs...), nil
}
