// Package estimator defines the pluggable function contracts used by the
// preparation pipeline and a library of built-in implementations.
//
// A Func maps a numeric vector (a rolling window, or one day's values across
// athletes) to an ordered, named numeric vector. Built-ins skip NaN values;
// user functions decide their own NaN policy.
package estimator

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Estimate is one named output of a Func.
type Estimate struct {
	Name  string
	Value float64
}

// Estimates is an ordered, named numeric vector.
type Estimates []Estimate

// Names returns the output names in order.
func (e Estimates) Names() []string {
	out := make([]string, len(e))
	for i, est := range e {
		out[i] = est.Name
	}
	return out
}

// Func is the estimator contract: vector in, named vector out.
// Implementations must not retain or modify x.
type Func func(x []float64) (Estimates, error)

// AggregateFunc collapses same-day values into a single value.
type AggregateFunc func(x []float64) float64

// Combine concatenates the outputs of several estimators into one Func.
func Combine(fs ...Func) Func {
	return func(x []float64) (Estimates, error) {
		var out Estimates
		for _, f := range fs {
			est, err := f(x)
			if err != nil {
				return nil, err
			}
			out = append(out, est...)
		}
		return out, nil
	}
}

// Single wraps a scalar function as a one-output Func.
func Single(name string, f func(x []float64) float64) Func {
	return func(x []float64) (Estimates, error) {
		return Estimates{{Name: name, Value: f(x)}}, nil
	}
}

// Eval calls f on x, converting a panic into an error.
func Eval(f Func, x []float64) (est Estimates, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f(x)
}

// NAWindowNames discovers the output names of f by evaluating it once on an
// all-NaN vector of length n. Callers use it only when no real window exists.
func NAWindowNames(f Func, n int) ([]string, error) {
	if n < 1 {
		n = 1
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = math.NaN()
	}
	est, err := Eval(f, x)
	if err != nil {
		return nil, err
	}
	names := est.Names()
	if err := ValidateNames(names); err != nil {
		return nil, err
	}
	return names, nil
}

// CheckNames verifies that est carries exactly the names in want, in order.
func CheckNames(est Estimates, want []string) error {
	if len(est) != len(want) {
		return fmt.Errorf("estimator returned %d values, expected %d (%s)",
			len(est), len(want), strings.Join(want, ","))
	}
	for i, e := range est {
		if e.Name != want[i] {
			return fmt.Errorf("estimator output %d named %q, expected %q", i, e.Name, want[i])
		}
	}
	return nil
}

// ValidateNames rejects empty and duplicate output names.
func ValidateNames(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("estimator returned no values")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("estimator returned an unnamed value")
		}
		if seen[n] {
			return fmt.Errorf("estimator returned duplicate name %q", n)
		}
		seen[n] = true
	}
	return nil
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

// DropNaN returns the non-NaN values of x in a new slice.
func DropNaN(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Percentile returns the p-th percentile (0..100) of sorted by linear
// interpolation between closest ranks. NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// sortedValues drops NaN and sorts ascending.
func sortedValues(x []float64) []float64 {
	vals := DropNaN(x)
	sort.Float64s(vals)
	return vals
}
