// Package posthoc runs user-supplied transformations over a rolled Frame and
// verifies they only add columns.
package posthoc

import (
	"fmt"
	"math"

	"github.com/derickschaefer/athmon/internal/model"
)

// Func derives new columns from a rolled Frame. It receives a private copy
// and returns the frame to keep; the row keys must be unchanged.
type Func func(f *model.Frame) (*model.Frame, error)

// Apply runs fn on a copy of f and returns the resulting frame together with
// the names of the columns it added. Any error, panic, missing result or
// change to the row keys yields a *model.PosthocError.
func Apply(f *model.Frame, fn Func) (out *model.Frame, added []string, err error) {
	if fn == nil {
		return f, nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, added = nil, nil
			err = &model.PosthocError{Reason: "function panicked", Err: fmt.Errorf("%v", r)}
		}
	}()

	res, ferr := fn(f.Clone())
	if ferr != nil {
		return nil, nil, &model.PosthocError{Reason: "function failed", Err: ferr}
	}
	if res == nil {
		return nil, nil, &model.PosthocError{Reason: "function returned no frame"}
	}
	if !f.SameKeys(res) {
		return nil, nil, &model.PosthocError{
			Reason: fmt.Sprintf("row keys changed (%d rows in, %d rows out)", f.Len(), res.Len()),
		}
	}
	if len(res.Value) != f.Len() || len(res.MissingEntry) != f.Len() || len(res.MissingDay) != f.Len() {
		return nil, nil, &model.PosthocError{Reason: "value or missing-flag columns resized"}
	}
	if len(res.Names) != len(res.Cols) {
		return nil, nil, &model.PosthocError{
			Reason: fmt.Sprintf("%d column names for %d columns", len(res.Names), len(res.Cols)),
		}
	}
	seen := make(map[string]bool, len(res.Names))
	for i, name := range res.Names {
		if len(res.Cols[i]) != f.Len() {
			return nil, nil, &model.PosthocError{
				Reason: fmt.Sprintf("column %q has %d values for %d rows", name, len(res.Cols[i]), f.Len()),
			}
		}
		if seen[name] {
			return nil, nil, &model.PosthocError{Reason: fmt.Sprintf("duplicate column %q", name)}
		}
		seen[name] = true
		if _, existed := f.Col(name); !existed {
			added = append(added, name)
		}
	}
	return res, added, nil
}

// Chain composes several Funcs into one, applied left to right.
func Chain(fns ...Func) Func {
	return func(f *model.Frame) (*model.Frame, error) {
		var err error
		for _, fn := range fns {
			if f, err = fn(f); err != nil {
				return nil, err
			}
			if f == nil {
				return nil, fmt.Errorf("chained function returned no frame")
			}
		}
		return f, nil
	}
}

// ─── Built-in transformations ─────────────────────────────────────────────────

// LoadRatios adds the usual acute:chronic workload metrics computed from the
// rolling means of the named estimator output (normally "mean"):
//
//	ACD = acute - chronic       (acute:chronic difference)
//	ACR = acute / chronic       (acute:chronic ratio)
//	ES  = ACD / chronic.sd      (effect size, NA without an sd column)
//
// Ratios with a zero or NA denominator are NA.
func LoadRatios(stat string) Func {
	return func(f *model.Frame) (*model.Frame, error) {
		acute, ok := f.Col("acute." + stat)
		if !ok {
			return nil, fmt.Errorf("load ratios: column %q not found", "acute."+stat)
		}
		chronic, ok := f.Col("chronic." + stat)
		if !ok {
			return nil, fmt.Errorf("load ratios: column %q not found", "chronic."+stat)
		}
		chronicSD, hasSD := f.Col("chronic.sd")

		acd := make([]float64, f.Len())
		acr := make([]float64, f.Len())
		es := make([]float64, f.Len())
		for i := range acd {
			acd[i] = acute[i] - chronic[i]
			acr[i] = ratio(acute[i], chronic[i])
			if hasSD {
				es[i] = ratio(acd[i], chronicSD[i])
			} else {
				es[i] = math.NaN()
			}
		}
		for _, c := range []struct {
			name string
			vals []float64
		}{{"ACD", acd}, {"ACR", acr}, {"ES", es}} {
			if err := f.AddColumn(c.name, c.vals); err != nil {
				return nil, err
			}
		}
		return f, nil
	}
}

// Lookup returns a named built-in transformation.
func Lookup(name string) (Func, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "ratios":
		return LoadRatios("mean"), nil
	}
	return nil, fmt.Errorf("unknown posthoc transformation %q (available: ratios, none)", name)
}

func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return math.NaN()
	}
	return num / den
}
