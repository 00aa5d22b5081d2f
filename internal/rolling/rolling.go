// Package rolling applies an estimator over trailing acute and chronic
// windows of every (athlete, variable, level) partition of a Frame.
//
// A window at row i covers rows [i-w+1, i] of the same partition and always
// includes the current day. Rows with fewer than w days of history before
// them are warm-up rows and receive the fill value without calling the
// estimator. Partitions are independent and may be evaluated concurrently;
// results do not depend on the degree of parallelism.
package rolling

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/model"
)

// Window prefixes used for output column names.
const (
	Acute   = "acute"
	Chronic = "chronic"
)

// Options controls a rolling run.
type Options struct {
	Acute       int
	Chronic     int
	Fill        float64
	Estimator   estimator.Func
	Concurrency int
}

// Stats describes the work done by Run.
type Stats struct {
	Partitions  int
	Evaluations int64
	Columns     []string
}

// Validate checks window sizes.
func (o Options) Validate() error {
	if o.Acute < 1 || o.Chronic < 1 {
		return fmt.Errorf("%w: acute %d and chronic %d must both be >= 1",
			model.ErrInvalidWindowSize, o.Acute, o.Chronic)
	}
	if o.Acute > o.Chronic {
		return fmt.Errorf("%w: acute %d exceeds chronic %d",
			model.ErrInvalidWindowSize, o.Acute, o.Chronic)
	}
	return nil
}

type window struct {
	prefix string
	size   int
	names  []string
	cols   [][]float64
}

// Run evaluates opts.Estimator over both windows and appends one column per
// (window, output name) to f, named "<window>.<name>". On error f may hold
// partially filled columns and should be discarded.
func Run(ctx context.Context, f *model.Frame, opts Options) (Stats, error) {
	if err := opts.Validate(); err != nil {
		return Stats{}, err
	}
	est := opts.Estimator
	if est == nil {
		est = estimator.MeanSDCV
	}

	windows := []*window{
		{prefix: Acute, size: opts.Acute},
		{prefix: Chronic, size: opts.Chronic},
	}
	parts := f.Partitions()
	var stats Stats
	for _, w := range windows {
		names, err := outputNames(f, parts, w, est)
		if err != nil {
			return Stats{}, err
		}
		w.names = names
		w.cols = make([][]float64, len(names))
		for j, name := range names {
			col, err := f.NewColumn(w.prefix + "." + name)
			if err != nil {
				return Stats{}, err
			}
			w.cols[j] = col
			stats.Columns = append(stats.Columns, w.prefix+"."+name)
		}
	}

	stats.Partitions = len(parts)

	conc := opts.Concurrency
	if conc < 1 {
		conc = 1
	}

	// Every partition below the lowest failing index still runs, so the
	// reported error is the same for any concurrency.
	errs := make([]error, len(parts))
	var failed atomic.Int64
	failed.Store(math.MaxInt64)
	var evals, done atomic.Int64
	progress := rate.Sometimes{Interval: time.Second}

	var g errgroup.Group
	g.SetLimit(conc)
	for p, part := range parts {
		g.Go(func() error {
			if int64(p) > failed.Load() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := runPartition(f, part, windows, est, opts.Fill)
			evals.Add(n)
			if err != nil {
				errs[p] = err
				for {
					cur := failed.Load()
					if int64(p) >= cur || failed.CompareAndSwap(cur, int64(p)) {
						break
					}
				}
				return nil
			}
			d := done.Add(1)
			progress.Do(func() {
				slog.Debug("rolling progress", "done", d, "partitions", len(parts))
			})
			return nil
		})
	}
	waitErr := g.Wait()
	stats.Evaluations = evals.Load()
	for _, err := range errs {
		if err != nil {
			return stats, err
		}
	}
	if waitErr != nil {
		return stats, waitErr
	}
	slog.Debug("rolling complete",
		"partitions", stats.Partitions,
		"evaluations", stats.Evaluations,
		"acute", opts.Acute,
		"chronic", opts.Chronic)
	return stats, nil
}

// outputNames evaluates est on the first full window of w in row order and
// returns the names it produces. Later evaluations are checked against them.
// Only when every row of every partition is warm-up for w is the estimator
// called on a synthetic all-NA window instead.
func outputNames(f *model.Frame, parts []model.Partition, w *window, est estimator.Func) ([]string, error) {
	for _, part := range parts {
		if part.End-part.Start < w.size {
			continue
		}
		row := part.Start + w.size - 1
		x := append([]float64(nil), f.Value[part.Start:row+1]...)
		out, err := estimator.Eval(est, x)
		if err == nil {
			err = estimator.ValidateNames(out.Names())
		}
		if err != nil {
			return nil, &model.EstimatorError{
				Stage:    "rolling",
				Athlete:  f.AthleteAt(row),
				Variable: f.VariableAt(row),
				Level:    f.LevelAt(row),
				Window:   w.prefix,
				Row:      row,
				Err:      err,
			}
		}
		return out.Names(), nil
	}
	names, err := estimator.NAWindowNames(est, w.size)
	if err != nil {
		return nil, &model.EstimatorError{Stage: "rolling", Window: w.prefix, Row: -1, Err: err}
	}
	return names, nil
}

// runPartition fills the window columns for one partition and returns the
// number of estimator calls made.
func runPartition(f *model.Frame, part model.Partition, windows []*window, est estimator.Func, fill float64) (int64, error) {
	capacity := 1
	for _, w := range windows {
		if w.size > capacity {
			capacity = w.size
		}
	}
	buf := newRing(capacity)
	scratch := make([]float64, capacity)
	var calls int64

	for row := part.Start; row < part.End; row++ {
		buf.push(f.Value[row])
		i := row - part.Start
		for _, w := range windows {
			if i+1 < w.size {
				for _, col := range w.cols {
					col[row] = fill
				}
				continue
			}
			x := buf.last(w.size, scratch)
			out, err := estimator.Eval(est, x)
			calls++
			if err == nil {
				err = estimator.CheckNames(out, w.names)
			}
			if err != nil {
				return calls, &model.EstimatorError{
					Stage:    "rolling",
					Athlete:  f.AthleteAt(row),
					Variable: f.VariableAt(row),
					Level:    f.LevelAt(row),
					Window:   w.prefix,
					Row:      row,
					Err:      err,
				}
			}
			for j, e := range out {
				w.cols[j][row] = e.Value
			}
		}
	}
	return calls, nil
}
