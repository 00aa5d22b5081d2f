// Package prepare runs the full preparation pipeline: raw records are laid on
// a dense daily grid, aggregated per day, imputed, rolled over the acute and
// chronic windows, optionally post-processed and finally summarized across
// athletes.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/derickschaefer/athmon/internal/estimator"
	"github.com/derickschaefer/athmon/internal/grid"
	"github.com/derickschaefer/athmon/internal/group"
	"github.com/derickschaefer/athmon/internal/metrics"
	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/nominal"
	"github.com/derickschaefer/athmon/internal/posthoc"
	"github.com/derickschaefer/athmon/internal/rolling"
)

// Options configures a preparation run. Use DefaultOptions and override.
type Options struct {
	Acute       int
	Chronic     int
	RollingFill float64
	NASession   float64
	NADay       float64

	DayAggregate           estimator.AggregateFunc
	RollingEstimators      estimator.Func
	Posthoc                posthoc.Func
	GroupSummaryEstimators estimator.Func

	// UseCounts keeps per-day level counts in nominal mode instead of
	// reducing them to presence indicators.
	UseCounts bool
	// MaxLevels bounds the number of distinct nominal levels; 0 disables.
	MaxLevels int

	Concurrency int
	Metrics     *metrics.Recorder
}

// DefaultOptions returns acute 7, chronic 28, NA fill and imputation, a sum
// day aggregate, mean/sd/cv rolling estimators and median/IQR group
// estimators.
func DefaultOptions() Options {
	return Options{
		Acute:                  7,
		Chronic:                28,
		RollingFill:            math.NaN(),
		NASession:              math.NaN(),
		NADay:                  math.NaN(),
		DayAggregate:           estimator.Sum,
		RollingEstimators:      estimator.MeanSDCV,
		GroupSummaryEstimators: estimator.MedianIQR,
		MaxLevels:              50,
		Concurrency:            1,
	}
}

// Validate checks the window sizes.
func (o Options) Validate() error {
	return rolling.Options{Acute: o.Acute, Chronic: o.Chronic}.Validate()
}

// Prepare runs every stage over ds and returns the prepared object. No partial
// result is returned on error.
func Prepare(ctx context.Context, ds *model.Dataset, cols grid.Columns, opts Options) (p *model.Prepared, err error) {
	rec := opts.Metrics
	defer func() { rec.Run(err) }()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.DayAggregate == nil {
		opts.DayAggregate = estimator.Sum
	}
	if opts.RollingEstimators == nil {
		opts.RollingEstimators = estimator.MeanSDCV
	}
	if opts.GroupSummaryEstimators == nil {
		opts.GroupSummaryEstimators = estimator.MedianIQR
	}

	done := rec.Stage("extract")
	in, err := grid.Extract(ds, cols)
	done()
	if err != nil {
		return nil, err
	}
	rec.Rows("input", ds.Len())
	slog.Debug("records extracted",
		"records", len(in.Records),
		"dropped", in.Dropped,
		"nominal", in.Nominal,
		"date_kind", in.DateKind)

	records := in.Records
	var levels []string
	kind := model.TypeNumeric
	if in.Nominal {
		kind = model.TypeNominal
		if levels, err = nominal.Levels(records, opts.MaxLevels); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidColumnReference, err)
		}
		records = nominal.Expand(records, levels)
		slog.Debug("nominal expansion", "levels", len(levels), "records", len(records))
	}

	done = rec.Stage("grid")
	g, err := grid.Build(records, levels)
	if err == nil {
		err = g.Aggregate(records, opts.DayAggregate)
	}
	done()
	if err != nil {
		var ce *model.ColumnError
		if errors.As(err, &ce) && ce.Column == "" {
			ce.Column = cols.Date
		}
		return nil, fmt.Errorf("grid: %w", err)
	}
	f := g.Frame
	rec.Rows("grid", f.Len())
	slog.Debug("grid built",
		"rows", f.Len(),
		"athletes", len(f.Athletes),
		"variables", len(f.Variables),
		"days", g.Days)

	var props []model.Proportion
	if in.Nominal {
		if !opts.UseCounts {
			nominal.Indicator(f)
		}
		props = nominal.Proportions(f)
	}
	grid.Impute(f, opts.NASession, opts.NADay)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = rec.Stage("rolling")
	stats, err := rolling.Run(ctx, f, rolling.Options{
		Acute:       opts.Acute,
		Chronic:     opts.Chronic,
		Fill:        opts.RollingFill,
		Estimator:   opts.RollingEstimators,
		Concurrency: opts.Concurrency,
	})
	done()
	rec.Evaluations("rolling", stats.Evaluations)
	if err != nil {
		return nil, err
	}
	rec.Partitions(stats.Partitions)

	done = rec.Stage("posthoc")
	f, added, err := posthoc.Apply(f, opts.Posthoc)
	done()
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		slog.Debug("posthoc columns added", "columns", added)
	}

	done = rec.Stage("group")
	groups, err := group.Summarize(f, opts.GroupSummaryEstimators)
	done()
	if err != nil {
		return nil, err
	}
	rec.Rows("group", len(groups.Rows))

	return &model.Prepared{
		ID:       uuid.NewString(),
		Type:     kind,
		DateKind: in.DateKind,
		Frame:    f,
		Settings: model.Settings{
			Acute:           opts.Acute,
			Chronic:         opts.Chronic,
			RollingFill:     opts.RollingFill,
			NASession:       opts.NASession,
			NADay:           opts.NADay,
			UseCounts:       opts.UseCounts,
			RollingColumns:  stats.Columns,
			PosthocColumns:  added,
			GroupEstimators: groups.Names,
			Concurrency:     opts.Concurrency,
		},
		Levels:      levels,
		Proportions: props,
		Groups:      groups,
	}, nil
}
