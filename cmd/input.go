package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/app"
	"github.com/derickschaefer/athmon/internal/config"
	"github.com/derickschaefer/athmon/internal/dataset"
	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/prepare"
	"github.com/derickschaefer/athmon/internal/store"
)

// prepFlags holds the flags shared by every command that runs the pipeline.
// Only one command runs per process, so a single struct is enough.
var prepFlags struct {
	Profile         string
	AthleteCol      string
	DateCol         string
	VariableCol     string
	ValueCol        string
	Sheet           string
	Sep             string
	Nominal         bool
	Acute           int
	Chronic         int
	Aggregate       string
	Estimators      string
	GroupEstimators string
	Posthoc         string
	NASession       string
	NADay           string
	RollingFill     string
	UseCounts       bool
	MaxLevels       int
}

// addPrepareFlags registers the pipeline flags on c.
func addPrepareFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&prepFlags.Profile, "profile", "", "apply a saved profile before flags")
	f.StringVar(&prepFlags.AthleteCol, "athlete-col", "", "athlete column (default: athlete)")
	f.StringVar(&prepFlags.DateCol, "date-col", "", "date column (default: date)")
	f.StringVar(&prepFlags.VariableCol, "variable-col", "", "variable column (default: variable)")
	f.StringVar(&prepFlags.ValueCol, "value-col", "", "value column (default: value)")
	f.StringVar(&prepFlags.Sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	f.StringVar(&prepFlags.Sep, "sep", "", "CSV field separator (default: , or tab for .tsv)")
	f.BoolVar(&prepFlags.Nominal, "nominal", false, "treat the value column as categorical")
	f.IntVar(&prepFlags.Acute, "acute", 0, "acute window in days (default: 7)")
	f.IntVar(&prepFlags.Chronic, "chronic", 0, "chronic window in days (default: 28)")
	f.StringVar(&prepFlags.Aggregate, "aggregate", "", "same-day aggregate: sum|mean|max|min (default: sum)")
	f.StringVar(&prepFlags.Estimators, "estimators", "", "rolling estimators, comma separated (default: mean,sd,cv)")
	f.StringVar(&prepFlags.GroupEstimators, "group-estimators", "", "group estimators, comma separated (default: median,lower,upper)")
	f.StringVar(&prepFlags.Posthoc, "posthoc", "", "posthoc transformation: none|ratios")
	f.StringVar(&prepFlags.NASession, "na-session", "", "value for days with a record but no value (number or NA)")
	f.StringVar(&prepFlags.NADay, "na-day", "", "value for days with no record (number or NA)")
	f.StringVar(&prepFlags.RollingFill, "rolling-fill", "", "value for warm-up rows (number or NA)")
	f.BoolVar(&prepFlags.UseCounts, "use-counts", false, "nominal mode: keep per-day level counts")
	f.IntVar(&prepFlags.MaxLevels, "max-levels", 0, "nominal mode: maximum distinct levels (0 = no limit)")
}

// prepareOverrides returns the pipeline flags the user set explicitly.
func prepareOverrides(c *cobra.Command) map[string]interface{} {
	out := map[string]interface{}{}
	f := c.Flags()
	set := func(flag, key string, v interface{}) {
		if f.Lookup(flag) != nil && f.Changed(flag) {
			out[key] = v
		}
	}
	set("athlete-col", "columns.athlete", prepFlags.AthleteCol)
	set("date-col", "columns.date", prepFlags.DateCol)
	set("variable-col", "columns.variable", prepFlags.VariableCol)
	set("value-col", "columns.value", prepFlags.ValueCol)
	set("acute", "acute", prepFlags.Acute)
	set("chronic", "chronic", prepFlags.Chronic)
	set("aggregate", "day_aggregate", prepFlags.Aggregate)
	set("estimators", "estimators", splitList(prepFlags.Estimators))
	set("group-estimators", "group_estimators", splitList(prepFlags.GroupEstimators))
	set("posthoc", "posthoc", prepFlags.Posthoc)
	set("na-session", "na_session", prepFlags.NASession)
	set("na-day", "na_day", prepFlags.NADay)
	set("rolling-fill", "rolling_fill", prepFlags.RollingFill)
	set("use-counts", "use_counts", prepFlags.UseCounts)
	set("max-levels", "max_levels", prepFlags.MaxLevels)
	return out
}

// buildPrepareDeps resolves configuration for a pipeline command: config
// file and environment, then the --profile settings, then flags.
func buildPrepareDeps(c *cobra.Command) (*app.Deps, error) {
	flags := prepareOverrides(c)
	if prepFlags.Profile == "" {
		return buildDeps(c, flags)
	}

	deps, err := buildDeps(c, nil)
	if err != nil {
		return nil, err
	}
	st, err := deps.Store()
	if err != nil {
		return nil, err
	}
	p, ok, err := st.GetProfile(prepFlags.Profile)
	deps.Close()
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("profile %q not found (see: athmon profile list)", prepFlags.Profile)
	}
	layered := p.Overrides()
	for k, v := range flags {
		layered[k] = v
	}
	slog.Debug("profile applied", "profile", p.Name, "id", p.ID)
	return buildDeps(c, layered)
}

// runPipeline reads path and runs the preparation pipeline with the resolved
// configuration. Every run that gets past input checks is recorded in the run
// log, failed ones with their error.
func runPipeline(ctx context.Context, deps *app.Deps, path, command string) (p *model.Prepared, err error) {
	cfg := deps.Config
	started := time.Now()

	readOpts := dataset.Options{Sheet: prepFlags.Sheet}
	if prepFlags.Sep != "" {
		readOpts.Sep = []rune(prepFlags.Sep)[0]
	}
	if prepFlags.Nominal {
		readOpts = readOpts.ForceString(cfg.Columns.Value)
	}
	if path == "-" && dataset.IsTTY() {
		return nil, fmt.Errorf("no input: pipe a CSV file into stdin or pass a path")
	}
	defer func() {
		recordRun(deps, runEntry(cfg, p, path, command, time.Since(started), err))
	}()

	done := deps.Metrics.Stage("read")
	ds, err := dataset.ReadFile(path, readOpts)
	done()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	opts, err := cfg.PrepareOptions()
	if err != nil {
		return nil, err
	}
	opts.Metrics = deps.Metrics

	p, err = prepare.Prepare(ctx, ds, cfg.Columns, opts)
	if err != nil {
		return nil, err
	}
	slog.Info("prepared",
		"input", path,
		"rows", p.Frame.Len(),
		"type", p.Type,
		"elapsed", time.Since(started))
	return p, nil
}

// runEntry describes one pipeline run for the run log. p is nil when the run
// failed.
func runEntry(cfg *config.Config, p *model.Prepared, path, command string, elapsed time.Duration, err error) store.Run {
	r := store.Run{
		Command:    command,
		Input:      path,
		Profile:    prepFlags.Profile,
		Acute:      cfg.Acute,
		Chronic:    cfg.Chronic,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.ID = p.ID
	r.Type = string(p.Type)
	r.Rows = p.Frame.Len()
	r.Athletes = len(p.Frame.Athletes)
	r.Variables = len(p.Frame.Variables)
	r.Columns = p.Frame.Names
	return r
}

// recordRun appends the run to the local run log. Failures are logged, not
// returned, so a locked or read-only database never blocks a run.
func recordRun(deps *app.Deps, r store.Run) {
	if globalFlags.NoHistory {
		return
	}
	st, err := deps.Store()
	if err != nil {
		slog.Warn("run log unavailable", "err", err)
		return
	}
	if err := st.PutRun(r); err != nil {
		slog.Warn("recording run failed", "err", err)
	}
}

// profileFromConfig captures the pipeline part of cfg as a profile.
func profileFromConfig(name string, cfg *config.Config) store.Profile {
	return store.Profile{
		Name:            name,
		Columns:         cfg.Columns,
		Acute:           cfg.Acute,
		Chronic:         cfg.Chronic,
		DayAggregate:    cfg.DayAggregate,
		Estimators:      cfg.Estimators,
		GroupEstimators: cfg.GroupEstimators,
		Posthoc:         cfg.Posthoc,
		NASession:       cfg.NASession,
		NADay:           cfg.NADay,
		RollingFill:     cfg.RollingFill,
		UseCounts:       cfg.UseCounts,
		MaxLevels:       cfg.MaxLevels,
	}
}
