// Package cmd implements the athmon CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/app"
	"github.com/derickschaefer/athmon/internal/config"
	"github.com/derickschaefer/athmon/internal/render"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Config      string
	Format      string
	Out         string
	Concurrency int
	LogLevel    string
	MetricsOut  string
	DB          string
	Quiet       bool
	Verbose     bool
	NoHistory   bool
}

// rootCmd is the base command. Running `athmon` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "athmon",
	Short: "athmon — athlete monitoring data preparation",
	Long: `athmon turns sparse athlete monitoring records (athlete, date, variable,
value) into a dense daily panel with acute and chronic rolling estimates,
optional derived metrics and day-by-day group summaries.

Input files are CSV, TSV, JSONL or XLSX with one record per row.

Quick start:
  athmon config init                      # write athmon.yaml with defaults
  athmon prepare load.csv                 # rolling estimates per athlete
  athmon summary load.csv                 # per-athlete data quality summary
  athmon plot load.csv --athlete A --variable load --column acute.mean`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalOverrides returns the persistent flags the user set explicitly,
// keyed like the configuration file.
func globalOverrides(cmd *cobra.Command) map[string]interface{} {
	out := map[string]interface{}{}
	flags := cmd.Flags()
	if flags.Changed("format") {
		out["format"] = globalFlags.Format
	}
	if flags.Changed("concurrency") {
		out["concurrency"] = globalFlags.Concurrency
	}
	if flags.Changed("log-level") {
		out["log_level"] = globalFlags.LogLevel
	}
	if flags.Changed("db") {
		out["db_path"] = globalFlags.DB
	}
	return out
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE. extra holds command-specific
// overrides layered above the global flags.
func buildDeps(cmd *cobra.Command, extra map[string]interface{}) (*app.Deps, error) {
	overrides := globalOverrides(cmd)
	for k, v := range extra {
		overrides[k] = v
	}
	cfg, err := config.Load(globalFlags.Config, overrides)
	if err != nil {
		return nil, err
	}
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose

	setupLogging(cfg.LogLevel)
	slog.Debug("configuration resolved",
		"config_file", cfg.ConfigPath,
		"acute", cfg.Acute,
		"chronic", cfg.Chronic,
		"concurrency", cfg.Concurrency)

	return app.New(cfg, globalFlags.MetricsOut != ""), nil
}

// setupLogging installs a text slog handler on stderr at the given level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	if globalFlags.Quiet && lvl < slog.LevelError {
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// finish writes the metrics textfile if requested and closes the deps. Its
// error is stored in *errp unless the command already failed.
func finish(deps *app.Deps, errp *error) {
	var err error
	if globalFlags.MetricsOut != "" {
		err = deps.Metrics.WriteTextfile(globalFlags.MetricsOut)
	}
	if cerr := deps.Close(); err == nil {
		err = cerr
	}
	if *errp == nil {
		*errp = err
	}
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Config, "config", "",
		"configuration file (default: ./athmon.yaml if present)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: "+strings.Join(render.Formats, "|")+" (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.IntVar(&globalFlags.Concurrency, "concurrency", 0,
		"partitions evaluated in parallel by the rolling engine (default: 4)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: debug|info|warn|error (default: warn)")
	pf.StringVar(&globalFlags.MetricsOut, "metrics-out", "",
		"write Prometheus metrics for the run to this file")
	pf.StringVar(&globalFlags.DB, "db", "",
		"profile database path (default: ~/.athmon/athmon.db)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.NoHistory, "no-history", false,
		"do not record the run in the local run log")

	_ = rootCmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(render.Formats, cobra.ShellCompDirectiveNoFileComp))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", cobra.FixedCompletions(
		[]string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp))
}
