package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/summary"
)

// ─── prepare ──────────────────────────────────────────────────────────────────

var prepareCmd = &cobra.Command{
	Use:   "prepare <file>",
	Short: "Build the daily panel with rolling acute and chronic estimates",
	Long: `Read an athlete monitoring file and prepare it for analysis.

Records are expanded to one row per athlete, variable and day across the
whole date range of the file, from its earliest to its latest date, so every
athlete shares the same days. Same-day records are aggregated, missing days
and missing values are imputed, and the rolling estimators run over the acute
and chronic windows. Nominal variables (--nominal) become one 0/1 indicator
per level.

Use "-" to read CSV from stdin.`,
	Example: `  athmon prepare load.csv
  athmon prepare load.csv --acute 7 --chronic 28 --estimators mean,sd
  athmon prepare load.csv --posthoc ratios --format csv --out prepared.csv
  athmon prepare rpe.xlsx --sheet wellness --nominal --format json
  cat load.csv | athmon prepare -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		deps, err := buildPrepareDeps(cmd)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		p, err := runPipeline(cmd.Context(), deps, args[0], "prepare")
		if err != nil {
			return err
		}
		result := newResult(model.KindPrepared, "prepare", p, p.Frame.Len(), started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

// ─── summary ──────────────────────────────────────────────────────────────────

var summaryByVariable bool

var summaryCmd = &cobra.Command{
	Use:   "summary <file>",
	Short: "Per-athlete data quality and descriptive statistics",
	Long: `Prepare the file and summarise each athlete, variable and level:
days covered, entries, missing entries, missing days and descriptive
statistics of the prepared value. Nominal data also reports each level's
proportion.

--by-variable pools athletes and reports one row per variable and level.`,
	Example: `  athmon summary load.csv
  athmon summary load.csv --by-variable --format md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		deps, err := buildPrepareDeps(cmd)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		p, err := runPipeline(cmd.Context(), deps, args[0], "summary")
		if err != nil {
			return err
		}
		ss := summary.Build(p, summaryByVariable)
		result := newResult(model.KindSummary, "summary", ss, len(ss), started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

// ─── group ────────────────────────────────────────────────────────────────────

var groupCmd = &cobra.Command{
	Use:   "group <file>",
	Short: "Day-by-day summaries across athletes",
	Long: `Prepare the file and summarise every prepared column across athletes for
each variable, level and day with the group estimators (default: median,
lower and upper quartiles).`,
	Example: `  athmon group load.csv
  athmon group load.csv --group-estimators mean,sd --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		deps, err := buildPrepareDeps(cmd)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		p, err := runPipeline(cmd.Context(), deps, args[0], "group")
		if err != nil {
			return err
		}
		items := 0
		if p.Groups != nil {
			items = len(p.Groups.Rows)
		}
		result := newResult(model.KindGroups, "group", p, items, started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(groupCmd)

	addPrepareFlags(prepareCmd)
	addPrepareFlags(summaryCmd)
	addPrepareFlags(groupCmd)

	summaryCmd.Flags().BoolVar(&summaryByVariable, "by-variable", false, "pool athletes per variable and level")
}
