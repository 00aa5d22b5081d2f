package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent preparation runs",
	Long: `Show the local run log: which file was prepared, by which command and
profile, what it produced and how long it took. Runs are recorded by
prepare, summary, group and plot unless --no-history is given; failed runs
are recorded with their error.

The log holds run metadata only, never data values.`,
	Example: `  athmon history
  athmon history --limit 5 --format json`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		deps, err := buildDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		st, err := deps.Store()
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(historyLimit)
		if err != nil {
			return fmt.Errorf("reading run log: %w", err)
		}

		t := &model.Table{Headers: []string{
			"created_at", "command", "input", "profile", "acute", "chronic", "type", "rows", "athletes", "variables", "columns", "ms", "error",
		}}
		for _, r := range runs {
			t.Rows = append(t.Rows, []string{
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.Command,
				r.Input,
				r.Profile,
				fmt.Sprintf("%d", r.Acute),
				fmt.Sprintf("%d", r.Chronic),
				r.Type,
				fmt.Sprintf("%d", r.Rows),
				fmt.Sprintf("%d", r.Athletes),
				fmt.Sprintf("%d", r.Variables),
				strings.Join(r.Columns, ","),
				fmt.Sprintf("%d", r.DurationMs),
				r.Error,
			})
		}
		result := newResult(model.KindTable, "history", t, len(runs), started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show (0 = all)")
}
