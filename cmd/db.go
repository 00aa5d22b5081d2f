package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and manage the local database",
	Long: `Commands for inspecting and clearing the local bbolt database that holds
saved profiles and the run log.`,
}

// ─── db stats ─────────────────────────────────────────────────────────────────

var dbStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  athmon db stats`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		deps, err := buildDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		st, err := deps.Store()
		if err != nil {
			return err
		}
		stats, err := st.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", st.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── db clear ─────────────────────────────────────────────────────────────────

var (
	dbClearAll    bool
	dbClearBucket string
)

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local database",
	Long: `Delete entries from one or all buckets.

Note: bbolt does not shrink the database file after clearing. Free pages
are reused internally on the next write.`,
	Example: `  athmon db clear --all
  athmon db clear --bucket runs`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if !dbClearAll && dbClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <n>\n\nBuckets: profiles, runs")
		}

		deps, err := buildDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		st, err := deps.Store()
		if err != nil {
			return err
		}

		if dbClearAll {
			if err := st.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
			return nil
		}

		if err := st.ClearBucket(dbClearBucket); err != nil {
			return fmt.Errorf("clearing bucket %q: %w", dbClearBucket, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %q\n", dbClearBucket)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbClearCmd)

	dbClearCmd.Flags().BoolVar(&dbClearAll, "all", false, "clear all buckets")
	dbClearCmd.Flags().StringVar(&dbClearBucket, "bucket", "", "clear a specific bucket: profiles|runs")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
