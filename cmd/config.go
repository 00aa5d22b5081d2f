package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/config"
	"github.com/derickschaefer/athmon/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage athmon configuration",
	Long: `Read and write athmon configuration stored in athmon.yaml.

Settings resolve in this order, later sources winning:
  built-in defaults, athmon.yaml (or --config), ATHMON_* environment
  variables, --profile, command-line flags.

Environment variables use the key in upper case; nested column keys use
ATHMON_COLUMNS_<NAME>, e.g. ATHMON_COLUMNS_ATHLETE=player.`,
}

// ─── config init ──────────────────────────────────────────────────────────────

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template athmon.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if globalFlags.Config != "" {
			path = globalFlags.Config
		}
		if err := config.WriteFile(path, configInitForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit the column names to match your files, then run: athmon prepare <file>")
		return nil
	},
}

// ─── config show ──────────────────────────────────────────────────────────────

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"get"},
	Short:   "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		deps, err := buildDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer finish(deps, &err)
		cfg := deps.Config

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		rows := [][]string{
			{"format", cfg.Format},
			{"concurrency", fmt.Sprintf("%d", cfg.Concurrency)},
			{"log_level", cfg.LogLevel},
			{"db_path", cfg.DBPath},
			{"columns.athlete", cfg.Columns.Athlete},
			{"columns.date", cfg.Columns.Date},
			{"columns.variable", cfg.Columns.Variable},
			{"columns.value", cfg.Columns.Value},
			{"acute", fmt.Sprintf("%d", cfg.Acute)},
			{"chronic", fmt.Sprintf("%d", cfg.Chronic)},
			{"day_aggregate", cfg.DayAggregate},
			{"estimators", strings.Join(cfg.Estimators, ",")},
			{"group_estimators", strings.Join(cfg.GroupEstimators, ",")},
			{"posthoc", orNone(cfg.Posthoc)},
			{"na_session", cfg.NASession},
			{"na_day", cfg.NADay},
			{"rolling_fill", cfg.RollingFill},
			{"use_counts", fmt.Sprintf("%t", cfg.UseCounts)},
			{"max_levels", fmt.Sprintf("%d", cfg.MaxLevels)},
			{"config_file", src},
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printKVTableTo(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}
