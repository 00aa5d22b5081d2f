package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/render"
	"github.com/derickschaefer/athmon/internal/store"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Save and reuse named preparation settings",
	Long: `Profiles store preparation settings (column names, windows, estimators,
missing-value handling) in the local database under a name. Apply one to
any pipeline command with --profile; flags given alongside still win.

Profiles hold settings only. No data values are stored.`,
}

// ─── profile save ─────────────────────────────────────────────────────────────

var profileSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the resolved settings under a name",
	Long: `Resolve the configuration file, environment, an optional --profile base
and the given flags, then save the pipeline settings under <name>.
Saving over an existing name keeps its ID.`,
	Example: `  athmon profile save sprint --acute 3 --chronic 21 --estimators mean,ewma
  athmon profile save wellness --profile sprint --posthoc ratios`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		deps, err := buildPrepareDeps(cmd)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		st, err := deps.Store()
		if err != nil {
			return err
		}
		p, err := st.PutProfile(profileFromConfig(args[0], deps.Config))
		if err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
		if !globalFlags.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved profile %q (%s)\n", p.Name, p.ID)
		}
		return nil
	},
}

// ─── profile list ─────────────────────────────────────────────────────────────

var profileListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List saved profiles",
	Example: `  athmon profile list`,
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
		profiles, err := st.ListProfiles()
		if err != nil {
			return fmt.Errorf("listing profiles: %w", err)
		}
		if len(profiles) == 0 && resolveFormat(deps.Config.Format) == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No profiles saved. Create one with: athmon profile save <name>")
			return nil
		}

		t := &model.Table{Headers: []string{"name", "acute", "chronic", "estimators", "posthoc", "updated_at"}}
		for _, p := range profiles {
			t.Rows = append(t.Rows, []string{
				p.Name,
				fmt.Sprintf("%d", p.Acute),
				fmt.Sprintf("%d", p.Chronic),
				strings.Join(p.Estimators, ","),
				p.Posthoc,
				p.UpdatedAt.Format(time.RFC3339),
			})
		}
		result := newResult(model.KindTable, "profile list", t, len(profiles), started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

// ─── profile show ─────────────────────────────────────────────────────────────

var profileShowCmd = &cobra.Command{
	Use:     "show <name>",
	Short:   "Show every setting of a saved profile",
	Example: `  athmon profile show sprint
  athmon profile show sprint --format json`,
	Args: cobra.ExactArgs(1),
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
		p, ok, err := st.GetProfile(args[0])
		if err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}
		if !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		switch resolveFormat(deps.Config.Format) {
		case render.FormatJSON, render.FormatJSONL:
			enc := json.NewEncoder(w)
			if resolveFormat(deps.Config.Format) == render.FormatJSON {
				enc.SetIndent("", "  ")
			}
			err = enc.Encode(newResult(model.KindProfile, "profile show", p, 1, started))
		default:
			printKVTableTo(w, profileRows(p))
		}
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		return err
	},
}

// profileRows lists a profile's settings as key/value rows.
func profileRows(p store.Profile) [][]string {
	return [][]string{
		{"name", p.Name},
		{"id", p.ID},
		{"athlete column", p.Columns.Athlete},
		{"date column", p.Columns.Date},
		{"variable column", p.Columns.Variable},
		{"value column", p.Columns.Value},
		{"acute", fmt.Sprintf("%d", p.Acute)},
		{"chronic", fmt.Sprintf("%d", p.Chronic)},
		{"day_aggregate", p.DayAggregate},
		{"estimators", strings.Join(p.Estimators, ",")},
		{"group_estimators", strings.Join(p.GroupEstimators, ",")},
		{"posthoc", orNone(p.Posthoc)},
		{"na_session", p.NASession},
		{"na_day", p.NADay},
		{"rolling_fill", p.RollingFill},
		{"use_counts", fmt.Sprintf("%t", p.UseCounts)},
		{"max_levels", fmt.Sprintf("%d", p.MaxLevels)},
		{"created_at", p.CreatedAt.Format(time.RFC3339)},
		{"updated_at", p.UpdatedAt.Format(time.RFC3339)},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// ─── profile delete ───────────────────────────────────────────────────────────

var profileDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Short:   "Delete a saved profile",
	Example: `  athmon profile delete sprint`,
	Args:    cobra.ExactArgs(1),
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
		found, err := st.DeleteProfile(args[0])
		if err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		if !found {
			return fmt.Errorf("profile %q not found", args[0])
		}
		if !globalFlags.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted profile %q\n", args[0])
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileDeleteCmd)

	addPrepareFlags(profileSaveCmd)
}
