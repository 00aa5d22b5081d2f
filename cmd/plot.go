package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/chart"
	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/render"
)

var plotFlags struct {
	Athlete   string
	Variable  string
	Level     string
	Column    string
	LastN     int
	Kind      string
	Reference string
	Width     int
	Height    int
	MaxBars   int
}

var plotCmd = &cobra.Command{
	Use:   "plot <file>",
	Short: "Chart one athlete's prepared stream in the terminal",
	Long: `Prepare the file and chart one athlete, variable and column.

--kind line draws a multi-line ASCII chart with labelled axes, --kind bar one
bar per day, and --kind table prints the points in the current --format.
--reference overlays a group-summary output (e.g. median) computed across
all athletes for the same column and day.

NaN values appear as gaps in line charts and are skipped by bar charts.
Width auto-detects from $COLUMNS (falls back to 80).`,
	Example: `  athmon plot load.csv --athlete A --variable load
  athmon plot load.csv --athlete A --variable load --column acute.mean --reference median
  athmon plot load.csv --athlete A --variable load --column ACR --kind bar --last-n 14
  athmon plot rpe.csv --nominal --athlete A --variable rpe --level High --column chronic.mean`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if plotFlags.Athlete == "" || plotFlags.Variable == "" {
			return fmt.Errorf("--athlete and --variable are required")
		}
		started := time.Now()
		deps, err := buildPrepareDeps(cmd)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		p, err := runPipeline(cmd.Context(), deps, args[0], "plot")
		if err != nil {
			return err
		}
		s, err := chart.Slice(p, chart.Selection{
			Athlete:   plotFlags.Athlete,
			Variable:  plotFlags.Variable,
			Level:     plotFlags.Level,
			Column:    plotFlags.Column,
			LastN:     plotFlags.LastN,
			Reference: plotFlags.Reference,
		})
		if err != nil {
			return err
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		switch plotFlags.Kind {
		case "line", "":
			err = chart.Plot(w, s, chart.PlotOptions{Width: plotFlags.Width, Height: plotFlags.Height})
		case "bar":
			err = chart.Bar(w, s, chart.BarOptions{Width: plotFlags.Width, MaxBars: plotFlags.MaxBars})
		case "table":
			result := newResult(model.KindTable, "plot", seriesTable(s), len(s.Points), started)
			err = render.Render(w, result, resolveFormat(deps.Config.Format))
		default:
			err = fmt.Errorf("unknown --kind %q (use line, bar or table)", plotFlags.Kind)
		}
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		return err
	},
}

// seriesTable lays a chart series out as a generic table.
func seriesTable(s chart.Series) *model.Table {
	t := &model.Table{Headers: []string{"day", "value"}}
	if s.Ref != nil {
		t.Headers = append(t.Headers, s.RefName)
	}
	for i, pt := range s.Points {
		row := []string{pt.Label, render.RawValue(pt.Value)}
		if s.Ref != nil {
			row = append(row, render.RawValue(s.Ref[i]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func init() {
	rootCmd.AddCommand(plotCmd)
	addPrepareFlags(plotCmd)

	f := plotCmd.Flags()
	f.StringVar(&plotFlags.Athlete, "athlete", "", "athlete to chart (required)")
	f.StringVar(&plotFlags.Variable, "variable", "", "variable to chart (required)")
	f.StringVar(&plotFlags.Level, "level", "", "level to chart (nominal data only)")
	f.StringVar(&plotFlags.Column, "column", "value", "column: value or an estimator/posthoc column such as acute.mean")
	f.IntVar(&plotFlags.LastN, "last-n", 0, "chart only the most recent N days (0 = all)")
	f.StringVar(&plotFlags.Kind, "kind", "line", "chart kind: line|bar|table")
	f.StringVar(&plotFlags.Reference, "reference", "", "overlay a group estimator output, e.g. median")
	f.IntVar(&plotFlags.Width, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	f.IntVar(&plotFlags.Height, "height", 12, "line chart height in rows")
	f.IntVar(&plotFlags.MaxBars, "max-bars", 0,
		"maximum bars to render, keeping the last N (0 = no limit)")
}
