package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/model"
)

// estimatorDocs describes every name accepted by --estimators,
// --group-estimators, --aggregate and --posthoc.
var estimatorDocs = [][]string{
	{"estimator", "mean", "arithmetic mean of the non-missing values"},
	{"estimator", "sd", "sample standard deviation (NA with fewer than 2 values)"},
	{"estimator", "cv", "coefficient of variation sd/mean (NA when mean is 0)"},
	{"estimator", "sum", "sum of the non-missing values"},
	{"estimator", "min", "smallest non-missing value"},
	{"estimator", "max", "largest non-missing value"},
	{"estimator", "n", "number of non-missing values"},
	{"estimator", "median", "50th percentile"},
	{"estimator", "lower", "25th percentile"},
	{"estimator", "upper", "75th percentile"},
	{"estimator", "ewma", "exponentially weighted mean, alpha 2/(n+1)"},
	{"estimator", "qNN", "NN-th percentile, e.g. q10 or q90"},
	{"aggregate", "sum", "same-day records are added (default)"},
	{"aggregate", "mean", "same-day records are averaged"},
	{"aggregate", "max", "largest same-day record"},
	{"aggregate", "min", "smallest same-day record"},
	{"posthoc", "none", "no derived columns (default)"},
	{"posthoc", "ratios", "ACD = acute.mean-chronic.mean, ACR = acute.mean/chronic.mean, ES = ACD/chronic.sd"},
}

var estimatorsCmd = &cobra.Command{
	Use:   "estimators",
	Short: "List the built-in estimators, aggregates and posthoc transformations",
	Long: `List every name accepted by --estimators, --group-estimators, --aggregate
and --posthoc.

Rolling estimators produce one column per output, prefixed with the window:
--estimators mean,sd yields acute.mean, acute.sd, chronic.mean and chronic.sd.`,
	Example: `  athmon estimators
  athmon estimators --format json`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		started := time.Now()
		deps, err := buildDeps(cmd, nil)
		if err != nil {
			return err
		}
		defer finish(deps, &err)

		t := &model.Table{Headers: []string{"kind", "name", "description"}, Rows: estimatorDocs}
		result := newResult(model.KindEstimators, "estimators", t, len(t.Rows), started)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(estimatorsCmd)
}
