package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/athmon/internal/model"
)

// Release metadata, stamped at build time:
//
//	go build -ldflags "-X github.com/derickschaefer/athmon/cmd.Version=v0.2.0
//	                   -X github.com/derickschaefer/athmon/cmd.BuildTime=2026-02-16T12:00:00Z"
var (
	Version   = "v0.1.0"
	BuildTime = ""
)

type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		BuildTime: BuildTime,
	}
}

// table lays the build metadata out as field/value rows for the tabular
// renderers.
func (v versionInfo) table() *model.Table {
	t := &model.Table{Headers: []string{"field", "value"}}
	t.Rows = [][]string{
		{"version", v.Version},
		{"go", v.GoVersion},
		{"platform", v.GOOS + "/" + v.GOARCH},
	}
	if v.BuildTime != "" {
		t.Rows = append(t.Rows, []string{"built", v.BuildTime})
	}
	return t
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the athmon version and build information",
	Long: `Print the release, Go toolchain and platform athmon was built with.

Without --format a single line is printed. json and jsonl return the
metadata as an object; the tabular formats list it field by field.`,
	Example: `  athmon version
  athmon version --format json | jq -r .data.version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		info := currentVersion()
		if globalFlags.Format == "" {
			line := fmt.Sprintf("athmon %s (%s, %s/%s)", info.Version, info.GoVersion, info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				line += " built " + info.BuildTime
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		}

		var data interface{} = info.table()
		kind := model.KindTable
		if globalFlags.Format == "json" || globalFlags.Format == "jsonl" {
			data, kind = info, "version"
		}
		return emit(cmd.OutOrStdout(), newResult(kind, "version", data, 1, started), globalFlags.Format)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
