package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/domain"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

var reportJSONFlag string

// reportCmd represents the report command.
var reportCmd = newReportCmd()

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored coverage records",
		Long:  "Summarize coverage records from the reports directory, or export them as a versioned JSON document for external formatters.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return buildWorkflow().Report(cmd.Context(), domain.ReportArgs{
				Reports:  m.Path(viper.GetString(outputFlagName)),
				JSONPath: m.Path(reportJSONFlag),
			})
		},
	}

	cmd.Flags().StringVar(&reportJSONFlag, "json", "", "write the report data document to this path instead of printing")

	return cmd
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
