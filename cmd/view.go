package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/domain"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse per-line coverage of stored records",
		Long:  "Browse stored coverage records line by line: gray lines cannot run, red lines never ran, amber lines ran unvalidated, green lines were validated by assertions.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return buildWorkflow().View(cmd.Context(), domain.ViewArgs{
				Reports: m.Path(viper.GetString(outputFlagName)),
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
