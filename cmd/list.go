package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List source files and their static analysis counts",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildWorkflow().List(cmd.Context(), domain.ListArgs{
				Paths:   parsePaths(args),
				Include: viper.GetStringSlice(includeConfigKey),
				Exclude: viper.GetStringSlice(excludeConfigKey),
				Threads: viper.GetInt(runParallelConfigKey),
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
