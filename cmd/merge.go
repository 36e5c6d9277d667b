package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/domain"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge sharded coverage records into a single set",
		Long:  "Merge records from shard_* subdirectories into a single record set in the reports directory. Counts sum and flags combine; diverging file revisions fail the merge.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return buildWorkflow().Merge(cmd.Context(), domain.MergeArgs{
				Reports: m.Path(viper.GetString(outputFlagName)),
				Threads: viper.GetInt(runParallelConfigKey),
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
