package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/domain"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

var runShardFlag string
var runParallelFlag int
var runBackendFlag string
var runTrackBlocksFlag bool
var runRootsFlag []string

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.lua> [scripts...]",
		Short: "Run Lua scripts under coverage",
		Long:  runLongDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shardIndex, totalShards := parseShardFlag(runShardFlag)

			backend, err := m.ParseBackend(viper.GetString(runBackendConfigKey))
			if err != nil {
				return err
			}

			config := m.SessionConfig{
				IncludePatterns: viper.GetStringSlice(includeConfigKey),
				ExcludePatterns: viper.GetStringSlice(excludeConfigKey),
				TrackBlocks:     viper.GetBool(runTrackBlocksConfigKey),
				Backend:         backend,
				Policy: m.ClassifierPolicy{
					KeywordLinesExecutable: viper.GetBool(keywordLinesConfigKey),
				},
				Weights: m.DefaultOverallWeights(),
			}

			roots := make([]m.Path, 0, len(runRootsFlag))
			for _, root := range runRootsFlag {
				roots = append(roots, m.Path(root))
			}

			return buildWorkflow().Run(cmd.Context(), domain.RunArgs{
				Scripts:     parsePaths(args),
				Roots:       roots,
				Config:      config,
				Reports:     m.Path(viper.GetString(outputFlagName)),
				ShardIndex:  shardIndex,
				TotalShards: totalShards,
				Threads:     viper.GetInt(runParallelConfigKey),
			})
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel workers for static analysis")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().StringVarP(&runBackendFlag, runBackendFlagName, "b", viper.GetString(runBackendConfigKey), "tracker backend: instrument or tracehook")
	bindFlagToConfig(cmd.Flags().Lookup(runBackendFlagName), runBackendConfigKey)

	cmd.Flags().BoolVar(&runTrackBlocksFlag, runTrackBlocksFlagName, viper.GetBool(runTrackBlocksConfigKey), "track block and function coverage in addition to lines")
	bindFlagToConfig(cmd.Flags().Lookup(runTrackBlocksFlagName), runTrackBlocksConfigKey)

	cmd.Flags().StringArrayVar(&runRootsFlag, "root", nil, "directory to pre-scan for trackable sources (default .)")
	cmd.Flags().StringVarP(&runShardFlag, "shard", "s", "", "shard index and total shard count in the format INDEX/TOTAL (e.g., 0/3)")
}

func parseShardFlag(shard string) (int, int) {
	if shard == "" {
		return 0, 1
	}

	var index, total int

	_, err := fmt.Sscanf(shard, "%d/%d", &index, &total)
	if err != nil || total <= 0 || index < 0 || index >= total {
		return 0, 1
	}

	return index, total
}
