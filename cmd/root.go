// Package cmd provides the root command and CLI setup for lunacov.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	"lunacov.dev/pkg/lunacov/internal/controller"
	"lunacov.dev/pkg/lunacov/internal/domain"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var recordStore adapter.RecordStore
var ui controller.UI

// workflow, when set, replaces the workflow assembled by buildWorkflow.
// Tests use it to inject a double.
var workflow domain.Workflow

// reportsOutputDirFlag is a root-level flag shared by commands that read or
// write coverage records.
var reportsOutputDirFlag string

// noCacheFlag disables the persisted analysis cache when set.
var noCacheFlag bool

// excludePatterns and includePatterns filter files for applicable commands.
var excludePatterns []string
var includePatterns []string

var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	recordStore = adapter.NewRecordStore()
}

// buildWorkflow assembles the domain layer from the current configuration.
// It runs per command invocation because policy and cache location depend on
// resolved flags.
func buildWorkflow() domain.Workflow {
	if workflow != nil {
		return workflow
	}

	policy := m.ClassifierPolicy{
		KeywordLinesExecutable: viper.GetBool(keywordLinesConfigKey),
	}

	cacheDir := ""
	if !viper.GetBool(noCacheFlagName) {
		cacheDir = filepath.Join(viper.GetString(outputFlagName), "cache")
	}

	analyzer := domain.NewAnalyzer(fsAdapter, adapter.NewAnalysisCache(cacheDir), policy)

	return domain.NewWorkflow(fsAdapter, recordStore, ui, analyzer, func() adapter.ScriptEngine {
		return adapter.NewLuaEngine()
	})
}

const pathPatternsHelp = `File filters are regular expressions matched against paths:
  - --include 'src/.*'       only track files under src/
  - --exclude 'vendor/.*'    skip vendored sources (can be repeated)`

const rootLongDescription = `Lunacov measures line, block and function coverage of Lua code. It tells
executed lines apart from lines whose outcome a passing assertion actually
validated, so a test suite cannot claim credit for code it merely touched.

` + pathPatternsHelp

const runLongDescription = `Run Lua scripts under coverage and store the per-file records (default
output: ` + defaultReportsDir + `).

` + pathPatternsHelp

const listLongDescription = `List source files with their executable-line, block and function counts.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lunacov",
		Short: "Lua coverage tool",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for coverage records",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, viper.GetBool(noCacheFlagName), "disable the persisted static-analysis cache")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "include only files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeFlagName), includeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values
// feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// parsePaths converts positional arguments to paths, defaulting to the
// current directory.
func parsePaths(args []string) []m.Path {
	if len(args) == 0 {
		return []m.Path{"."}
	}

	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
