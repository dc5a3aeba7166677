package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "paratest",
	Short: "Thread-safety tooling for parallel test execution",
	Long: `paratest classifies test functions as thread-safe or thread-unsafe by
statically inspecting their call graphs, and reports which tests can be
run concurrently on multiple OS threads.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool(verboseFlagName)
		configureLogger("", verbose)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func bindFlagToConfig(flags *pflag.FlagSet, flagName, configKey string) {
	if err := viper.BindPFlag(configKey, flags.Lookup(flagName)); err != nil {
		slog.Warn("could not bind flag to config", "flag", flagName, "error", err)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringP(threadsFlagName, "t", defaultThreads,
		"number of parallel threads per test (or \"auto\")")
	flags.IntP(iterationsFlagName, "i", defaultIterations,
		"number of iterations each thread runs")
	flags.StringP(outputFlagName, "o", defaultReportsDir,
		"directory for run reports")
	flags.BoolP(verboseFlagName, "v", false, "enable verbose output")

	bindFlagToConfig(flags, threadsFlagName, threadsConfigKey)
	bindFlagToConfig(flags, iterationsFlagName, iterationsConfigKey)
	bindFlagToConfig(flags, outputFlagName, outputFlagName)
}
