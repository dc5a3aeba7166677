package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the paratest version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("paratest " + buildVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(unknown)"
	}

	return info.Main.Version
}
