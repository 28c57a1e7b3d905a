package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paperoffice-ai/api-file-processor/cmd/apifp/commands"
	"github.com/paperoffice-ai/api-file-processor/config"
	"github.com/paperoffice-ai/api-file-processor/logger"
)

var rootCmd = &cobra.Command{
	Use:   "apifp",
	Short: "apifp - PaperOffice API file processor",
	Long: `apifp - submit local folders to the PaperOffice document processing API.

Each configured folder is enumerated, every file is submitted as a job,
polled until the server finishes, and the processed result is downloaded
into the folder's output directory. Completed originals move into the
api_processed_files subfolder.

Available commands:
  run     - Process every configured folder once
  watch   - Process folders continuously as new files arrive
  bench   - Replay the first file repeatedly to benchmark an endpoint
  version - Show version information

Examples:
  apifp run                          # One pass over all folders
  apifp run --config ./folders.json  # Explicit folder settings file
  apifp watch                        # Keep processing until Ctrl-C
  apifp bench --count 25             # Submit the first file 25 times`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		return commands.Bootstrap(verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().String("config", config.DefaultFolderSettingsFile, "Path to the folder settings file")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.BenchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
