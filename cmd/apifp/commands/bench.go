package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperoffice-ai/api-file-processor/errors"
	"github.com/paperoffice-ai/api-file-processor/logger"
)

// defaultBenchCount applies when neither --count nor the settings file's
// tests_amount provide a repetition count.
const defaultBenchCount = 10

// BenchCmd replays the first file of each folder to benchmark an endpoint.
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Replay the first file repeatedly to benchmark an endpoint",
	Long: `Submit the first file of each configured folder N times with a fixed
poll interval. Downloads overwrite each other and originals stay in place, so
repeated runs leave the folder unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		folders, err := loadFolders(cmd)
		if err != nil {
			if errors.IsFatal(err) {
				exitCountdown()
			}
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			count = folders.TestsAmount
		}
		if count <= 0 {
			count = defaultBenchCount
		}
		logger.Infow("Starting benchmark run", "repetitions", count)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		processor := newProcessor(true, count)
		result, err := processor.Run(ctx, folders.Folders)
		return finish(result, start, err)
	},
}

func init() {
	BenchCmd.Flags().IntP("count", "n", 0, "Repetitions of the first file (default from tests_amount in the settings file)")
}
