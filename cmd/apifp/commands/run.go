package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

// RunCmd processes every configured folder once and exits.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every configured folder once",
	Long: `Enumerate each configured folder, submit every file to its endpoint,
wait for all jobs to finish, and print a summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		folders, err := loadFolders(cmd)
		if err != nil {
			if errors.IsFatal(err) {
				exitCountdown()
			}
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		processor := newProcessor(false, 0)
		result, err := processor.Run(ctx, folders.Folders)
		return finish(result, start, err)
	},
}
