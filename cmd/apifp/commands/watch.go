package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperoffice-ai/api-file-processor/errors"
	"github.com/paperoffice-ai/api-file-processor/folder"
	"github.com/paperoffice-ai/api-file-processor/logger"
)

// WatchCmd keeps processing folders until interrupted.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process folders continuously as new files arrive",
	Long: `Run one full pass over every configured folder, then watch each input
folder and re-process it whenever files are added. Stop with Ctrl-C.`,
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

		processor := newProcessor(false, 0)
		watcher := folder.NewWatcher(processor, logger.Logger, folders.Folders)

		err = watcher.Watch(ctx)
		if err != nil {
			logger.Errorw("Watch stopped", "error", err)
			if errors.IsFatal(err) {
				exitCountdown()
			}
			return err
		}
		logger.Infow("Watch stopped")
		return nil
	},
}
