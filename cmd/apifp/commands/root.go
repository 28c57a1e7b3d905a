// Package commands implements the apifp subcommands. Shared bootstrap and
// the fatal-exit countdown live here; each subcommand wires its own
// processor.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/paperoffice-ai/api-file-processor/api"
	"github.com/paperoffice-ai/api-file-processor/config"
	"github.com/paperoffice-ai/api-file-processor/errors"
	"github.com/paperoffice-ai/api-file-processor/folder"
	"github.com/paperoffice-ai/api-file-processor/logger"
	"github.com/paperoffice-ai/api-file-processor/quota"
)

// settings holds the runtime configuration loaded during Bootstrap.
var settings *config.Settings

// Bootstrap loads runtime settings and initializes the global logger. It
// runs once from the root command's PersistentPreRunE.
func Bootstrap(verbosity int) error {
	settings = config.LoadSettings()

	level := logger.VerbosityToLevel(verbosity, settings.LogLevel)
	err := logger.Initialize(logger.Options{
		Level:       strings.ToUpper(level.String()),
		FilePath:    settings.LogFile,
		MaxSizeMB:   settings.LogFileMaxMB,
		BackupCount: settings.LogFileBackupCount,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, notice := range settings.Notices {
		logger.Warnw("Configuration fallback", "notice", notice)
	}
	if settings.APIKey == "" {
		logger.Infow("No API key configured, running in guest tier")
	}
	return nil
}

// loadFolders reads the folder settings file named by --config.
func loadFolders(cmd *cobra.Command) (*config.FolderSettings, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFolderSettings(path)
}

// newProcessor builds a processor from the loaded settings.
func newProcessor(replay bool, replayCount int) *folder.Processor {
	client := api.NewClient(settings.APIKey, logger.Logger)
	return folder.NewProcessor(client, logger.Logger, folder.Options{
		Workers:     settings.Workers,
		Replay:      replay,
		ReplayCount: replayCount,
		Limiter:     quota.NewSubmissionLimiter(settings.SubmissionsPerMinute),
		Governor:    quota.NewGovernor(logger.Logger, true),
	})
}

// finish prints the run summary and, for fatal errors, holds the terminal
// open for a visible countdown before the process exits nonzero.
func finish(result *folder.RunResult, start time.Time, err error) error {
	if result != nil {
		printSummary(result, start)
	}
	if err == nil {
		return nil
	}
	logger.Errorw("Run failed", "error", err)
	if errors.IsFatal(err) {
		exitCountdown()
	}
	return err
}

func printSummary(result *folder.RunResult, start time.Time) {
	state := "completed"
	if result.Aborted {
		state = "aborted"
	}
	pterm.DefaultSection.Println("Run " + state)
	pterm.DefaultTable.WithData(pterm.TableData{
		{"Folders processed", fmt.Sprintf("%d", result.FoldersProcessed)},
		{"Files processed", fmt.Sprintf("%d", result.FilesProcessed)},
		{"Started", start.Format("2006-01-02 15:04:05")},
		{"Finished", start.Add(result.Elapsed).Format("2006-01-02 15:04:05")},
		{"Elapsed", result.Elapsed.Round(time.Millisecond).String()},
	}).Render()
}

// exitCountdown counts down before a fatal exit so the reason stays
// readable on consoles that close with the process.
func exitCountdown() {
	for i := 10; i >= 0; i-- {
		pterm.Printf("\rExiting in %2d seconds...", i)
		time.Sleep(time.Second)
	}
	pterm.Println()
}
