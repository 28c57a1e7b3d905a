package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperoffice-ai/api-file-processor/api"
	"github.com/paperoffice-ai/api-file-processor/errors"
)

const (
	// settleDelay gives the server a moment between upload and first poll.
	settleDelay = 500 * time.Millisecond

	// pollPad is added to the server-directed poll interval.
	pollPad = 300 * time.Millisecond

	// replayPollInterval replaces the server-directed interval in replay
	// mode so benchmark timings stay comparable.
	replayPollInterval = 5 * time.Second

	// maxPolls caps the poll loop; a job still running after this many
	// polls is skipped rather than waited on forever.
	maxPolls = 30
)

// Runner executes job lifecycles for one folder. replay switches the
// benchmark behavior on: fixed poll interval, overwritten downloads, and
// originals left in place.
type Runner struct {
	client       *api.Client
	logger       *zap.SugaredLogger
	outputDir    string
	processedDir string
	replay       bool

	settle   time.Duration
	pad      time.Duration
	replayIv time.Duration
	pollCap  int
}

// NewRunner creates a lifecycle runner. Completed originals move into
// processedDir unless replay mode is on.
func NewRunner(client *api.Client, logger *zap.SugaredLogger, outputDir, processedDir string, replay bool) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{
		client:       client,
		logger:       logger,
		outputDir:    outputDir,
		processedDir: processedDir,
		replay:       replay,
		settle:       settleDelay,
		pad:          pollPad,
		replayIv:     replayPollInterval,
		pollCap:      maxPolls,
	}
}

// Run drives the job from uploaded through completion. The terminal state is
// recorded on the job; a non-nil error explains any state other than
// StateCompleted and carries its severity classification.
func (r *Runner) Run(ctx context.Context, j *Job) error {
	log := r.logger.With("job_id", j.ID, "file", j.FileName)

	uploadResult, err := r.client.UploadFile(ctx, j.AssignedHost, j.ID, j.FilePath)
	if err != nil {
		j.State = StateSkipped
		return errors.Wrapf(err, "upload of %q failed", j.FileName)
	}
	j.State = StateUploaded
	log.Infow("File uploaded", "status", uploadResult.Status)

	if err := r.wait(ctx, r.settle); err != nil {
		j.State = StateSkipped
		return err
	}

	j.State = StatePolling
	if err := r.poll(ctx, j, log); err != nil {
		return err
	}

	savedName, err := r.client.DownloadResult(ctx, j.DownloadLink, r.outputDir, j.FileName, r.replay)
	if err != nil {
		// The original stays in place so a later run can retry it.
		j.State = StateSkipped
		return errors.Wrapf(err, "download for %q failed", j.FileName)
	}
	log.Infow("Result saved", "output", savedName)

	if r.replay {
		j.State = StateCompleted
		return nil
	}
	// A file counts as processed only once its original is out of the way;
	// otherwise the next run would submit it again.
	if err := r.moveProcessed(j); err != nil {
		j.State = StateSkipped
		return err
	}
	j.State = StateCompleted
	return nil
}

// poll loops on the status endpoint until the job completes, fails, or the
// poll cap runs out.
func (r *Runner) poll(ctx context.Context, j *Job, log *zap.SugaredLogger) error {
	for i := 1; i <= r.pollCap; i++ {
		result, err := r.client.PollStatus(ctx, j.AssignedHost, j.ID)
		if err != nil {
			j.State = StateSkipped
			return errors.Wrapf(err, "status poll for %q failed", j.FileName)
		}

		status := result.Status
		// A rate-window rejection mid-poll is recoverable; the job keeps
		// running server-side, so keep polling.
		if status == api.StatusError && strings.Contains(result.Message, api.ErrorCodeRateWindow) {
			status = api.StatusProcessing
		}

		switch status {
		case api.StatusCompleted:
			j.DownloadLink = result.DownloadLink
			log.Infow("Job completed", "polls", i)
			return nil
		case api.StatusFailed:
			j.State = StateFailed
			return errors.Newf("processing of %q failed: %s", j.FileName, result.Message)
		case api.StatusError:
			j.State = StateSkipped
			return DecodePollError(result, j.FileName)
		case api.StatusQueued, api.StatusProcessing:
			log.Debugw("Job still running", "status", status, "poll", i, "next_call_in_seconds", result.NextCallInSeconds)
		default:
			j.State = StateSkipped
			return errors.Newf("job for %q reported unknown status %q, skipping", j.FileName, result.Status)
		}

		if err := r.wait(ctx, r.pollInterval(result)); err != nil {
			j.State = StateSkipped
			return err
		}
	}

	j.State = StateSkipped
	return errors.Newf("job for %q still running after %d polls, skipping", j.FileName, r.pollCap)
}

// DecodePollError classifies an error-status poll body.
func DecodePollError(result *api.JobStatusResult, fileName string) error {
	return errors.Wrapf(
		api.DecodeErrorBody(result.Code, result.Message, "status poll"),
		"job for %q", fileName)
}

// pollInterval derives the sleep before the next poll. The server dictates
// the interval; replay mode pins it for comparable benchmark runs.
func (r *Runner) pollInterval(result *api.JobStatusResult) time.Duration {
	if r.replay {
		return r.replayIv
	}
	return time.Duration(result.NextCallInSeconds)*time.Second + r.pad
}

func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// moveProcessed relocates the completed original into the processed
// subfolder under a timestamp-prefixed name so repeated filenames never
// collide.
func (r *Runner) moveProcessed(j *Job) error {
	target := filepath.Join(r.processedDir, api.TimestampPrefix(time.Now())+"_"+j.FileName)
	if err := os.Rename(j.FilePath, target); err != nil {
		return errors.Wrapf(err, "failed to move processed file %q", j.FileName)
	}
	r.logger.Debugw("Original moved", "file", j.FileName, "target", target)
	return nil
}
