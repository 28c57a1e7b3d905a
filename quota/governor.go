// Package quota keeps the processor inside the API's rate limits. The
// Governor reacts to the remaining-request counters the server returns on
// every job add; the SubmissionLimiter proactively paces job submission.
package quota

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

// Known rate windows and their durations. The server reports remaining
// requests per window name.
var windows = []struct {
	name     string
	duration time.Duration
}{
	{"1_minute", time.Minute},
	{"1_hour", time.Hour},
}

// Governor inspects the remaining-request counters after each job add and
// blocks until an exhausted window has passed.
type Governor struct {
	logger      *zap.SugaredLogger
	interactive bool

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor. interactive enables the terminal countdown
// while waiting out a window.
func NewGovernor(logger *zap.SugaredLogger, interactive bool) *Governor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Governor{
		logger:      logger,
		interactive: interactive,
		sleep:       sleepContext,
	}
}

// Apply blocks until submission may continue. A nil or empty counter map
// means the server gave no guidance and submission continues immediately.
// An exhausted window outside the known set cannot be waited out and ends
// the folder.
func (g *Governor) Apply(ctx context.Context, remaining map[string]int) error {
	if len(remaining) == 0 {
		return nil
	}

	for _, w := range windows {
		count, ok := remaining[w.name]
		if !ok || count > 0 {
			continue
		}
		g.logger.Infow("Rate window exhausted, waiting",
			"window", w.name, "wait", w.duration)
		if err := g.countdown(ctx, w.name, w.duration); err != nil {
			return err
		}
		return nil
	}

	for name, count := range remaining {
		if count == 0 && !isKnownWindow(name) {
			return errors.Wrapf(errors.ErrEndpointFailure,
				"rate window %q exhausted with unknown duration", name)
		}
	}
	return nil
}

func isKnownWindow(name string) bool {
	for _, w := range windows {
		if w.name == name {
			return true
		}
	}
	return false
}

// countdown waits out the window in one-second steps so the wait stays
// responsive to cancellation and the remaining time can be shown.
func (g *Governor) countdown(ctx context.Context, window string, total time.Duration) error {
	var spinner *pterm.SpinnerPrinter
	if g.interactive {
		spinner, _ = pterm.DefaultSpinner.Start("Waiting for rate window " + window)
	}

	for remaining := total; remaining > 0; remaining -= time.Second {
		if spinner != nil {
			spinner.UpdateText(pterm.Sprintf("Rate window %s: resuming in %s", window, remaining.Round(time.Second)))
		}
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if err := g.sleep(ctx, step); err != nil {
			if spinner != nil {
				spinner.Fail("Wait cancelled")
			}
			return err
		}
	}

	if spinner != nil {
		spinner.Success("Rate window " + window + " passed")
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SubmissionLimiter paces job submission at a fixed number of submissions
// per minute. The zero value and a rate of 0 both mean unlimited.
type SubmissionLimiter struct {
	limiter *rate.Limiter
}

// NewSubmissionLimiter creates a limiter allowing perMinute submissions per
// minute. perMinute <= 0 disables pacing.
func NewSubmissionLimiter(perMinute int) *SubmissionLimiter {
	if perMinute <= 0 {
		return &SubmissionLimiter{}
	}
	return &SubmissionLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Wait blocks until the next submission is allowed.
func (l *SubmissionLimiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
