// Package folder orchestrates processing runs: it enumerates the files of
// each configured folder, submits them sequentially, and drives the per-file
// lifecycles concurrently behind a bounded worker cap.
package folder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/paperoffice-ai/api-file-processor/api"
	"github.com/paperoffice-ai/api-file-processor/config"
	"github.com/paperoffice-ai/api-file-processor/errors"
	"github.com/paperoffice-ai/api-file-processor/job"
	"github.com/paperoffice-ai/api-file-processor/quota"
)

// ProcessedDirName is the subfolder inside each input folder that receives
// completed originals. It is always excluded from enumeration.
const ProcessedDirName = "api_processed_files"

// Options configures a processing run.
type Options struct {
	// Workers caps concurrent lifecycles per folder.
	Workers int

	// Replay switches benchmark mode on: the first file is submitted
	// ReplayCount times, downloads overwrite, originals stay put.
	Replay      bool
	ReplayCount int

	Limiter  *quota.SubmissionLimiter
	Governor *quota.Governor
}

// RunResult summarizes a processing run.
type RunResult struct {
	FilesProcessed   int64
	FoldersProcessed int64
	Aborted          bool
	Elapsed          time.Duration
}

// Processor runs folders sequentially while the files inside each folder
// are processed concurrently. A fatal error anywhere stops further
// submission everywhere; in-flight lifecycles always run to completion.
type Processor struct {
	client   *api.Client
	logger   *zap.SugaredLogger
	workers  int
	replay   bool
	replayN  int
	limiter  *quota.SubmissionLimiter
	governor *quota.Governor

	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	runAbort         atomic.Bool

	mu       sync.Mutex
	fatalErr error
}

// NewProcessor creates a processor over the given API client.
func NewProcessor(client *api.Client, logger *zap.SugaredLogger, opts Options) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Governor == nil {
		opts.Governor = quota.NewGovernor(logger, false)
	}
	return &Processor{
		client:   client,
		logger:   logger,
		workers:  opts.Workers,
		replay:   opts.Replay,
		replayN:  opts.ReplayCount,
		limiter:  opts.Limiter,
		governor: opts.Governor,
	}
}

// Run processes every configured folder once.
func (p *Processor) Run(ctx context.Context, folders []config.FolderSpec) (*RunResult, error) {
	start := time.Now()

	for _, spec := range folders {
		if p.runAbort.Load() || ctx.Err() != nil {
			break
		}
		p.processFolder(ctx, spec)
	}

	result := &RunResult{
		FilesProcessed:   p.filesProcessed.Load(),
		FoldersProcessed: p.foldersProcessed.Load(),
		Aborted:          p.runAbort.Load(),
		Elapsed:          time.Since(start),
	}

	p.mu.Lock()
	err := p.fatalErr
	p.mu.Unlock()
	return result, err
}

// processFolder submits every file of one folder and waits for all of its
// lifecycles to finish before returning.
func (p *Processor) processFolder(ctx context.Context, spec config.FolderSpec) {
	log := p.logger.With("folder", spec.FolderPath)

	info, err := os.Stat(spec.FolderPath)
	if err != nil || !info.IsDir() {
		log.Warnw("Input folder missing, skipping", "error", err)
		return
	}
	if err := os.MkdirAll(spec.OutputFolder, 0o755); err != nil {
		log.Errorw("Cannot create output folder", "error", err)
		return
	}
	processedDir := filepath.Join(spec.FolderPath, ProcessedDirName)
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		log.Errorw("Cannot create processed subfolder", "error", err)
		return
	}

	files, err := p.enumerate(spec, processedDir)
	if err != nil {
		log.Errorw("Cannot enumerate folder", "error", err)
		return
	}
	if len(files) == 0 {
		log.Infow("No files to process")
		p.foldersProcessed.Add(1)
		return
	}
	log.Infow("Processing folder", "files", len(files), "workers", p.workers)

	runner := job.NewRunner(p.client, p.logger, spec.OutputFolder, processedDir, p.replay)

	var folderAbort atomic.Bool
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for _, filePath := range files {
		if folderAbort.Load() || p.runAbort.Load() || ctx.Err() != nil {
			break
		}

		if err := p.limiter.Wait(ctx); err != nil {
			break
		}

		addResult, err := p.client.AddJob(ctx, spec.Endpoint.URL, spec.Endpoint.Payload)
		if err != nil {
			if p.classify(err, &folderAbort, log) {
				break
			}
			log.Warnw("Skipping file after job add failure",
				"file", filepath.Base(filePath), "error", err)
			continue
		}

		if err := p.governor.Apply(ctx, addResult.RemainingRequests); err != nil {
			p.classify(err, &folderAbort, log)
			break
		}

		j := &job.Job{
			ID:           addResult.JobID,
			AssignedHost: addResult.AssignedHost,
			FilePath:     filePath,
			FileName:     filepath.Base(filePath),
			State:        job.StateAdded,
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(j *job.Job) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := runner.Run(ctx, j); err != nil {
				if !p.classify(err, &folderAbort, log) {
					log.Warnw("File not processed",
						"file", j.FileName, "state", j.State.String(), "error", err)
				}
			}
			if j.State == job.StateCompleted {
				p.filesProcessed.Add(1)
			}
		}(j)
	}

	wg.Wait()
	p.foldersProcessed.Add(1)
}

// classify routes an error into the severity taxonomy. Returns true when
// the error ends the folder (or the whole run); file-transient errors
// return false and are the caller's to log.
func (p *Processor) classify(err error, folderAbort *atomic.Bool, log *zap.SugaredLogger) bool {
	switch {
	case errors.IsFatal(err):
		p.recordFatal(err)
		folderAbort.Store(true)
		log.Errorw("Fatal error, aborting run", "error", err)
		return true
	case errors.IsFolderFatal(err):
		folderAbort.Store(true)
		log.Errorw("Endpoint failure, aborting folder", "error", err)
		return true
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		folderAbort.Store(true)
		return true
	default:
		return false
	}
}

func (p *Processor) recordFatal(err error) {
	p.runAbort.Store(true)
	p.mu.Lock()
	if p.fatalErr == nil {
		p.fatalErr = err
	}
	p.mu.Unlock()
}

// enumerate lists the folder's regular files in sorted order, descending
// into subfolders when configured and always skipping the processed
// subfolder. Replay mode repeats the first file instead.
func (p *Processor) enumerate(spec config.FolderSpec, processedDir string) ([]string, error) {
	var files []string

	if spec.Recursive {
		err := filepath.WalkDir(spec.FolderPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == processedDir {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(spec.FolderPath)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				files = append(files, filepath.Join(spec.FolderPath, entry.Name()))
			}
		}
	}
	sort.Strings(files)

	if p.replay && len(files) > 0 {
		first := files[0]
		count := p.replayN
		if count <= 0 {
			count = 1
		}
		files = make([]string, count)
		for i := range files {
			files[i] = first
		}
	}
	return files, nil
}
