package folder

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/paperoffice-ai/api-file-processor/config"
	"github.com/paperoffice-ai/api-file-processor/errors"
)

// watchDebounce coalesces the event bursts a single file drop produces
// into one folder re-run.
const watchDebounce = 2 * time.Second

// Watcher keeps folders processed continuously: one initial pass, then a
// re-run of any folder that receives new files.
type Watcher struct {
	processor *Processor
	logger    *zap.SugaredLogger
	folders   []config.FolderSpec
	debounce  time.Duration
}

// NewWatcher creates a watcher over the given folders.
func NewWatcher(p *Processor, logger *zap.SugaredLogger, folders []config.FolderSpec) *Watcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Watcher{
		processor: p,
		logger:    logger,
		folders:   folders,
		debounce:  watchDebounce,
	}
}

// Watch runs until the context is cancelled or a fatal error stops the run.
func (w *Watcher) Watch(ctx context.Context) error {
	if _, err := w.processor.Run(ctx, w.folders); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create filesystem watcher")
	}
	defer fsw.Close()

	for _, spec := range w.folders {
		if err := fsw.Add(spec.FolderPath); err != nil {
			w.logger.Warnw("Cannot watch folder", "folder", spec.FolderPath, "error", err)
			continue
		}
		w.logger.Infow("Watching folder", "folder", spec.FolderPath)
	}

	pending := make(chan config.FolderSpec, len(w.folders))
	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	trigger := func(spec config.FolderSpec) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[spec.FolderPath]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[spec.FolderPath] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(timers, spec.FolderPath)
			mu.Unlock()
			select {
			case pending <- spec:
			default:
				// A re-run for this folder is already queued.
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.Contains(event.Name, ProcessedDirName) {
				continue
			}
			if spec, ok := w.matchFolder(event.Name); ok {
				w.logger.Debugw("Folder changed", "folder", spec.FolderPath, "event", event.Name)
				trigger(spec)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Watcher error", "error", err)

		case spec := <-pending:
			w.logger.Infow("Re-running folder", "folder", spec.FolderPath)
			if _, err := w.processor.Run(ctx, []config.FolderSpec{spec}); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) matchFolder(path string) (config.FolderSpec, bool) {
	for _, spec := range w.folders {
		// Prefix match on the path boundary only, so /data/in never
		// claims events from a sibling like /data/input2.
		if path == spec.FolderPath || strings.HasPrefix(path, spec.FolderPath+string(os.PathSeparator)) {
			return spec, true
		}
	}
	return config.FolderSpec{}, false
}
