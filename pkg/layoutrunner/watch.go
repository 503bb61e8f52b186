package layoutrunner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// DefaultWatchDebounce is the quiet period after the last change before a re-run.
	DefaultWatchDebounce = 500 * time.Millisecond

	watcherCreateErrorTemplateConstant = "layoutrunner.watch.create: %w"
	watcherAddErrorTemplateConstant    = "layoutrunner.watch.add %s: %w"
	watchStartedMessageConstant        = "watching scenario file"
	watchChangeMessageConstant         = "scenario file changed"
	watchRunFailedMessageConstant      = "watch run failed"
	watchErrorMessageConstant          = "file watcher error"
)

// WatchFile calls onChange after filePath is written, created, or renamed, once
// debounce has passed without further events. Runs happen on the calling goroutine
// so they never overlap. WatchFile blocks until executionContext is canceled.
func WatchFile(executionContext context.Context, logger *zap.Logger, filePath string, debounce time.Duration, onChange func(context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return fmt.Errorf(watcherCreateErrorTemplateConstant, watcherError)
	}
	defer watcher.Close()

	absolutePath, absoluteError := filepath.Abs(filePath)
	if absoluteError != nil {
		return fmt.Errorf(watcherAddErrorTemplateConstant, filePath, absoluteError)
	}
	// Editors often replace files instead of writing in place, so the directory is watched.
	directory := filepath.Dir(absolutePath)
	if addError := watcher.Add(directory); addError != nil {
		return fmt.Errorf(watcherAddErrorTemplateConstant, directory, addError)
	}
	logger.Info(watchStartedMessageConstant, zap.String(pathFieldNameConstant, absolutePath))

	debounceTimer := time.NewTimer(debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case <-executionContext.Done():
			return nil
		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if filepath.Clean(event.Name) != absolutePath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounceTimer.Reset(debounce)
			}
		case <-debounceTimer.C:
			logger.Info(watchChangeMessageConstant, zap.String(pathFieldNameConstant, absolutePath))
			if runError := onChange(executionContext); runError != nil {
				logger.Warn(watchRunFailedMessageConstant, zap.Error(runError))
			}
		case watchError, open := <-watcher.Errors:
			if !open {
				return nil
			}
			logger.Warn(watchErrorMessageConstant, zap.Error(watchError))
		}
	}
}
