package kgschema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (editors often emit
// several per save) into a single reload.
const watchDebounce = 250 * time.Millisecond

// Watch blocks, reloading the catalog whenever a schema file under the
// loader's directory changes. A failed reload is logged and the previously
// published catalog stays in place. Watch returns when ctx is canceled or
// the underlying watcher fails.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer watcher.Close() //nolint:errcheck // Best-effort close on exit.

	if err := l.addWatchDirs(watcher); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !relevantEvent(event) {
				continue
			}

			// New schema directories must be watched too.
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(event.Name); addErr != nil {
						l.logger.Warn("watch new schema dir",
							slog.String("dir", event.Name),
							slog.Any("error", addErr),
						)
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil

			if _, reloadErr := l.Reload(ctx); reloadErr != nil {
				l.logger.Error("schema reload failed, keeping previous catalog",
					slog.String("dir", l.dir),
					slog.Any("error", reloadErr),
				)
			} else {
				l.logger.Info("schema catalog reloaded", slog.String("dir", l.dir))
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			return fmt.Errorf("%w: %w", ErrLoad, watchErr)
		}
	}
}

// addWatchDirs registers the schema root and each schema subdirectory.
// fsnotify watches are not recursive.
func (l *Loader) addWatchDirs(watcher *fsnotify.Watcher) error {
	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return watcher.Add(path)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return nil
}

// relevantEvent filters out events that cannot change the catalog.
func relevantEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}

	// Directory events carry no extension; let them through so new schema
	// directories get picked up.
	return strings.HasSuffix(base, ".yaml") || filepath.Ext(base) == ""
}
