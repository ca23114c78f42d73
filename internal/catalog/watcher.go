package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SeedWatcher reloads the product seed file into the catalog when it
// changes on disk, so serve mode picks up catalog edits without a restart.
type SeedWatcher struct {
	store    *Store
	seedPath string
	logger   *zap.Logger
	debounce time.Duration
}

// NewSeedWatcher creates a watcher for the given seed file.
func NewSeedWatcher(store *Store, seedPath string, logger *zap.Logger) *SeedWatcher {
	return &SeedWatcher{
		store:    store,
		seedPath: seedPath,
		logger:   logger.Named("seed-watcher"),
		debounce: 500 * time.Millisecond, // coalesce rapid editor saves
	}
}

// Run watches until ctx is cancelled. Watches the parent directory rather
// than the file itself, since editors commonly replace files on save.
func (w *SeedWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.seedPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watching seed file", zap.String("path", w.seedPath))

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.seedPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			n, err := w.store.SeedFromFile(ctx, w.seedPath)
			if err != nil {
				w.logger.Warn("seed reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("seed reloaded", zap.Int("products", n))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}
