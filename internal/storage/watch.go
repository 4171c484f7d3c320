package storage

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called with the record keys edited outside this process.
type ReloadCallback func(keys []string)

const reloadDebounce = 200 * time.Millisecond

// Watch observes the FS data directory until ctx is cancelled and calls cb
// once per burst of external edits. Writes made through f itself are ignored.
func Watch(ctx context.Context, f *FS, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(f.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", f.Root()))

	pending := make(map[string]struct{})
	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(reloadDebounce)
			debounceCh = debounce.C
		} else {
			debounce.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			var changed []string
			for key := range pending {
				if f.ExternallyChanged(key) {
					changed = append(changed, key)
				}
			}
			clear(pending)
			if len(changed) == 0 {
				continue
			}
			sort.Strings(changed)
			logger.Info("watcher: external edit detected", slog.Any("keys", changed))
			if cb != nil {
				cb(changed)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := f.keyForPath(ev.Name)
			if !ok || !knownKey(key) {
				continue
			}
			pending[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func knownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
