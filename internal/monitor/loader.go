package monitor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ThresholdsWatcher reloads a thresholds YAML file into a Monitor whenever
// the file changes. Editors and config management tools often replace the
// file instead of writing in place, so the parent directory is watched and
// create events for the path count as changes.
type ThresholdsWatcher struct {
	path    string
	monitor *Monitor
	watcher *fsnotify.Watcher

	// debounce collapses the event bursts many editors produce on save.
	debounce time.Duration
}

// NewThresholdsWatcher creates a watcher for the thresholds file at path.
// The file must load cleanly at startup.
func NewThresholdsWatcher(path string, m *Monitor) (*ThresholdsWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve thresholds path: %w", err)
	}

	t, err := LoadThresholds(absPath)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	m.SetThresholds(t)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch thresholds directory: %w", err)
	}

	return &ThresholdsWatcher{
		path:     absPath,
		monitor:  m,
		watcher:  watcher,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Start begins watching in a background goroutine until ctx is done.
func (w *ThresholdsWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Close stops the watcher.
func (w *ThresholdsWatcher) Close() error {
	return w.watcher.Close()
}

func (w *ThresholdsWatcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("thresholds watcher error: %v", err)
		case <-timerC:
			w.reload()
		}
	}
}

// reload re-reads the thresholds file. A file that fails to load or validate
// leaves the last good thresholds in place.
func (w *ThresholdsWatcher) reload() {
	t, err := LoadThresholds(w.path)
	if err != nil {
		log.Printf("thresholds reload failed, keeping previous values: %v", err)
		return
	}
	w.monitor.SetThresholds(t)
	log.Printf("thresholds reloaded from %s", w.path)
}
