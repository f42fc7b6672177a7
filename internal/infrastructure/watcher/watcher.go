// Package watcher provides debounced file system watching for a deployment
// directory of package files.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Watcher monitors a deployment directory and signals when package files
// are created or rewritten.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	ext       string
	debounce  time.Duration
	logger    *zap.Logger
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	Ext         string // File extension that triggers a signal
	DebounceDur time.Duration
	Logger      *zap.Logger
}

// DefaultConfig returns defaults for watching dir for package files.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Ext:         types.PackageExt,
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a new deployment watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := cfg.Ext
	if ext == "" {
		ext = types.PackageExt
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		ext:       strings.ToLower(ext),
		debounce:  cfg.DebounceDur,
		logger:    logger,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directory.
// Returns a channel that receives a signal when package files change.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				// Non-blocking send; a signal already queued covers this one
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Deployment watch error", zap.String("dir", w.dir), zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger a signal.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	// Packages are usually written to a temp name and renamed into place,
	// which shows up as Create
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return strings.ToLower(filepath.Ext(event.Name)) == w.ext
}
