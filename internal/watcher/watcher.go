// Package watcher provides file system watching for live reload of the
// settings and rules files, and for detecting deletion of data files.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors one file. Writes and creations fire onChange; removal
// fires onDelete. It watches the parent directory since fsnotify cannot
// watch a file that does not exist yet, which also keeps the watch alive
// across editors that replace files by rename.
type Watcher struct {
	targetPath string
	parentPath string
	onChange   func()
	onDelete   func()
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a watcher for targetPath. Either callback may be nil.
func New(targetPath string, onChange, onDelete func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		targetPath: filepath.Clean(targetPath),
		parentPath: filepath.Dir(filepath.Clean(targetPath)),
		onChange:   onChange,
		onDelete:   onDelete,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   100 * time.Millisecond,
	}, nil
}

// Start begins watching. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("failed to add initial watch")
		// Keep going; the loop re-establishes the watch when the parent appears
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher. Safe to call on a stopped watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

// addWatch registers the parent directory, failing if it does not exist yet.
func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); os.IsNotExist(err) {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

// watchLoop is the main event loop. Change and delete events are debounced
// separately: editors that write via temp-file-and-rename produce a burst of
// Create/Write/Rename events for one logical save.
func (w *Watcher) watchLoop() {
	var changeTimer, deleteTimer *time.Timer
	stopTimer := func(t *time.Timer) {
		if t != nil {
			t.Stop()
		}
	}

	for {
		select {
		case <-w.ctx.Done():
			stopTimer(changeTimer)
			stopTimer(deleteTimer)
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			eventPath := filepath.Clean(event.Name)

			// Parent directory removed: the target went with it.
			if eventPath == w.parentPath && event.Op&fsnotify.Remove != 0 {
				log.Info().Str("path", w.parentPath).Msg("watched directory deleted")
				stopTimer(deleteTimer)
				deleteTimer = time.AfterFunc(w.debounce, w.handleDeletion)
				continue
			}

			// Parent directory recreated: re-establish the watch.
			if eventPath == w.parentPath && event.Op&fsnotify.Create != 0 {
				_ = w.addWatch()
				continue
			}

			if eventPath != w.targetPath {
				continue
			}

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				log.Debug().Str("path", w.targetPath).Msg("watched file removed")
				stopTimer(deleteTimer)
				deleteTimer = time.AfterFunc(w.debounce, w.handleDeletion)
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				// A create right after a rename is a save, not a new file:
				// cancel the pending delete and treat it as a change.
				stopTimer(deleteTimer)
				stopTimer(changeTimer)
				changeTimer = time.AfterFunc(w.debounce, w.handleChange)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleChange() {
	log.Debug().Str("path", w.targetPath).Msg("watched file changed")
	if w.onChange != nil {
		w.onChange()
	}
}

// handleDeletion fires onDelete, but only if the target is still gone once
// the debounce settles; rename-style saves recreate it immediately.
func (w *Watcher) handleDeletion() {
	if _, err := os.Stat(w.targetPath); err == nil {
		w.handleChange()
		return
	}

	log.Info().Str("path", w.targetPath).Msg("watched file deleted")
	if w.onDelete != nil {
		w.onDelete()
	}

	// The parent may be recreated shortly after; try to re-establish.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := w.addWatch(); err != nil {
			log.Warn().Err(err).Str("path", w.parentPath).Msg("failed to re-establish watch")
		}
	}()
}
