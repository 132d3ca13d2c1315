package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before requesting a run. Editors fire bursts of events per save.
const DefaultDebounce = 2 * time.Second

// ReindexTrigger requests an indexing run without waiting for it to finish.
// *Scheduler satisfies this.
type ReindexTrigger interface {
	Trigger(opts service.RunOptions) bool
}

// Watcher turns filesystem changes under the source roots into incremental
// indexing runs. Events are debounced so one run covers a burst of writes.
type Watcher struct {
	trigger  ReindexTrigger
	fsw      *fsnotify.Watcher
	debounce time.Duration

	timerMu sync.Mutex
	timer   *time.Timer

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher creates a Watcher over the given roots. Directories are watched
// recursively; directories created later are picked up as they appear.
func NewWatcher(trigger ReindexTrigger, roots []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		trigger:  trigger,
		fsw:      fsw,
		debounce: debounce,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	for _, root := range roots {
		if err := w.watchTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Start begins the event loop
func (w *Watcher) Start(ctx context.Context) {
	defer close(w.doneChan)
	log.Printf("Watcher started (debounce %v)", w.debounce)

	for {
		select {
		case <-ctx.Done():
			log.Println("Watcher stopped: context cancelled")
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() {
	close(w.stopChan)
	<-w.doneChan

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	w.fsw.Close()
	log.Println("Watcher shutdown complete")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				log.Printf("Watcher: failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !indexableFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.scheduleRun()
}

// scheduleRun arms the debounce timer, resetting it if a previous event
// already armed it.
func (w *Watcher) scheduleRun() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopChan:
			return
		default:
		}
		if !w.trigger.Trigger(service.RunOptions{Trigger: domain.TriggerWatch}) {
			log.Println("Watcher: run already pending, changes will ride along")
		}
	})
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func indexableFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".jsonl":
		return true
	}
	return false
}
