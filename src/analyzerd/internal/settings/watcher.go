package settings

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports on-disk changes to configuration files, such as a folder's
// analyzer settings or its compile-commands database.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *zap.SugaredLogger
	onChange func(path string)

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher starts watching the given paths and invokes onChange with the
// affected path on every write or create event. Paths that do not exist yet
// are skipped silently; the periodic settings diff covers them.
func NewWatcher(paths []string, onChange func(path string), logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating settings watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			logger.Debugw("skipping unwatchable settings path", "path", p, "error", err)
		}
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				w.onChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("settings watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
