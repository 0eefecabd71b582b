package buildmanager

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// configWatcher watches each registered project's configuration file and
// triggers a worker respawn when it changes.
type configWatcher struct {
	watcher *fsnotify.Watcher
	ctrl    *controller
	logger  *zap.SugaredLogger

	mu    sync.Mutex
	roots map[string]string // config file path -> project root

	done chan struct{}
}

func newConfigWatcher(c *controller, logger *zap.SugaredLogger) (*configWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &configWatcher{
		watcher: fsw,
		ctrl:    c,
		logger:  logger,
		roots:   make(map[string]string),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch starts watching the project's config file. Errors are logged, not
// returned: a project without live config reload is still buildable.
func (w *configWatcher) Watch(root, configFile string) {
	w.mu.Lock()
	w.roots[configFile] = root
	w.mu.Unlock()

	if err := w.watcher.Add(configFile); err != nil {
		w.logger.Warnw("watching project config", "configFile", configFile, "error", err)
	}
}

// Unwatch stops watching the given project root's config file.
func (w *configWatcher) Unwatch(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for configFile, r := range w.roots {
		if r == root {
			delete(w.roots, configFile)
			w.watcher.Remove(configFile)
		}
	}
}

func (w *configWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *configWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}

			w.mu.Lock()
			root, tracked := w.roots[event.Name]
			w.mu.Unlock()
			if !tracked {
				continue
			}

			// Editors often replace the file; re-add so future writes are seen.
			if event.Has(fsnotify.Remove) {
				w.watcher.Add(event.Name)
			}
			go w.ctrl.onConfigChanged(root, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		}
	}
}
