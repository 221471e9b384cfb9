package config

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/framestamp/engine/core"
)

// Watcher keeps the latest valid configuration of one file and notifies
// subscribers when it changes on disk.
type Watcher struct {
	path    string
	current atomic.Value // Config

	mutex       sync.RWMutex
	subscribers []func(Config)

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewWatcher loads path and starts watching its directory. Editors often
// replace files instead of writing them, so the directory is watched rather
// than the file itself.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.current.Store(cfg)

	go w.start()
	return w, nil
}

// Current returns the last configuration that loaded and validated.
func (w *Watcher) Current() Config {
	return w.current.Load().(Config)
}

// Subscribe registers fn to be called from the watcher goroutine after every
// successful reload.
func (w *Watcher) Subscribe(fn func(Config)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.subscribers = append(w.subscribers, fn)
}

// Reload reads the file again. An invalid file keeps the previous
// configuration.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.current.Store(cfg)

	w.mutex.RLock()
	subscribers := append([]func(Config){}, w.subscribers...)
	w.mutex.RUnlock()

	for _, fn := range subscribers {
		fn(cfg)
	}
	return nil
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	<-w.stopped
	return nil
}

func (w *Watcher) start() {
	defer close(w.stopped)

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if err := w.Reload(); err != nil {
					core.LogError("config reload failed, keeping previous settings: %s", err)
					continue
				}
				core.LogInfo("configuration reloaded from %s", w.path)
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err.Error())

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}
