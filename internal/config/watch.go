package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on write and hands the new Config to an
// OnReload callback. Only a subset of fields are safe to change at
// runtime — the log level and the default segment size applied to newly
// created topics — everything else requires a restart; callers decide what
// to act on in their callback.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher

	mu       sync.Mutex
	current  *Config
	onReload func(*Config)

	done chan struct{}
}

// WatchFile starts watching path for writes, reloading via Load on each
// one. The initial load happens synchronously so callers get a valid
// Config back immediately; reloads thereafter call onReload.
func WatchFile(path string, onReload func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := fsw.Add(path); err != nil {
			// Not fatal: the file may not exist yet (env-only deployment).
			// Config reload simply never fires.
			_ = err
		}
	}

	w := &Watcher{
		path:     path,
		fsw:      fsw,
		current:  cfg,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				// A transient write (editor atomic-rename mid-write) may
				// produce an unparseable intermediate file; keep the last
				// good config and wait for the next event.
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			if w.onReload != nil {
				w.onReload(cfg)
			}
		case <-w.fsw.Errors:
		case <-w.done:
			return
		}
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
