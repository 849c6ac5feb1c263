package am

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 500 * time.Millisecond

// ReloadCallback receives every successfully reloaded and validated config
type ReloadCallback func(*Config) error

// ConfigWatcher reloads configuration when one of the watched files changes.
// Directories are watched rather than files so editors that save by rename
// are still seen.
type ConfigWatcher struct {
	files   map[string]bool
	load    func() (*Config, error)
	watcher *fsnotify.Watcher
	logger  *zap.SugaredLogger

	mu             sync.Mutex
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	started        bool

	done chan struct{}
}

// NewConfigWatcher watches paths and calls load on change. Paths whose
// directory does not exist are skipped.
func NewConfigWatcher(paths []string, load func() (*Config, error), log *zap.SugaredLogger) (*ConfigWatcher, error) {
	if log == nil {
		log = logger.ComponentLogger("config-watcher")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	cw := &ConfigWatcher{
		files:          map[string]bool{},
		load:           load,
		watcher:        watcher,
		logger:         log,
		debouncePeriod: DefaultDebounce,
		done:           make(chan struct{}),
	}

	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		cw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Debugw("Not watching config directory", "dir", dir, logger.FieldError, err)
		}
	}
	if len(watcher.WatchList()) == 0 {
		watcher.Close()
		return nil, errors.New("no config directory to watch")
	}
	return cw, nil
}

// OnReload registers a callback for reloaded configs
func (cw *ConfigWatcher) OnReload(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Start begins watching in the background
func (cw *ConfigWatcher) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.started {
		return
	}
	cw.started = true
	go cw.watchLoop()
}

func (cw *ConfigWatcher) watchLoop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !cw.files[abs] {
				continue
			}
			cw.logger.Infow("Config change detected", "file", event.Name, "op", event.Op.String())
			cw.scheduleReload()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

func (cw *ConfigWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(cw.debouncePeriod, func() {
		if err := cw.reload(); err != nil {
			cw.logger.Errorw("Config reload failed, keeping previous config", logger.FieldError, err)
		}
	})
}

// reload loads and validates, then hands the config to every callback.
// An invalid file never reaches the callbacks.
func (cw *ConfigWatcher) reload() error {
	cfg, err := cw.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cw.mu.Lock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.Unlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			cw.logger.Warnw("Config reload callback error", logger.FieldError, err)
		}
	}
	cw.logger.Infow("Config reloaded", "callbacks", len(callbacks))
	return nil
}

// Stop stops watching and waits for the loop to exit
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	started := cw.started
	cw.mu.Unlock()

	err := cw.watcher.Close()
	if started {
		<-cw.done
	}
	return err
}

// ReloadCascade is the load function for the normal file cascade
func ReloadCascade() (*Config, error) {
	Reset()
	return Load()
}
