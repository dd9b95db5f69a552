package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/deagent-io/deagent/pkg/log"
)

// Watcher reloads the configuration file when it changes on disk, letting the
// log level and session defaults be adjusted without restarting the chat.
// Reloads never touch an in-flight turn; callbacks decide what to apply.
type Watcher struct {
	mu        sync.RWMutex
	path      string
	current   *Config
	viper     *viper.Viper
	onChange  []func(old, updated *Config)
	done      chan struct{}
	reloading bool
}

// NewWatcher loads the config at path and prepares a file watcher for it.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &Watcher{
		path:    path,
		current: cfg,
		viper:   v,
		done:    make(chan struct{}),
	}, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn func(old, updated *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching the file and blocks until Stop is called.
func (w *Watcher) Start() {
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload(e)
	})
	w.viper.WatchConfig()

	log.WithField("path", w.path).Debug("watching config file")
	<-w.done
}

// Stop ends the watch started by Start.
func (w *Watcher) Stop() {
	close(w.done)
}

func (w *Watcher) reload(e fsnotify.Event) {
	// Editors often fire several events per save; collapse them.
	w.mu.Lock()
	if w.reloading {
		w.mu.Unlock()
		return
	}
	w.reloading = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.reloading = false
		w.mu.Unlock()
	}()

	updated, err := LoadConfig(w.path)
	if err != nil {
		log.WithError(err).WithField("path", w.path).Error("config reload failed, keeping previous config")
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	callbacks := w.onChange
	w.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"event":     e.Op.String(),
		"topic":     updated.Session.Topic,
		"log_level": updated.Logging.Level,
	}).Info("config reloaded")

	for _, fn := range callbacks {
		go func(cb func(old, updated *Config)) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("config change callback panicked")
				}
			}()
			cb(old, updated)
		}(fn)
	}
}
