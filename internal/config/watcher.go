package config

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher handles monitoring of configuration file changes
type Watcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	logger     *zap.Logger
	configChan chan *Config
	errorChan  chan error
	done       chan struct{}
	started    atomic.Bool
}

// NewWatcher creates a new Watcher for the config file at configPath.
func NewWatcher(configPath string, logger *zap.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &Watcher{
		watcher:    watcher,
		configPath: filepath.Clean(configPath),
		logger:     logger,
		configChan: make(chan *Config, 1),
		errorChan:  make(chan error, 1),
		done:       make(chan struct{}),
	}

	// Watch the directory containing the config file: saves replace the file by
	// rename, which drops a watch placed on the file itself.
	configDir := filepath.Dir(cw.configPath)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return cw, nil
}

// Start begins monitoring the configuration file for changes
func (cw *Watcher) Start() {
	if !cw.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(cw.done)

		for {
			select {
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != cw.configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cw.logger.Debug("config file changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))

				config, err := Read(cw.configPath)
				if err != nil {
					cw.sendError(fmt.Errorf("failed to reload config: %w", err))
					continue
				}

				// Keep only the newest config if the consumer is behind.
				select {
				case <-cw.configChan:
				default:
				}
				cw.configChan <- config

			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				cw.sendError(fmt.Errorf("file watcher error: %w", err))
			}
		}
	}()
}

func (cw *Watcher) sendError(err error) {
	select {
	case cw.errorChan <- err:
	default:
		cw.logger.Warn("dropping config watcher error", zap.Error(err))
	}
}

// ConfigChan returns the channel that receives updated configurations
func (cw *Watcher) ConfigChan() <-chan *Config {
	return cw.configChan
}

// ErrorChan returns the channel that receives watcher errors
func (cw *Watcher) ErrorChan() <-chan error {
	return cw.errorChan
}

// Close stops the file watcher and waits for the event loop to exit.
func (cw *Watcher) Close() error {
	err := cw.watcher.Close()
	if cw.started.Load() {
		<-cw.done
	}
	return err
}
