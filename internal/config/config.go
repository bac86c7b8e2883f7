// Package config loads and saves the resswitch configuration file and watches
// it for external edits.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/watchlist"
)

const (
	// DefaultFileName is the config file name inside the config directory.
	DefaultFileName = "config.json"
	// DefaultPollInterval is the tick interval in seconds.
	DefaultPollInterval = 1
	// DefaultSettleDelayMs is the pause after a mode change before the next check.
	DefaultSettleDelayMs = 500
)

// ErrCorrupt marks a config file whose content cannot be trusted.
var ErrCorrupt = errors.New("config file is corrupt")

// Settings holds everything in the config file except the watch list.
type Settings struct {
	PollInterval       int  `json:"poll_interval"`         // Polling interval in seconds (default: 1)
	SettleDelayMs      int  `json:"settle_delay_ms"`       // Pause after a mode change (default: 500)
	ShowWindowOnLaunch bool `json:"show_window_on_launch"` // Show the window on launch instead of only the tray icon
	StartWithOS        bool `json:"start_with_os"`         // Register for autostart at login
}

// Config represents the main configuration structure
type Config struct {
	Settings
	Watches []watchlist.Entry `json:"watches"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Settings: Settings{
			PollInterval:       DefaultPollInterval,
			SettleDelayMs:      DefaultSettleDelayMs,
			ShowWindowOnLaunch: true,
		},
		Watches: []watchlist.Entry{},
	}
}

// PollDuration returns the poll interval as a duration.
func (s Settings) PollDuration() time.Duration {
	return time.Duration(s.PollInterval) * time.Second
}

// SettleDelay returns the settle delay as a duration.
func (s Settings) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}

// LoadError is returned when the config file exists but cannot be used.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError is returned when the config file cannot be written.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save config %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// DefaultPath returns <user config dir>/resswitch/config.json, falling back to
// config.json in the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(dir, "resswitch", DefaultFileName)
}

// Store reads and writes a config file. It remembers the last loaded or saved
// settings so the watch list can be persisted on its own.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	settings Settings
}

// NewStore creates a store for the file at path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:     path,
		logger:   logger,
		settings: Default().Settings,
	}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the config file. A missing file yields Default() and no error.
// On error the store falls back to the default settings.
func (s *Store) Load() (*Config, error) {
	cfg, err := Read(s.path)
	if err != nil {
		s.mu.Lock()
		s.settings = Default().Settings
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.settings = cfg.Settings
	s.mu.Unlock()

	return cfg, nil
}

// Read parses the config file at path without touching any store state.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Watches = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after config object", ErrCorrupt)
	}

	// A list that would not survive watchlist.New is treated as corrupt rather than
	// silently trimmed into a different watch list.
	if _, err := watchlist.New(cfg.Watches...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cfg.Watches == nil {
		cfg.Watches = []watchlist.Entry{}
	}

	// Set default values if not specified
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SettleDelayMs < 0 {
		cfg.SettleDelayMs = DefaultSettleDelayMs
	}

	return cfg, nil
}

// Save writes cfg atomically: a temp file in the same directory is synced and
// renamed over the target, so readers see either the old or the new file.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := write(s.path, cfg); err != nil {
		return err
	}
	s.settings = cfg.Settings
	return nil
}

// SaveWatches persists entries together with the current settings.
func (s *Store) SaveWatches(entries []watchlist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries == nil {
		entries = []watchlist.Entry{}
	}
	cfg := &Config{Settings: s.settings, Watches: entries}
	if err := write(s.path, cfg); err != nil {
		return err
	}
	s.logger.Debug("watch list saved", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}

// Settings returns the last loaded or saved settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SaveSettings persists settings while keeping the watch list currently on disk.
func (s *Store) SaveSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := Read(s.path)
	if err != nil {
		s.logger.Warn("config unreadable, saving settings with an empty watch list", zap.Error(err))
		current = Default()
	}
	current.Settings = settings

	if err := write(s.path, current); err != nil {
		return err
	}
	s.settings = settings
	return nil
}

func write(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("failed to marshal config: %w", err)}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("failed to create config directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &SaveError{Path: path, Err: fmt.Errorf("failed to write config file: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &SaveError{Path: path, Err: fmt.Errorf("failed to sync config file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("failed to close config file: %w", err)}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("failed to replace config file: %w", err)}
	}

	return nil
}
