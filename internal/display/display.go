// Package display queries and sets the primary display mode and remembers the
// mode that was active before any override.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnsupported is returned by NewBackend on platforms without a backend.
	ErrUnsupported = errors.New("display mode changes are not supported on this platform")
	// ErrNotCaptured is returned when applying or restoring before CaptureCurrent.
	ErrNotCaptured = errors.New("original display mode has not been captured")
)

// Mode is a display mode. Only Width and Height are meaningful outside the
// backend; the native record is carried along untouched so a captured mode can
// be re-applied exactly.
type Mode struct {
	Width  int
	Height int
	native []byte
}

// NewMode builds a mode from a size and a backend specific native record.
func NewMode(width, height int, native []byte) Mode {
	return Mode{Width: width, Height: height, native: bytes.Clone(native)}
}

// WithSize returns a copy of m with a different size and the same native record.
func (m Mode) WithSize(width, height int) Mode {
	return NewMode(width, height, m.native)
}

// Native returns a copy of the native record.
func (m Mode) Native() []byte {
	return bytes.Clone(m.native)
}

// Equal reports whether both modes have the same size and native record.
func (m Mode) Equal(other Mode) bool {
	return m.Width == other.Width && m.Height == other.Height && bytes.Equal(m.native, other.native)
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Backend talks to the OS.
type Backend interface {
	// Current returns the active mode of the primary display.
	Current() (Mode, error)
	// Apply sets the primary display to mode.
	Apply(mode Mode) error
}

// describer is implemented by backends that can name the display they drive.
type describer interface {
	Describe() string
}

// Describe names the display driven by b, or returns "" if the backend cannot.
func Describe(b Backend) string {
	if d, ok := b.(describer); ok {
		return d.Describe()
	}
	return ""
}

// ChangeError is returned when the OS rejects a mode change.
type ChangeError struct {
	Mode    Mode
	Restore bool
	Err     error
}

func (e *ChangeError) Error() string {
	if e.Restore {
		return fmt.Sprintf("failed to restore display mode %s: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("failed to change display mode to %s: %v", e.Mode, e.Err)
}

func (e *ChangeError) Unwrap() error { return e.Err }

// Controller applies overrides relative to the mode captured at startup.
// Apply and restore calls are serialized.
type Controller struct {
	backend Backend
	settle  time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	original Mode
	captured bool
}

// NewController creates a controller. settle is the pause after each
// successful mode change.
func NewController(backend Backend, settle time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		backend: backend,
		settle:  settle,
		logger:  logger,
	}
}

// CaptureCurrent queries the active mode and stores it as the restore target.
// Only the first successful call queries the OS; later calls return the stored mode.
func (c *Controller) CaptureCurrent() (Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.captured {
		return c.original, nil
	}

	mode, err := c.backend.Current()
	if err != nil {
		return Mode{}, fmt.Errorf("failed to get current display mode: %w", err)
	}
	c.original = mode
	c.captured = true

	fields := []zap.Field{zap.Stringer("mode", mode)}
	if name := Describe(c.backend); name != "" {
		fields = append(fields, zap.String("display", name))
	}
	c.logger.Info("captured original display mode", fields...)

	return mode, nil
}

// Original returns the captured mode and whether capture has happened.
func (c *Controller) Original() (Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original, c.captured
}

// ApplyMode switches to width x height, keeping every other field of the
// original mode.
func (c *Controller) ApplyMode(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.captured {
		return ErrNotCaptured
	}

	mode := c.original.WithSize(width, height)
	if err := c.backend.Apply(mode); err != nil {
		return &ChangeError{Mode: mode, Err: err}
	}

	c.logger.Info("display mode changed", zap.Int("width", width), zap.Int("height", height))
	c.settleDown()
	return nil
}

// RestoreOriginal re-applies the captured mode verbatim.
func (c *Controller) RestoreOriginal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.captured {
		return ErrNotCaptured
	}

	if err := c.backend.Apply(c.original); err != nil {
		return &ChangeError{Mode: c.original, Restore: true, Err: err}
	}

	c.logger.Info("display mode restored", zap.Stringer("mode", c.original))
	c.settleDown()
	return nil
}

func (c *Controller) settleDown() {
	if c.settle > 0 {
		time.Sleep(c.settle)
	}
}
