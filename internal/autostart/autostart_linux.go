//go:build linux

package autostart

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const desktopFileName = "resswitch.desktop"

// XDGManager manages a desktop entry in the XDG autostart directory.
type XDGManager struct {
	dir string
}

// New returns the manager for ~/.config/autostart.
func New() (Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return NewXDGManager(filepath.Join(configDir, "autostart")), nil
}

// NewXDGManager returns a manager writing into dir.
func NewXDGManager(dir string) *XDGManager {
	return &XDGManager{dir: dir}
}

func (m *XDGManager) path() string {
	return filepath.Join(m.dir, desktopFileName)
}

// Location returns the desktop entry path.
func (m *XDGManager) Location() string {
	return m.path()
}

// IsEnabled reports whether the desktop entry exists.
func (m *XDGManager) IsEnabled() (bool, error) {
	_, err := os.Stat(m.path())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check autostart entry: %w", err)
	}
	return true, nil
}

// Enable writes a desktop entry that launches execPath.
func (m *XDGManager) Enable(execPath string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create autostart directory: %w", err)
	}

	if err := os.WriteFile(m.path(), []byte(desktopEntry(execPath)), 0o644); err != nil {
		return fmt.Errorf("failed to write autostart entry: %w", err)
	}
	return nil
}

// Disable removes the desktop entry. A missing entry is not an error.
func (m *XDGManager) Disable() error {
	err := os.Remove(m.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove autostart entry: %w", err)
	}
	return nil
}

func desktopEntry(execPath string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=" + AppName + "\n")
	b.WriteString("Comment=Switch the display resolution while watched programs run\n")
	b.WriteString("Exec=" + quoteExec(execPath) + " run\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return b.String()
}

// quoteExec quotes a path for the Exec key of a desktop entry.
func quoteExec(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

var _ Manager = (*XDGManager)(nil)
