// Package autostart registers the application to start when the user logs in.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AppName names the autostart entry.
const AppName = "ResSwitch"

// ErrUnsupported is returned on platforms without an autostart mechanism.
var ErrUnsupported = errors.New("autostart is not supported on this platform")

// Manager provides platform-specific autostart installation.
type Manager interface {
	IsEnabled() (bool, error)
	Enable(execPath string) error
	Disable() error
	// Location describes where the entry lives, for display.
	Location() string
}

// Executable returns the absolute path of the running binary.
func Executable() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	absPath, err := filepath.Abs(exePath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// Set enables or disables autostart for the running binary.
func Set(m Manager, enable bool) error {
	if !enable {
		return m.Disable()
	}

	exePath, err := Executable()
	if err != nil {
		return err
	}
	return m.Enable(exePath)
}
