//go:build !linux && !windows

package autostart

type unsupported struct{}

// New returns a manager whose operations fail with ErrUnsupported.
func New() (Manager, error) {
	return unsupported{}, nil
}

func (unsupported) IsEnabled() (bool, error) { return false, ErrUnsupported }
func (unsupported) Enable(string) error      { return ErrUnsupported }
func (unsupported) Disable() error           { return ErrUnsupported }
func (unsupported) Location() string         { return "" }
