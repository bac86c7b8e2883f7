//go:build linux

package display

// NewBackend returns the xrandr backend.
func NewBackend() (Backend, error) {
	b, err := NewXrandrBackend()
	if err != nil {
		return nil, err
	}
	return b, nil
}
