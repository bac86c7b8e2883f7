//go:build !linux && !windows

package display

// NewBackend reports ErrUnsupported.
func NewBackend() (Backend, error) {
	return nil, ErrUnsupported
}
