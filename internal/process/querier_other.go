//go:build !windows

package process

// NewQuerier returns the platform querier.
func NewQuerier() Querier {
	return PsutilQuerier{}
}
