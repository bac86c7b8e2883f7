package display

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend records applied modes and tracks the resulting display state.
type fakeBackend struct {
	mu         sync.Mutex
	active     Mode
	applied    []Mode
	queries    int
	currentErr error
	applyErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		active: NewMode(2560, 1440, []byte{0xde, 0xad, 0xbe, 0xef, 144, 32}),
	}
}

func (f *fakeBackend) Current() (Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.currentErr != nil {
		return Mode{}, f.currentErr
	}
	return f.active, nil
}

func (f *fakeBackend) Apply(mode Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, mode)
	f.active = mode
	return nil
}

func TestCaptureCurrent_QueriesOnce(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, 0, zap.NewNop())

	first, err := c.CaptureCurrent()
	require.NoError(t, err)
	require.NoError(t, c.ApplyMode(1280, 720))

	second, err := c.CaptureCurrent()
	require.NoError(t, err)

	assert.Equal(t, 1, backend.queries)
	assert.True(t, first.Equal(second))
	assert.Equal(t, 2560, second.Width)
}

func TestCaptureCurrent_Error(t *testing.T) {
	backend := newFakeBackend()
	backend.currentErr = errors.New("no display")
	c := NewController(backend, 0, zap.NewNop())

	_, err := c.CaptureCurrent()
	require.Error(t, err)

	_, captured := c.Original()
	assert.False(t, captured)
}

func TestApplyMode_BeforeCapture(t *testing.T) {
	c := NewController(newFakeBackend(), 0, zap.NewNop())

	assert.ErrorIs(t, c.ApplyMode(1280, 720), ErrNotCaptured)
	assert.ErrorIs(t, c.RestoreOriginal(), ErrNotCaptured)
}

func TestApplyMode_KeepsNativeFields(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, 0, zap.NewNop())
	original, err := c.CaptureCurrent()
	require.NoError(t, err)

	require.NoError(t, c.ApplyMode(1920, 1080))

	require.Len(t, backend.applied, 1)
	got := backend.applied[0]
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 1080, got.Height)
	assert.Equal(t, original.Native(), got.Native())
}

func TestApplyMode_Idempotent(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, 0, zap.NewNop())
	_, err := c.CaptureCurrent()
	require.NoError(t, err)

	require.NoError(t, c.ApplyMode(1920, 1080))
	once := backend.active

	require.NoError(t, c.ApplyMode(1920, 1080))
	assert.True(t, once.Equal(backend.active))
}

func TestRestoreOriginal_RoundTrip(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, 0, zap.NewNop())
	original, err := c.CaptureCurrent()
	require.NoError(t, err)

	for _, size := range [][2]int{{1920, 1080}, {1280, 720}, {800, 600}} {
		require.NoError(t, c.ApplyMode(size[0], size[1]))
	}
	require.NoError(t, c.RestoreOriginal())
	require.NoError(t, c.RestoreOriginal())

	assert.True(t, original.Equal(backend.active))
	assert.Equal(t, original.Native(), backend.active.Native())
}

func TestApplyMode_FailureIsChangeError(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, 0, zap.NewNop())
	original, err := c.CaptureCurrent()
	require.NoError(t, err)

	backend.applyErr = errors.New("bad mode")
	err = c.ApplyMode(1920, 1080)

	var changeErr *ChangeError
	require.True(t, errors.As(err, &changeErr))
	assert.False(t, changeErr.Restore)
	assert.Equal(t, 1920, changeErr.Mode.Width)
	assert.True(t, original.Equal(backend.active))

	err = c.RestoreOriginal()
	require.True(t, errors.As(err, &changeErr))
	assert.True(t, changeErr.Restore)
	assert.Contains(t, err.Error(), "restore")
}

func TestMode_NativeIsCopied(t *testing.T) {
	native := []byte{1, 2, 3}
	m := NewMode(800, 600, native)
	native[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, m.Native())

	out := m.Native()
	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, m.Native())

	resized := m.WithSize(1024, 768)
	assert.Equal(t, m.Native(), resized.Native())
	assert.False(t, m.Equal(resized))
	assert.Equal(t, "1024x768", resized.String())
}
