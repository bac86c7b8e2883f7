package gui

import (
	"errors"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibanks42/resswitch/internal/config"
	"github.com/ibanks42/resswitch/internal/monitor"
	"github.com/ibanks42/resswitch/internal/watchlist"
)

// fakeControl keeps a real watch list behind the Control interface
type fakeControl struct {
	list     *watchlist.List
	shutdown bool
}

func newFakeControl(t *testing.T, entries ...watchlist.Entry) *fakeControl {
	t.Helper()
	l, err := watchlist.New(entries...)
	require.NoError(t, err)
	return &fakeControl{list: l}
}

func (c *fakeControl) AddWatch(name string, width, height int) error {
	_, err := c.list.Add(name, width, height)
	return err
}

func (c *fakeControl) RemoveWatch(name string) error {
	_, err := c.list.Remove(name)
	return err
}

func (c *fakeControl) ListWatches() ([]watchlist.Entry, error) {
	return c.list.Snapshot(), nil
}

func (c *fakeControl) RequestShutdown() {
	c.shutdown = true
}

type fakeSettings struct {
	settings config.Settings
	saves    int
}

func (s *fakeSettings) Settings() config.Settings { return s.settings }

func (s *fakeSettings) SaveSettings(settings config.Settings) error {
	s.settings = settings
	s.saves++
	return nil
}

var (
	game   = watchlist.Entry{ProcessName: "game.exe", Width: 1920, Height: 1080}
	editor = watchlist.Entry{ProcessName: "editor.exe", Width: 1280, Height: 720}
)

func newTestGUI(t *testing.T, control *fakeControl, settings *fakeSettings) *GUI {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	g := New(a, Options{Control: control, Settings: settings})
	g.Start()
	return g
}

func listedLabels(t *testing.T, g *GUI) []string {
	t.Helper()
	labels, err := g.listData.Get()
	require.NoError(t, err)
	return labels
}

func TestStart_ListsWatches(t *testing.T) {
	g := newTestGUI(t, newFakeControl(t, game, editor), &fakeSettings{})

	assert.Equal(t, []string{"game.exe (1920x1080)", "editor.exe (1280x720)"}, listedLabels(t, g))
}

func TestAddWatch(t *testing.T) {
	control := newFakeControl(t)
	g := newTestGUI(t, control, &fakeSettings{})

	g.nameEntry.SetText("  game.exe ")
	g.widthEntry.SetText("1920")
	g.heightEntry.SetText("1080")
	test.Tap(g.addButton)

	assert.Equal(t, []watchlist.Entry{game}, control.list.Snapshot())
	assert.Equal(t, []string{"game.exe (1920x1080)"}, listedLabels(t, g))
	assert.Empty(t, g.nameEntry.Text)
	assert.Empty(t, g.widthEntry.Text)
}

func TestAddWatch_RejectedInputKeepsList(t *testing.T) {
	control := newFakeControl(t, game)
	g := newTestGUI(t, control, &fakeSettings{})

	tests := []struct {
		name   string
		width  string
		height string
	}{
		{"duplicate", "800", "600"},
		{"", "800", "600"},
		{"other.exe", "wide", "600"},
		{"other.exe", "800", ""},
		{"other.exe", "100", "600"},
	}

	for _, tt := range tests {
		if tt.name == "duplicate" {
			tt.name = game.ProcessName
		}
		g.nameEntry.SetText(tt.name)
		g.widthEntry.SetText(tt.width)
		g.heightEntry.SetText(tt.height)
		test.Tap(g.addButton)

		assert.Equal(t, []watchlist.Entry{game}, control.list.Snapshot())
		// the rejected input stays for correction
		assert.Equal(t, tt.width, g.widthEntry.Text)
	}
}

func TestRemoveSelected(t *testing.T) {
	control := newFakeControl(t, game, editor)
	g := newTestGUI(t, control, &fakeSettings{})

	assert.True(t, g.removeButton.Disabled())

	g.list.Select(1)
	assert.False(t, g.removeButton.Disabled())
	test.Tap(g.removeButton)

	assert.Equal(t, []watchlist.Entry{game}, control.list.Snapshot())
	assert.Equal(t, []string{"game.exe (1920x1080)"}, listedLabels(t, g))
	assert.Equal(t, -1, g.selected)
	assert.True(t, g.removeButton.Disabled())
}

func TestApplyStatus(t *testing.T) {
	g := newTestGUI(t, newFakeControl(t), &fakeSettings{})

	g.applyStatus(monitor.Status{State: monitor.Idle})
	assert.Equal(t, "Idle", g.statusLabel.Text)

	g.applyStatus(monitor.Status{State: monitor.Idle, Ticking: true, Watches: []watchlist.Entry{game, editor}})
	assert.Equal(t, "Watching 2 program(s)", g.statusLabel.Text)
	assert.Len(t, listedLabels(t, g), 2)

	g.applyStatus(monitor.Status{State: monitor.Overridden, Active: game, Ticking: true, Watches: []watchlist.Entry{game}})
	assert.Equal(t, "Active: game.exe (1920x1080)", g.statusLabel.Text)
	assert.Equal(t, []string{"game.exe (1920x1080)"}, listedLabels(t, g))
}

func TestSettingsChecks(t *testing.T) {
	settings := &fakeSettings{settings: config.Settings{PollInterval: 3}}
	control := newFakeControl(t)

	var autostart []bool
	a := test.NewApp()
	defer a.Quit()
	g := New(a, Options{
		Control:  control,
		Settings: settings,
		SetAutostart: func(enable bool) error {
			autostart = append(autostart, enable)
			return nil
		},
	})

	test.Tap(g.showCheck)
	assert.True(t, settings.settings.ShowWindowOnLaunch)
	assert.Equal(t, 3, settings.settings.PollInterval)

	test.Tap(g.startCheck)
	assert.True(t, settings.settings.StartWithOS)
	assert.Equal(t, []bool{true}, autostart)
	assert.Equal(t, 2, settings.saves)
}

func TestStartWithOS_FailureRevertsCheck(t *testing.T) {
	settings := &fakeSettings{}
	a := test.NewApp()
	defer a.Quit()
	g := New(a, Options{
		Control:  newFakeControl(t),
		Settings: settings,
		SetAutostart: func(bool) error {
			return errors.New("registry locked")
		},
	})

	test.Tap(g.startCheck)

	assert.False(t, g.startCheck.Checked)
	assert.False(t, settings.settings.StartWithOS)
	assert.Equal(t, 0, settings.saves)
}

func TestQuitRequestsShutdown(t *testing.T) {
	control := newFakeControl(t)
	g := newTestGUI(t, control, &fakeSettings{})

	g.quit()
	assert.True(t, control.shutdown)
}
