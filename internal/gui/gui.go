// Package gui is the fyne front end: a window to edit the watch list and
// settings, and a system tray menu.
package gui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/config"
	"github.com/ibanks42/resswitch/internal/monitor"
	"github.com/ibanks42/resswitch/internal/watchlist"
)

const appTitle = "ResSwitch"

// Control is the part of the monitor service the window drives.
type Control interface {
	AddWatch(name string, width, height int) error
	RemoveWatch(name string) error
	ListWatches() ([]watchlist.Entry, error)
	RequestShutdown()
}

// SettingsStore reads and persists the settings shown in the window.
type SettingsStore interface {
	Settings() config.Settings
	SaveSettings(settings config.Settings) error
}

// Options configures the GUI.
type Options struct {
	Control  Control
	Settings SettingsStore
	// SetAutostart applies the "start with OS" setting. Optional.
	SetAutostart func(enable bool) error
	// DisplayInfo describes the display being managed, shown as a caption.
	DisplayInfo string
	Logger      *zap.Logger
}

// GUI owns the main window and the tray menu.
type GUI struct {
	app          fyne.App
	window       fyne.Window
	control      Control
	settings     SettingsStore
	setAutostart func(bool) error
	logger       *zap.Logger

	entries  []watchlist.Entry
	listData binding.StringList
	list     *widget.List
	selected int

	nameEntry    *widget.Entry
	widthEntry   *widget.Entry
	heightEntry  *widget.Entry
	addButton    *widget.Button
	removeButton *widget.Button
	statusLabel  *widget.Label
	showCheck    *widget.Check
	startCheck   *widget.Check
	syncing      bool
}

// New builds the window and tray menu on a. The window is not shown.
func New(a fyne.App, opts Options) *GUI {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	g := &GUI{
		app:          a,
		control:      opts.Control,
		settings:     opts.Settings,
		setAutostart: opts.SetAutostart,
		logger:       opts.Logger,
		listData:     binding.NewStringList(),
		selected:     -1,
	}

	if desk, ok := a.(desktop.App); ok {
		g.setupSystemTray(desk)
	}
	g.createMainWindow(opts.DisplayInfo)

	return g
}

// Window returns the main window.
func (g *GUI) Window() fyne.Window {
	return g.window
}

// Start loads the watch list and shows the window if the settings ask for it.
func (g *GUI) Start() {
	g.refresh()
	if g.settings == nil || g.settings.Settings().ShowWindowOnLaunch {
		g.Show()
	}
}

// Show brings the main window up.
func (g *GUI) Show() {
	g.window.Show()
	g.window.RequestFocus()
}

// SetStatus is safe to call from any goroutine.
func (g *GUI) SetStatus(st monitor.Status) {
	fyne.Do(func() {
		g.applyStatus(st)
	})
}

func (g *GUI) setupSystemTray(desk desktop.App) {
	quit := fyne.NewMenuItem("Quit", g.quit)
	quit.IsQuit = true

	menu := fyne.NewMenu(appTitle,
		fyne.NewMenuItem("Show", g.Show),
		fyne.NewMenuItemSeparator(),
		quit,
	)

	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(theme.ComputerIcon())
}

func (g *GUI) createMainWindow(displayInfo string) {
	window := g.app.NewWindow(appTitle)
	window.Resize(fyne.NewSize(520, 440))
	window.SetCloseIntercept(func() {
		window.Hide() // keep running in the tray
	})

	g.statusLabel = widget.NewLabel("Idle")
	header := container.NewVBox(g.statusLabel)
	if displayInfo != "" {
		header.Add(widget.NewLabelWithStyle("Display: "+displayInfo, fyne.TextAlignLeading, fyne.TextStyle{Italic: true}))
	}

	g.list = widget.NewListWithData(
		g.listData,
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(item binding.DataItem, obj fyne.CanvasObject) {
			if s, ok := item.(binding.String); ok {
				text, _ := s.Get()
				obj.(*widget.Label).SetText(text)
			}
		},
	)
	g.list.OnSelected = func(id widget.ListItemID) {
		g.selected = id
		g.removeButton.Enable()
	}
	g.list.OnUnselected = func(widget.ListItemID) {
		g.selected = -1
		g.removeButton.Disable()
	}

	g.nameEntry = widget.NewEntry()
	g.nameEntry.SetPlaceHolder("game.exe")
	g.widthEntry = widget.NewEntry()
	g.widthEntry.SetPlaceHolder("1920")
	g.heightEntry = widget.NewEntry()
	g.heightEntry.SetPlaceHolder("1080")

	g.addButton = widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), g.addWatch)
	g.removeButton = widget.NewButtonWithIcon("Remove", theme.ContentRemoveIcon(), g.removeSelected)
	g.removeButton.Disable()

	form := container.NewVBox(
		widget.NewLabel("Watch a program:"),
		container.NewBorder(nil, nil, widget.NewLabel("Process"), nil, g.nameEntry),
		container.NewGridWithColumns(4,
			widget.NewLabel("Width"), g.widthEntry,
			widget.NewLabel("Height"), g.heightEntry,
		),
		container.NewHBox(layout.NewSpacer(), g.removeButton, g.addButton),
	)

	g.showCheck = widget.NewCheck("Show window on launch", nil)
	g.startCheck = widget.NewCheck("Start when I log in", nil)
	if g.settings != nil {
		s := g.settings.Settings()
		g.showCheck.SetChecked(s.ShowWindowOnLaunch)
		g.startCheck.SetChecked(s.StartWithOS)
	}
	g.showCheck.OnChanged = g.showOnLaunchChanged
	g.startCheck.OnChanged = g.startWithOSChanged

	bottom := container.NewVBox(
		widget.NewSeparator(),
		form,
		widget.NewSeparator(),
		g.showCheck,
		g.startCheck,
	)

	content := container.NewBorder(
		container.NewVBox(header, widget.NewSeparator(), widget.NewLabel("Watched programs:")),
		bottom,
		nil,
		nil,
		g.list,
	)

	window.SetContent(content)
	g.window = window
}

func (g *GUI) addWatch() {
	name := strings.TrimSpace(g.nameEntry.Text)
	width, err := strconv.Atoi(strings.TrimSpace(g.widthEntry.Text))
	if err != nil {
		g.showError(fmt.Errorf("invalid width %q", g.widthEntry.Text))
		return
	}
	height, err := strconv.Atoi(strings.TrimSpace(g.heightEntry.Text))
	if err != nil {
		g.showError(fmt.Errorf("invalid height %q", g.heightEntry.Text))
		return
	}

	if err := g.control.AddWatch(name, width, height); err != nil {
		g.showError(err)
		return
	}

	g.nameEntry.SetText("")
	g.widthEntry.SetText("")
	g.heightEntry.SetText("")
	g.refresh()
}

func (g *GUI) removeSelected() {
	if g.selected < 0 || g.selected >= len(g.entries) {
		return
	}

	name := g.entries[g.selected].ProcessName
	if err := g.control.RemoveWatch(name); err != nil {
		g.showError(err)
		return
	}
	g.refresh()
}

func (g *GUI) refresh() {
	entries, err := g.control.ListWatches()
	if err != nil {
		g.logger.Warn("failed to list watches", zap.Error(err))
		return
	}
	g.setEntries(entries)
}

func (g *GUI) setEntries(entries []watchlist.Entry) {
	g.list.UnselectAll()

	g.entries = entries
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.String()
	}
	if err := g.listData.Set(labels); err != nil {
		g.logger.Warn("failed to update watch list view", zap.Error(err))
	}
}

func (g *GUI) applyStatus(st monitor.Status) {
	g.setEntries(st.Watches)
	g.statusLabel.SetText(statusText(st))
}

func statusText(st monitor.Status) string {
	switch {
	case st.State == monitor.Overridden:
		return fmt.Sprintf("Active: %s", st.Active)
	case st.Ticking:
		return fmt.Sprintf("Watching %d program(s)", len(st.Watches))
	default:
		return "Idle"
	}
}

func (g *GUI) showOnLaunchChanged(checked bool) {
	if g.syncing || g.settings == nil {
		return
	}

	s := g.settings.Settings()
	s.ShowWindowOnLaunch = checked
	if err := g.settings.SaveSettings(s); err != nil {
		g.showError(err)
	}
}

func (g *GUI) startWithOSChanged(checked bool) {
	if g.syncing {
		return
	}

	if g.setAutostart != nil {
		if err := g.setAutostart(checked); err != nil {
			g.showError(fmt.Errorf("failed to update startup setting: %w", err))
			g.syncing = true
			g.startCheck.SetChecked(!checked)
			g.syncing = false
			return
		}
	}

	if g.settings == nil {
		return
	}
	s := g.settings.Settings()
	s.StartWithOS = checked
	if err := g.settings.SaveSettings(s); err != nil {
		g.showError(err)
	}
}

func (g *GUI) showError(err error) {
	g.logger.Warn("gui error", zap.Error(err))
	dialog.ShowError(err, g.window)
}

// quit hands shutdown to the service. The caller quits the app once the
// original display mode has been restored.
func (g *GUI) quit() {
	g.logger.Info("quit requested from tray")
	g.control.RequestShutdown()
}
