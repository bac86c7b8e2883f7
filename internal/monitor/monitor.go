// Package monitor runs the tick loop that overrides the display resolution while
// a watched process runs and restores it otherwise.
//
// All state lives on the goroutine executing Service.Run. Ticks and every call
// of the control surface (AddWatch, RemoveWatch, ListWatches, ...) are executed
// one at a time on that goroutine, so a tick never overlaps another tick or a
// watch list mutation.
package monitor

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/watchlist"
)

const (
	// DefaultInterval is the tick interval used when Options.Interval is unset.
	DefaultInterval = time.Second
	// DefaultShutdownTimeout bounds the restore attempt made on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	// ErrStopped is returned by control calls once the service is shutting down.
	ErrStopped = errors.New("monitor service has stopped")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("monitor service is already running")
)

// State is the display state the service maintains.
type State int

const (
	// Idle means the display is at the original mode.
	Idle State = iota
	// Overridden means the display is at a watch entry's target resolution.
	Overridden
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Overridden:
		return "overridden"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the service.
type Status struct {
	State   State
	Active  watchlist.Entry // zero unless State is Overridden
	Ticking bool
	Watches []watchlist.Entry
}

// Display applies and restores display modes.
type Display interface {
	ApplyMode(width, height int) error
	RestoreOriginal() error
}

// Matcher picks the watch entry to enforce.
type Matcher interface {
	FindMatch(entries iter.Seq[watchlist.Entry]) (watchlist.Entry, bool, error)
}

// Store persists the watch list.
type Store interface {
	SaveWatches(entries []watchlist.Entry) error
}

// Options configures a Service.
type Options struct {
	Interval        time.Duration
	ShutdownTimeout time.Duration
	Display         Display
	Matcher         Matcher
	Store           Store // optional
	Logger          *zap.Logger
	// OnChange is called on the service goroutine after the state or the watch
	// list changed. It must not call back into the service synchronously.
	OnChange func(Status)
}

// Service owns the watch list and the display state.
type Service struct {
	interval        time.Duration
	shutdownTimeout time.Duration
	display         Display
	matcher         Matcher
	store           Store
	logger          *zap.Logger
	onChange        func(Status)

	list   *watchlist.List
	state  State
	active watchlist.Entry
	ticker *time.Ticker

	ops          chan func()
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	started      atomic.Bool
}

// New creates a service for list. The service takes ownership of list.
func New(list *watchlist.List, opts Options) *Service {
	if list == nil {
		list, _ = watchlist.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		interval:        opts.Interval,
		shutdownTimeout: opts.ShutdownTimeout,
		display:         opts.Display,
		matcher:         opts.Matcher,
		store:           opts.Store,
		logger:          opts.Logger,
		onChange:        opts.OnChange,
		list:            list,
		state:           Idle,
		ops:             make(chan func()),
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Run executes the service loop until ctx is cancelled or RequestShutdown is
// called. Before returning it restores the original display mode and saves the
// watch list.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	s.logger.Info("monitor service started",
		zap.Int("watches", s.list.Len()),
		zap.Duration("interval", s.interval))

	if s.list.Len() > 0 {
		s.startTicking()
	}
	s.notify()

	for {
		var tickC <-chan time.Time
		if s.ticker != nil {
			tickC = s.ticker.C
		}

		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case <-s.shutdown:
			s.teardown()
			return nil
		case op := <-s.ops:
			op()
		case <-tickC:
			s.tick()
		}
	}
}

// RequestShutdown asks Run to restore the display and return. It does not wait;
// use Done for that.
func (s *Service) RequestShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}

// Done is closed once Run has returned.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// AddWatch adds a watch entry and persists the list.
func (s *Service) AddWatch(name string, width, height int) error {
	var err error
	if stopErr := s.do(func() { err = s.addWatch(name, width, height) }); stopErr != nil {
		return stopErr
	}
	return err
}

// RemoveWatch removes a watch entry and persists the list.
func (s *Service) RemoveWatch(name string) error {
	var err error
	if stopErr := s.do(func() { err = s.removeWatch(name) }); stopErr != nil {
		return stopErr
	}
	return err
}

// ListWatches returns the current watch entries in order.
func (s *Service) ListWatches() ([]watchlist.Entry, error) {
	var entries []watchlist.Entry
	if err := s.do(func() { entries = s.list.Snapshot() }); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceWatches swaps in a whole new watch list, as read back from the config
// file after an external edit. The list is not persisted again.
func (s *Service) ReplaceWatches(entries []watchlist.Entry) error {
	list, err := watchlist.New(entries...)
	if err != nil {
		return err
	}
	return s.do(func() { s.replaceWatches(list) })
}

// Status returns a snapshot of the service.
func (s *Service) Status() (Status, error) {
	var st Status
	if err := s.do(func() { st = s.status() }); err != nil {
		return Status{}, err
	}
	return st, nil
}

// do runs fn on the service goroutine and waits for it. It blocks until Run is
// active.
func (s *Service) do(fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.ops <- op:
	case <-s.shutdown:
		return ErrStopped
	case <-s.done:
		return ErrStopped
	}

	<-finished
	return nil
}

func (s *Service) addWatch(name string, width, height int) error {
	becameNonEmpty, err := s.list.Add(name, width, height)
	if err != nil {
		return err
	}

	s.logger.Info("watch added",
		zap.String("process", name),
		zap.Int("width", width),
		zap.Int("height", height))

	s.persist()
	if becameNonEmpty {
		s.startTicking()
	}
	s.notify()
	return nil
}

func (s *Service) removeWatch(name string) error {
	becameEmpty, err := s.list.Remove(name)
	if err != nil {
		return err
	}

	s.logger.Info("watch removed", zap.String("process", name))

	s.persist()
	if becameEmpty {
		s.stopWhenIdle()
	}
	s.notify()
	return nil
}

func (s *Service) replaceWatches(list *watchlist.List) {
	if s.list.Equal(list) {
		return
	}

	s.list = list
	s.logger.Info("watch list reloaded", zap.Int("watches", list.Len()))

	if list.Len() > 0 {
		s.startTicking()
	} else {
		s.stopWhenIdle()
	}
	s.notify()
}

// stopWhenIdle restores the display if needed and stops the tick loop once the
// display is back at the original mode. If the restore fails the loop keeps
// running; with an empty list the next tick retries the restore.
func (s *Service) stopWhenIdle() {
	if s.state == Overridden {
		s.restore()
	}
	if s.state == Idle {
		s.stopTicking()
	}
}

func (s *Service) tick() {
	match, found, err := s.matcher.FindMatch(s.list.Entries())
	if err != nil {
		s.logger.Warn("error checking running processes", zap.Error(err))
		return
	}

	prevState, prevActive := s.state, s.active

	switch {
	case found && s.state == Idle:
		s.apply(match)
	case found && !match.SameSize(s.active):
		// A different watched process now wins with another target size.
		s.apply(match)
	case found:
		s.active = match
	case s.state == Overridden:
		s.restore()
	}

	if s.list.Len() == 0 && s.state == Idle {
		s.stopTicking()
	}

	if s.state != prevState || s.active != prevActive {
		s.notify()
	}
}

func (s *Service) apply(e watchlist.Entry) {
	if err := s.display.ApplyMode(e.Width, e.Height); err != nil {
		s.logger.Warn("failed to change resolution, retrying next tick",
			zap.String("process", e.ProcessName),
			zap.Error(err))
		return
	}

	s.state = Overridden
	s.active = e
	s.logger.Info("resolution overridden",
		zap.String("process", e.ProcessName),
		zap.Int("width", e.Width),
		zap.Int("height", e.Height))
}

func (s *Service) restore() {
	if err := s.display.RestoreOriginal(); err != nil {
		s.logger.Warn("failed to restore resolution, retrying next tick", zap.Error(err))
		return
	}

	s.logger.Info("original resolution restored", zap.String("process", s.active.ProcessName))
	s.state = Idle
	s.active = watchlist.Entry{}
}

// teardown runs when Run exits. The restore is attempted whatever the state is,
// and bounded by the shutdown timeout.
func (s *Service) teardown() {
	s.logger.Info("monitor service shutting down", zap.Stringer("state", s.state))
	s.stopTicking()

	errc := make(chan error, 1)
	go func() {
		errc <- s.display.RestoreOriginal()
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.logger.Error("failed to restore resolution on shutdown", zap.Error(err))
		} else {
			s.state = Idle
			s.active = watchlist.Entry{}
		}
	case <-time.After(s.shutdownTimeout):
		s.logger.Error("timed out restoring resolution on shutdown", zap.Duration("timeout", s.shutdownTimeout))
	}

	s.persist()
	s.notify()
	s.logger.Info("monitor service stopped")
}

func (s *Service) startTicking() {
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.interval)
	s.logger.Debug("tick loop started")
}

func (s *Service) stopTicking() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.logger.Debug("tick loop stopped")
}

func (s *Service) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.SaveWatches(s.list.Snapshot()); err != nil {
		s.logger.Warn("failed to save watch list", zap.Error(err))
	}
}

func (s *Service) status() Status {
	return Status{
		State:   s.state,
		Active:  s.active,
		Ticking: s.ticker != nil,
		Watches: s.list.Snapshot(),
	}
}

func (s *Service) notify() {
	if s.onChange != nil {
		s.onChange(s.status())
	}
}
