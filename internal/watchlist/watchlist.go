// Package watchlist holds the set of watched processes and the resolution each
// one should force while it is running.
package watchlist

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Resolution bounds accepted for a watch entry.
const (
	MinWidth  = 300
	MaxWidth  = 7680
	MinHeight = 200
	MaxHeight = 4320
)

var (
	// ErrDuplicateKey is returned when adding a process name that is already watched.
	ErrDuplicateKey = errors.New("process is already being watched")
	// ErrNotFound is returned when removing a process name that is not watched.
	ErrNotFound = errors.New("process is not being watched")
	// ErrInvalidEntry is returned for empty names or out of range resolutions.
	ErrInvalidEntry = errors.New("invalid watch entry")
)

// Entry maps a process name to the resolution forced while it runs.
type Entry struct {
	ProcessName string `json:"process_name" yaml:"process_name"`
	Width       int    `json:"width"        yaml:"width"`
	Height      int    `json:"height"       yaml:"height"`
}

// Validate checks the name and the resolution bounds.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ProcessName) == "" {
		return fmt.Errorf("%w: process name is required", ErrInvalidEntry)
	}
	if e.Width < MinWidth || e.Width > MaxWidth {
		return fmt.Errorf("%w: width %d outside [%d, %d]", ErrInvalidEntry, e.Width, MinWidth, MaxWidth)
	}
	if e.Height < MinHeight || e.Height > MaxHeight {
		return fmt.Errorf("%w: height %d outside [%d, %d]", ErrInvalidEntry, e.Height, MinHeight, MaxHeight)
	}
	return nil
}

// SameSize reports whether both entries target the same resolution.
func (e Entry) SameSize(other Entry) bool {
	return e.Width == other.Width && e.Height == other.Height
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%dx%d)", e.ProcessName, e.Width, e.Height)
}

// List is an ordered set of entries keyed by process name.
// It is not safe for concurrent use; the monitor service owns it.
type List struct {
	entries []Entry
}

// New builds a list from entries, rejecting invalid entries and duplicates.
func New(entries ...Entry) (*List, error) {
	l := &List{}
	for _, e := range entries {
		if _, err := l.Add(e.ProcessName, e.Width, e.Height); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends a new entry. becameNonEmpty is true when this was the first entry.
func (l *List) Add(name string, width, height int) (becameNonEmpty bool, err error) {
	e := Entry{ProcessName: strings.TrimSpace(name), Width: width, Height: height}
	if err := e.Validate(); err != nil {
		return false, err
	}
	if l.indexOf(e.ProcessName) >= 0 {
		return false, fmt.Errorf("%w: %s", ErrDuplicateKey, e.ProcessName)
	}
	l.entries = append(l.entries, e)
	return len(l.entries) == 1, nil
}

// Remove deletes the entry for name. becameEmpty is true when it was the last entry.
func (l *List) Remove(name string) (becameEmpty bool, err error) {
	i := l.indexOf(strings.TrimSpace(name))
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return len(l.entries) == 0, nil
}

// Get returns the entry for name.
func (l *List) Get(name string) (Entry, bool) {
	i := l.indexOf(name)
	if i < 0 {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Entries returns a sequence over the entries present at call time.
// Later mutations of the list do not affect an already returned sequence,
// and the sequence can be ranged over more than once.
func (l *List) Entries() iter.Seq[Entry] {
	snapshot := l.Snapshot()
	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the entries in insertion order.
func (l *List) Snapshot() []Entry {
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *List) Len() int {
	return len(l.entries)
}

// Equal reports whether both lists hold the same entries in the same order.
func (l *List) Equal(other *List) bool {
	return slices.Equal(l.entries, other.entries)
}

func (l *List) indexOf(name string) int {
	return slices.IndexFunc(l.entries, func(e Entry) bool {
		return e.ProcessName == name
	})
}

// ParseResolution parses a resolution string like "1920x1080".
func ParseResolution(s string) (width, height int, err error) {
	dimParts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(dimParts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q (expected WIDTHxHEIGHT)", s)
	}

	width, err = strconv.Atoi(dimParts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %w", err)
	}

	height, err = strconv.Atoi(dimParts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %w", err)
	}

	return width, height, nil
}
