// Package process answers which watched processes are currently running.
package process

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/watchlist"
)

// Querier counts running processes by executable name.
type Querier interface {
	// Running returns the number of running instances whose executable name is
	// exactly name (case-sensitive).
	Running(name string) (int, error)
}

// Watcher finds the watch entry that should currently be enforced.
type Watcher struct {
	querier Querier
	logger  *zap.Logger
}

// NewWatcher creates a watcher backed by querier.
func NewWatcher(querier Querier, logger *zap.Logger) *Watcher {
	return &Watcher{querier: querier, logger: logger}
}

// FindMatch returns the first entry, in list order, with at least one running
// instance. When several watched processes run at once only the first one wins;
// there is no priority beyond list order.
//
// Every call queries the OS. A query error stops the scan and is returned.
func (w *Watcher) FindMatch(entries iter.Seq[watchlist.Entry]) (watchlist.Entry, bool, error) {
	for e := range entries {
		count, err := w.querier.Running(e.ProcessName)
		if err != nil {
			return watchlist.Entry{}, false, fmt.Errorf("failed to check if process %s is running: %w", e.ProcessName, err)
		}
		if count > 0 {
			w.logger.Debug("watched process running",
				zap.String("process", e.ProcessName),
				zap.Int("instances", count))
			return e, true, nil
		}
	}
	return watchlist.Entry{}, false, nil
}
