// Package extensions provides engine extensions: Extension implementations
// that observe transaction and collect-cycles boundaries.
package extensions

import (
	"context"
	"log/slog"
	"time"

	sodium "github.com/pumped-fn/sodium-go"
)

// LoggingExtension logs every outermost transaction at slog.LevelDebug with
// its duration, every cycle-collection pass's stats at slog.LevelDebug, and
// a transaction's propagation error at slog.LevelError.
type LoggingExtension struct {
	sodium.BaseExtension
	log *slog.Logger
}

// NewLoggingExtension creates a logging extension writing through logger.
// A nil logger falls back to slog.Default().
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: sodium.NewBaseExtension("logging"),
		log:           logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() error, op *sodium.Operation) error {
	start := time.Now()
	e.log.Debug("operation starting", "extension", e.Name(), "kind", op.Kind)
	err := next()
	dur := time.Since(start)
	if err != nil {
		e.log.Error("operation failed", "extension", e.Name(), "kind", op.Kind, "duration", dur, "error", err)
	} else {
		e.log.Debug("operation completed", "extension", e.Name(), "kind", op.Kind, "duration", dur)
	}
	return err
}

func (e *LoggingExtension) OnTransactionError(err error, op *sodium.Operation) {
	e.log.Error("transaction panicked", "extension", e.Name(), "error", err)
}

func (e *LoggingExtension) OnCyclesCollected(stats sodium.CollectStats, op *sodium.Operation) {
	e.log.Debug("cycles collected", "extension", e.Name(), "roots_scanned", stats.RootsScanned, "nodes_freed", stats.NodesFreed)
}
