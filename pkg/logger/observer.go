package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Logs gives tests access to what an observer logger recorded.
type Logs interface {
	Len() int
	All() []observer.LoggedEntry
	TakeAll() []observer.LoggedEntry

	// FilterMessage keeps the entries logged with exactly msg.
	FilterMessage(msg string) *observer.ObservedLogs

	// FilterFieldKey keeps the entries carrying a field named key.
	FilterFieldKey(key string) *observer.ObservedLogs
}

var _ Logs = (*observer.ObservedLogs)(nil)

// NewObserverLogger returns a logger that records entries at level and above
// in memory. An empty or unknown level records everything.
func NewObserverLogger(level string) (*ZapLogger, Logs) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	core, logs := observer.New(lvl)
	return &ZapLogger{Logger: zap.New(core)}, logs
}
