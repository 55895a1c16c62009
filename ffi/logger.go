package ffi

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// LogCallback receives one formatted log line.
type LogCallback func(message string)

// LogCallbacks are the host loggers for each level. Panic and fatal entries
// go to Error. Nil callbacks drop their level.
type LogCallbacks struct {
	Error LogCallback
	Warn  LogCallback
	Info  LogCallback
	Debug LogCallback
	Trace LogCallback
}

// HostLogger is a logrus hook forwarding entries to the host.
type HostLogger struct {
	callbacks LogCallbacks
}

// NewHostLogger creates a hook for the given callbacks.
func NewHostLogger(callbacks LogCallbacks) *HostLogger {
	return &HostLogger{callbacks: callbacks}
}

// Levels implements log.Hook
func (h *HostLogger) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements log.Hook
func (h *HostLogger) Fire(entry *log.Entry) error {
	var cb LogCallback
	switch entry.Level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		cb = h.callbacks.Error
	case log.WarnLevel:
		cb = h.callbacks.Warn
	case log.InfoLevel:
		cb = h.callbacks.Info
	case log.DebugLevel:
		cb = h.callbacks.Debug
	case log.TraceLevel:
		cb = h.callbacks.Trace
	}
	if cb != nil {
		cb(formatEntry(entry))
	}
	return nil
}

// formatEntry renders the message followed by its fields in key order.
func formatEntry(entry *log.Entry) string {
	if len(entry.Data) == 0 {
		return entry.Message
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}

var loggerInstalled atomic.Bool

// InstallHostLogger adds a HostLogger to logger and opens it up to every
// level. Only the first call in a process installs anything, the result
// tells whether this one did.
func InstallHostLogger(logger *log.Logger, callbacks LogCallbacks) bool {
	if !loggerInstalled.CompareAndSwap(false, true) {
		return false
	}
	logger.AddHook(NewHostLogger(callbacks))
	logger.SetLevel(log.TraceLevel)
	return true
}
