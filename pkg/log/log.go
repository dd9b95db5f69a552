// Package log provides structured logging for deagent built on zerolog.
// It exposes a small package-level API with chainable field helpers so
// callers do not depend on zerolog directly.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// InitLogger configures the package-level logger.
// When pretty is true, output is formatted for human consumption on a console;
// otherwise raw JSON lines are written (suitable for the TUI log panel or files).
func InitLogger(w io.Writer, level zerolog.Level, pretty bool) {
	if w == nil {
		w = os.Stderr
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	mu.Lock()
	logger = zerolog.New(w).With().Timestamp().Logger().Level(level)
	mu.Unlock()
}

// SetLevel changes the minimum level of the package-level logger.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	logger = logger.Level(level)
	mu.Unlock()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Entry is a log entry under construction. Fields accumulate until one of
// the level methods is called.
type Entry struct {
	ctx zerolog.Context
	err error
}

// WithField returns an entry with a single structured field attached.
func WithField(key string, value interface{}) *Entry {
	return &Entry{ctx: current().With().Interface(key, value)}
}

// WithFields returns an entry with multiple structured fields attached.
func WithFields(fields map[string]interface{}) *Entry {
	ctx := current().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Entry{ctx: ctx}
}

// WithError returns an entry with an error attached.
func WithError(err error) *Entry {
	return &Entry{ctx: current().With(), err: err}
}

// WithField adds a structured field to the entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.ctx = e.ctx.Interface(key, value)
	return e
}

// WithFields adds multiple structured fields to the entry.
func (e *Entry) WithFields(fields map[string]interface{}) *Entry {
	for k, v := range fields {
		e.ctx = e.ctx.Interface(k, v)
	}
	return e
}

// WithError attaches an error to the entry.
func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

func (e *Entry) emit(ev *zerolog.Event, msg string) {
	if e.err != nil {
		ev = ev.Err(e.err)
	}
	ev.Msg(msg)
}

// Debug logs the entry at debug level.
func (e *Entry) Debug(msg string) { l := e.ctx.Logger(); e.emit(l.Debug(), msg) }

// Info logs the entry at info level.
func (e *Entry) Info(msg string) { l := e.ctx.Logger(); e.emit(l.Info(), msg) }

// Warn logs the entry at warn level.
func (e *Entry) Warn(msg string) { l := e.ctx.Logger(); e.emit(l.Warn(), msg) }

// Error logs the entry at error level.
func (e *Entry) Error(msg string) { l := e.ctx.Logger(); e.emit(l.Error(), msg) }

// Debug logs a message at debug level without additional fields.
func Debug(msg string) { l := current(); l.Debug().Msg(msg) }

// Info logs a message at info level without additional fields.
func Info(msg string) { l := current(); l.Info().Msg(msg) }

// Warn logs a message at warn level without additional fields.
func Warn(msg string) { l := current(); l.Warn().Msg(msg) }

// Error logs a message at error level without additional fields.
func Error(msg string) { l := current(); l.Error().Msg(msg) }
