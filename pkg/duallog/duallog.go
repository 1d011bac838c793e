// Package duallog splits output in two: the full structured log goes to
// STDOUT, a short human stream of progress and hits goes to STDERR.
package duallog

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var (
	console               = zerolog.Nop()
	consoleDest io.Writer = os.Stderr
)

// Setup routes the global logger to STDOUT and the console stream to
// STDERR. A terminal on STDERR gets zerolog's pretty console writer.
func Setup(level zerolog.Level) {
	var stderr io.Writer = os.Stderr
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		stderr = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	SetupWriters(os.Stdout, stderr, level)
}

// SetupWriters is Setup with explicit destinations
func SetupWriters(stdout, stderr io.Writer, level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(stdout).With().Timestamp().Logger()

	consoleDest = stderr
	console = zerolog.New(stderr).With().Timestamp().Logger()
}

// Progress is an attempt-level line for the console only
func Progress() *zerolog.Event {
	return console.Info()
}

// Success records a hit in the log and on the console
func Success() *DualEvent {
	return &DualEvent{log: zlog.Info(), console: console.Info()}
}

// Warn records a warning in the log and on the console
func Warn() *DualEvent {
	return &DualEvent{log: zlog.Warn(), console: console.Warn()}
}

// DualEvent mirrors every field onto a log event and a console event
type DualEvent struct {
	log     *zerolog.Event
	console *zerolog.Event
}

func (d *DualEvent) both(fn func(e *zerolog.Event)) *DualEvent {
	fn(d.log)
	fn(d.console)
	return d
}

func (d *DualEvent) Str(key, val string) *DualEvent {
	return d.both(func(e *zerolog.Event) { e.Str(key, val) })
}

func (d *DualEvent) Strs(key string, vals []string) *DualEvent {
	return d.both(func(e *zerolog.Event) { e.Strs(key, vals) })
}

func (d *DualEvent) Int(key string, val int) *DualEvent {
	return d.both(func(e *zerolog.Event) { e.Int(key, val) })
}

func (d *DualEvent) Dur(key string, val time.Duration) *DualEvent {
	return d.both(func(e *zerolog.Event) { e.Dur(key, val) })
}

func (d *DualEvent) Err(err error) *DualEvent {
	return d.both(func(e *zerolog.Event) { e.Err(err) })
}

// Msg sends both events
func (d *DualEvent) Msg(msg string) {
	d.log.Msg(msg)
	d.console.Msg(msg)
}

// Msgf sends both events with a formatted message
func (d *DualEvent) Msgf(format string, v ...any) {
	d.log.Msgf(format, v...)
	d.console.Msgf(format, v...)
}

// Console returns the STDERR destination for tables and reports
func Console() io.Writer {
	return consoleDest
}
