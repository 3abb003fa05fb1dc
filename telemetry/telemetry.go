// Package telemetry is the logging seam the maintenance subsystem
// uses for debug-level entries. The cache emits one when a sync row
// names a parent maintenance it does not hold; sync and update calls
// are not otherwise bracketed by entries. It mirrors the teacher's
// annotations.Handler/Event split: callers emit structured Events, a
// Handler renders them.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Severity is a log level, ordered least to most severe.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Err
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Err:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a single structured log entry.
type Event struct {
	Severity Severity
	Name     string
	Data     map[string]any
	At       time.Time
}

// Handler consumes Events as they occur.
type Handler interface {
	Handle(Event)
}

// Logger emits Events to a Handler, filtering by a minimum severity.
type Logger struct {
	handler Handler
	min     Severity
}

// New returns a Logger bound to handler, emitting events at severity
// min or above.
func New(handler Handler, min Severity) *Logger {
	if handler == nil {
		handler = NewWriterHandler(os.Stderr)
	}
	return &Logger{handler: handler, min: min}
}

// Log emits an event if sev >= the logger's minimum severity.
func (l *Logger) Log(sev Severity, name string, data map[string]any) {
	if l == nil || sev < l.min {
		return
	}
	l.handler.Handle(Event{Severity: sev, Name: name, Data: data, At: time.Now()})
}

func (l *Logger) Debug(name string, data map[string]any) { l.Log(Debug, name, data) }
func (l *Logger) Info(name string, data map[string]any)  { l.Log(Info, name, data) }
func (l *Logger) Warn(name string, data map[string]any)  { l.Log(Warn, name, data) }
func (l *Logger) Err(name string, data map[string]any)   { l.Log(Err, name, data) }

// WriterHandler renders events as colorized, human-readable lines,
// auto-detecting terminal support the same way the teacher's
// annotations.OutputFormatter does.
type WriterHandler struct {
	w        io.Writer
	useColor bool
}

// NewWriterHandler returns a Handler writing to w.
func NewWriterHandler(w io.Writer) *WriterHandler {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f)
	}
	return &WriterHandler{w: w, useColor: useColor}
}

func (h *WriterHandler) Handle(e Event) {
	label := e.Severity.String()
	if h.useColor {
		label = colorFor(e.Severity).Sprint(label)
	}
	age := humanize.Time(e.At)
	fmt.Fprintf(h.w, "[%s] %s %s %v\n", label, age, e.Name, e.Data)
}

func colorFor(s Severity) *color.Color {
	switch s {
	case Debug:
		return color.New(color.FgHiBlack)
	case Info:
		return color.New(color.FgCyan)
	case Warn:
		return color.New(color.FgYellow)
	case Err:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New()
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
