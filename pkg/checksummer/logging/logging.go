// Package logging provides component loggers backed by a rotating log file
// and an optional console sink.
//
// Loggers can be obtained at any time. Until Init is called they discard
// everything; afterwards the same loggers write with the configured levels,
// so packages may call Get while they are constructed.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("engine").Info("phase finished", "phase", "stat", "records", 1200)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = []struct {
	name  string
	charm log.Level
}{
	LevelDebug: {"debug", log.DebugLevel},
	LevelInfo:  {"info", log.InfoLevel},
	LevelWarn:  {"warn", log.WarnLevel},
	LevelError: {"error", log.ErrorLevel},
}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "unknown"
	}
	return levels[l].name
}

func (l Level) charm() log.Level {
	if l < LevelDebug || l > LevelError {
		return log.InfoLevel
	}
	return levels[l].charm
}

// ErrInvalidLevel is returned for a level name that is not recognised.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name case-insensitively. "warning" is accepted
// for warn.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		name = "warn"
	}
	for l, def := range levels {
		if def.name == name {
			return Level(l), nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default level for every component.
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	Rotation RotationConfig

	// Components overrides the file level per component name.
	Components map[string]string

	// ConsoleLevel enables the console sink at that level. Empty disables it.
	ConsoleLevel string

	// Console is the console destination. Nil means os.Stderr.
	Console io.Writer
}

// Logger writes structured entries for one component. It is safe for
// concurrent use.
type Logger struct {
	component string
	fields    []interface{}

	mu    sync.Mutex
	gen   uint64
	sinks []*log.Logger
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(LevelDebug, msg, args) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...interface{}) { l.emit(LevelInfo, msg, args) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...interface{}) { l.emit(LevelWarn, msg, args) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(LevelError, msg, args) }

// With returns a logger for the same component that adds args to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	return &Logger{component: l.component, fields: fields}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// emit holds the registry read lock while writing so Close cannot release
// the file underneath it.
func (l *Logger) emit(level Level, msg string, args []interface{}) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, sink := range l.resolve() {
		sink.Log(level.charm(), msg, args...)
	}
}

// resolve rebuilds the sinks when the registry changed since the last call.
// reg.mu must be held.
func (l *Logger) resolve() []*log.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gen != reg.gen {
		l.sinks = reg.sinksFor(l.component, l.fields)
		l.gen = reg.gen
	}
	return l.sinks
}

type registry struct {
	mu  sync.RWMutex
	gen uint64

	writer     *RotatingWriter
	level      Level
	components map[string]Level

	console      io.Writer
	consoleLevel Level

	loggers map[string]*Logger
}

var reg = &registry{gen: 1, loggers: make(map[string]*Logger)}

// sinksFor returns nil before Init, which makes the logger silent.
func (r *registry) sinksFor(component string, fields []interface{}) []*log.Logger {
	if r.writer == nil {
		return nil
	}

	level := r.level
	if override, ok := r.components[component]; ok {
		level = override
	}

	sinks := []*log.Logger{newSink(r.writer, level, time.RFC3339, component, fields)}
	if r.console != nil {
		sinks = append(sinks, newSink(r.console, r.consoleLevel, time.TimeOnly, component, fields))
	}
	return sinks
}

func newSink(w io.Writer, level Level, timeFormat, component string, fields []interface{}) *log.Logger {
	sink := log.NewWithOptions(w, log.Options{
		Level:           level.charm(),
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Prefix:          component,
	})
	if len(fields) > 0 {
		sink = sink.With(fields...)
	}
	return sink
}

// Init opens the log file and applies cfg to every logger, including those
// obtained earlier. Calling Init again replaces the previous configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for name, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", name, err)
		}
		components[name] = parsed
	}

	var console io.Writer
	var consoleLevel Level
	if cfg.ConsoleLevel != "" {
		if consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = cfg.Console
		if console == nil {
			console = os.Stderr
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.writer != nil {
		if err := reg.writer.Close(); err != nil {
			_ = writer.Close()
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}

	reg.writer = writer
	reg.level = level
	reg.components = components
	reg.console = console
	reg.consoleLevel = consoleLevel
	reg.gen++
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	reg.mu.RLock()
	logger, ok := reg.loggers[component]
	reg.mu.RUnlock()
	if ok {
		return logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if logger, ok := reg.loggers[component]; ok {
		return logger
	}
	logger = &Logger{component: component}
	reg.loggers[component] = logger
	return logger
}

// Close flushes and closes the log file. Loggers stay usable and discard
// entries until the next Init.
func Close() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.writer == nil {
		return nil
	}

	err := reg.writer.Close()
	reg.writer = nil
	reg.console = nil
	reg.components = nil
	reg.gen++
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/checksummer/checksummer.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "checksummer", "checksummer.log")
}
