package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// sink is shared by a logger and every child derived from it, so level and
// color changes on the root apply to all of them.
type sink struct {
	mu       sync.Mutex
	level    Level
	writer   io.Writer
	noColor  bool
	showTime bool
}

// logger implements the Logger interface
type logger struct {
	out    *sink
	fields map[string]interface{}
	prefix string
}

// Colors are kept as attributes; paint builds a fresh *color.Color per call
// so sinks never share mutable color state.
var (
	timeColor   = []color.Attribute{color.FgHiBlack}
	prefixColor = []color.Attribute{color.FgCyan}
	fieldColor  = []color.Attribute{color.FgHiBlack}
	levelColors = map[Level][]color.Attribute{
		DebugLevel: {color.FgHiBlack},
		InfoLevel:  {color.FgGreen},
		WarnLevel:  {color.FgYellow},
		ErrorLevel: {color.FgRed},
		FatalLevel: {color.FgRed, color.Bold},
	}
)

// Default logger instance
var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a new logger writing to stderr
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stderr,
		NoColor:  false,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	return &logger{
		out: &sink{
			level:    cfg.Level,
			writer:   cfg.Writer,
			noColor:  cfg.NoColor,
			showTime: cfg.ShowTime,
		},
		fields: make(map[string]interface{}),
	}
}

// Discard returns a logger that drops every message
func Discard() Logger {
	return NewWithConfig(Config{Level: FatalLevel + 1, Writer: io.Discard, NoColor: true})
}

// Default returns the process-wide logger
func Default() Logger { return defaultLogger }

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.level = level
		l.out.mu.Unlock()
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.noColor = noColor
		l.out.mu.Unlock()
	}
}

// SetOutput redirects the global logger
func SetOutput(w io.Writer) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.writer = w
		l.out.mu.Unlock()
	}
}

// ColorEnabled reports whether the global logger emits colors
func ColorEnabled() bool {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return !l.out.noColor
	}
	return false
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

// paint applies attrs unless colors are disabled
func (s *sink) paint(attrs []color.Attribute, text string) string {
	if s.noColor {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

func (l *logger) log(level Level, args ...interface{}) {
	s := l.out
	s.mu.Lock()

	if level < s.level {
		s.mu.Unlock()
		return
	}

	var parts []string

	if s.showTime {
		parts = append(parts, s.paint(timeColor, time.Now().Format("15:04:05")))
	}

	parts = append(parts, s.paint(levelColors[level], levelString(level)))

	if l.prefix != "" {
		parts = append(parts, s.paint(prefixColor, "["+l.prefix+"]"))
	}

	// Fields are sorted so output is stable
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, s.paint(fieldColor, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, fmt.Sprint(args...))

	_, _ = fmt.Fprintln(s.writer, strings.Join(parts, " "))

	s.mu.Unlock()

	// Exit on fatal (after unlocking mutex)
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	l.log(level, fmt.Sprintf(format, args...))
}

func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO "
	case WarnLevel:
		return "WARN "
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l *logger) Debug(args ...interface{}) { l.log(DebugLevel, args...) }

func (l *logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }

func (l *logger) Info(args ...interface{}) { l.log(InfoLevel, args...) }

func (l *logger) Infof(format string, args ...interface{}) { l.logf(InfoLevel, format, args...) }

func (l *logger) Warn(args ...interface{}) { l.log(WarnLevel, args...) }

func (l *logger) Warnf(format string, args ...interface{}) { l.logf(WarnLevel, format, args...) }

func (l *logger) Error(args ...interface{}) { l.log(ErrorLevel, args...) }

func (l *logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }

func (l *logger) Fatal(args ...interface{}) { l.log(FatalLevel, args...) }

func (l *logger) Fatalf(format string, args ...interface{}) { l.logf(FatalLevel, format, args...) }

// child copies the receiver's fields into a new logger on the same sink
func (l *logger) child(prefix string) *logger {
	c := &logger{
		out:    l.out,
		fields: make(map[string]interface{}, len(l.fields)),
		prefix: prefix,
	}
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return c
}

func (l *logger) WithField(key string, value interface{}) Logger {
	c := l.child(l.prefix)
	c.fields[key] = value
	return c
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	c := l.child(l.prefix)
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

func (l *logger) WithPrefix(prefix string) Logger {
	return l.child(prefix)
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
