package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const (
	// FieldPackage is the name of the package that emits the log entry.
	FieldPackage = "package"

	// FieldFunction is the name of the function that emits the log entry.
	FieldFunction = "function"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Config
type Config struct {
	Level  string
	Format string
}

// Log is a structured leveled logger.
//
// Error and Errorf take the error as the first argument,
// so the failure is always attached to the entry.
type Log interface {
	WithField(key string, value interface{}) Log
	WithFields(fields Fields) Log

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(err error, args ...interface{})
	Error(err error, args ...interface{})
	Errorf(err error, format string, args ...interface{})
}

// entry
type entry struct {
	e *logrus.Entry
}

// NewLogger creates a new logger that writes to stdout.
func NewLogger(conf Config) (Log, error) {
	return newLogger(conf, os.Stdout)
}

// NewNullLogger creates a logger that discards the output
// and the hook that captures all emitted entries.
func NewNullLogger() (Log, *logtest.Hook) {
	l, hook := logtest.NewNullLogger()
	return &entry{e: logrus.NewEntry(l)}, hook
}

func newLogger(conf Config, out io.Writer) (Log, error) {
	l := logrus.New()
	l.SetOutput(out)

	level := conf.Level
	if level == "" {
		level = logrus.InfoLevel.String()
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)

	switch strings.ToLower(conf.Format) {
	case "", FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", conf.Format)
	}

	return &entry{e: logrus.NewEntry(l)}, nil
}

func (l *entry) WithField(key string, value interface{}) Log {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) WithFields(fields Fields) Log {
	return &entry{e: l.e.WithFields(logrus.Fields(fields))}
}

func (l *entry) Trace(args ...interface{}) {
	l.e.Trace(args...)
}

func (l *entry) Debug(args ...interface{}) {
	l.e.Debug(args...)
}

func (l *entry) Info(args ...interface{}) {
	l.e.Info(args...)
}

func (l *entry) Infof(format string, args ...interface{}) {
	l.e.Infof(format, args...)
}

func (l *entry) Warn(err error, args ...interface{}) {
	l.withError(err).Warn(args...)
}

func (l *entry) Error(err error, args ...interface{}) {
	l.withError(err).Error(args...)
}

func (l *entry) Errorf(err error, format string, args ...interface{}) {
	l.withError(err).Errorf(format, args...)
}

func (l *entry) withError(err error) *logrus.Entry {
	if err == nil {
		return l.e
	}
	return l.e.WithError(err)
}
