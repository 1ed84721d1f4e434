// Package logger provides a leveled JSON logger on top of go-kit/log.
package logger

import (
	"errors"
	"fmt"
	"io"

	kitlog "github.com/go-kit/log"
)

// ErrInvalidLogLevel indicates an unrecognized level name.
var ErrInvalidLogLevel = errors.New("logger: invalid log level")

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) (level, error) {
	switch s {
	case "debug":
		return levelDebug, nil
	case "info", "":
		return levelInfo, nil
	case "warn":
		return levelWarn, nil
	case "error":
		return levelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}

// Logger is the logging surface used across the service.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type logger struct {
	kit kitlog.Logger
	min level
}

// New returns a Logger writing JSON records to out, filtered to the given
// minimum level ("debug", "info", "warn", "error"; empty means "info").
func New(out io.Writer, levelStr string) (Logger, error) {
	min, err := parseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	l := kitlog.NewJSONLogger(kitlog.NewSyncWriter(out))
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
	return &logger{kit: l, min: min}, nil
}

func (l *logger) Debug(msg string) { l.log(levelDebug, "debug", msg) }
func (l *logger) Info(msg string)  { l.log(levelInfo, "info", msg) }
func (l *logger) Warn(msg string)  { l.log(levelWarn, "warn", msg) }
func (l *logger) Error(msg string) { l.log(levelError, "error", msg) }

func (l *logger) log(lv level, name, msg string) {
	if lv < l.min {
		return
	}
	l.kit.Log("level", name, "message", msg)
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() Logger {
	return &logger{kit: kitlog.NewNopLogger(), min: levelError + 1}
}
