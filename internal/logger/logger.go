package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with the Printf/Println surface the miner uses
type Logger struct {
	*logrus.Logger
}

// Fields is an alias for structured log fields
type Fields = logrus.Fields

// FieldLogger is satisfied by both *Logger and its WithFields entries
type FieldLogger = logrus.FieldLogger

// New creates a new logger
func New() *Logger {
	return NewWriter(os.Stdout)
}

// NewWriter creates a new logger that writes to the provided writer
func NewWriter(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{Logger: l}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return NewWriter(io.Discard)
}

// SetVerbose enables debug output
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
}

// SetFormat selects "json" or "text" output
func (l *Logger) SetFormat(format string) {
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
