package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// Logger is the logging interface passed into every component.
type Logger interface {
	Trace(...interface{})
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
	Panic(...interface{})
	Fatal(...interface{})
	WithFields(fields map[string]interface{}) Logger
}

// LoggerImpl wraps a sirupsen/logrus entry.
type LoggerImpl struct {
	entry            *log.Entry
	service          string
	logLevelStr      string
	stackDumpOnPanic bool
}

// NewLogger creates a logger for the given service name and level string.
// Output goes to stderr. When stderr is not a terminal we switch to JSON
// formatting so downstream schedulers can parse the stream.
func NewLogger(serviceName string, level string, stackDumpOnPanic bool) *LoggerImpl {
	log.SetOutput(os.Stderr)
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		log.SetFormatter(&log.JSONFormatter{})
	}
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		fmt.Println("Error setting up logging: ", err)
		os.Exit(1)
	}
	log.SetLevel(logLevel)
	entry := log.WithFields(log.Fields{"service": serviceName})
	return &LoggerImpl{entry: entry, service: serviceName, logLevelStr: level, stackDumpOnPanic: stackDumpOnPanic}
}

// WithFields returns a child logger carrying the extra fields.
func (l *LoggerImpl) WithFields(fields map[string]interface{}) Logger {
	return &LoggerImpl{
		entry:            l.entry.WithFields(log.Fields(fields)),
		service:          l.service,
		logLevelStr:      l.logLevelStr,
		stackDumpOnPanic: l.stackDumpOnPanic,
	}
}

func (l *LoggerImpl) Trace(message ...interface{}) {
	l.entry.Trace(message...)
}

func (l *LoggerImpl) Debug(message ...interface{}) {
	l.entry.Debug(message...)
}

func (l *LoggerImpl) Info(message ...interface{}) {
	l.entry.Info(message...)
}

func (l *LoggerImpl) Warn(message ...interface{}) {
	l.entry.Warn(message...)
}

// Error logs at error level, adding a stack trace if requested via stackDumpOnPanic.
func (l *LoggerImpl) Error(message ...interface{}) {
	if l.stackDumpOnPanic {
		l.entry.WithField("stackTrace", fmt.Sprintf("%s", debug.Stack())).Error(message...)
	} else {
		l.entry.Error(message...)
	}
}

// Panic logs and panics, with a stack dump when enabled, else it downgrades
// the panic to a fatal exit so CLI users aren't shown a raw stack by default.
func (l *LoggerImpl) Panic(message ...interface{}) {
	if l.stackDumpOnPanic || l.logLevelStr == "debug" || l.logLevelStr == "trace" {
		l.entry.Panic(message...)
	} else {
		l.entry.Fatal(message...)
	}
}

func (l *LoggerImpl) Fatal(message ...interface{}) {
	if l.logLevelStr == "debug" || l.logLevelStr == "trace" {
		l.entry.WithField("stackTrace", fmt.Sprintf("%s", debug.Stack())).Fatal(message...)
	} else {
		l.entry.Fatal(message...)
	}
}

// SetOutput redirects log output, used by tests.
func (l *LoggerImpl) SetOutput(writer io.Writer) {
	log.SetOutput(writer)
}
