package logging

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Supported output formats for Configure.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger is the interface to our internal logger.
type Logger interface {
	Debug(msg string, kvpairs ...interface{})
	Info(msg string, kvpairs ...interface{})
	Warn(msg string, kvpairs ...interface{})
	Error(msg string, kvpairs ...interface{})

	// With returns a child logger that always includes the given key/value
	// pairs in addition to this logger's own fields.
	With(kvpairs ...interface{}) Logger
}

// LogrusLogger is a thread-safe logger whose fields are fixed at
// construction time.
type LogrusLogger struct {
	mtx    *sync.Mutex
	entry  *logrus.Entry
	fields logrus.Fields
}

// NoopLogger implements Logger, but does nothing.
type NoopLogger struct{}

var _ Logger = (*LogrusLogger)(nil)
var _ Logger = (*NoopLogger)(nil)

// Configure sets up the process-wide logrus logger used by NewLogrusLogger.
func Configure(out io.Writer, verbose bool, format string) error {
	switch format {
	case "", FormatText:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unsupported log format \"%s\" (expected \"%s\" or \"%s\")", format, FormatText, FormatJSON)
	}
	if out != nil {
		logrus.SetOutput(out)
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// NewLogrusLogger will instantiate a logger with the given context on top of
// the standard logrus logger.
func NewLogrusLogger(ctx string, kvpairs ...interface{}) Logger {
	return NewLogrusLoggerFrom(logrus.StandardLogger(), ctx, kvpairs...)
}

// NewLogrusLoggerFrom instantiates a logger with the given context on top of
// a specific logrus logger.
func NewLogrusLoggerFrom(base *logrus.Logger, ctx string, kvpairs ...interface{}) Logger {
	entry := logrus.NewEntry(base)
	if len(ctx) > 0 {
		entry = entry.WithField("ctx", ctx)
	}
	return &LogrusLogger{
		mtx:    &sync.Mutex{},
		entry:  entry,
		fields: serializeKVPairs(kvpairs...),
	}
}

// serializeKVPairs turns alternating keys and values into a field map. An odd
// number of elements yields no fields at all.
func serializeKVPairs(kvpairs ...interface{}) logrus.Fields {
	res := make(logrus.Fields)
	if (len(kvpairs) % 2) == 0 {
		for i := 0; i < len(kvpairs); i += 2 {
			res[fmt.Sprintf("%v", kvpairs[i])] = kvpairs[i+1]
		}
	}
	return res
}

func (l *LogrusLogger) withKVPairs(kvpairs ...interface{}) *logrus.Entry {
	entry := l.entry
	if len(l.fields) > 0 {
		entry = entry.WithFields(l.fields)
	}
	if fields := serializeKVPairs(kvpairs...); len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	return entry
}

func (l *LogrusLogger) Debug(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Debugln(msg)
}

func (l *LogrusLogger) Info(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Infoln(msg)
}

func (l *LogrusLogger) Warn(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Warnln(msg)
}

func (l *LogrusLogger) Error(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Errorln(msg)
}

func (l *LogrusLogger) With(kvpairs ...interface{}) Logger {
	fields := make(logrus.Fields, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range serializeKVPairs(kvpairs...) {
		fields[k] = v
	}
	return &LogrusLogger{
		mtx:    l.mtx,
		entry:  l.entry,
		fields: fields,
	}
}

//
// NoopLogger
//

// NewNoopLogger will instantiate a logger that does nothing when called.
func NewNoopLogger() Logger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, kvpairs ...interface{}) {}
func (l *NoopLogger) Info(msg string, kvpairs ...interface{})  {}
func (l *NoopLogger) Warn(msg string, kvpairs ...interface{})  {}
func (l *NoopLogger) Error(msg string, kvpairs ...interface{}) {}
func (l *NoopLogger) With(kvpairs ...interface{}) Logger       { return l }
