// Package log provides the process-wide logger behind a small interface so
// packages log without depending on logrus directly.
package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

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

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	mu     sync.RWMutex
	logger = newDefaultLogger()
)

// GetLogger returns the process logger. Before Init it logs info and above
// to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init configures the process logger. Only the first call takes effect.
func Init(cfg *LoggerConfig) error {
	var err error
	once.Do(func() {
		var l Logger
		l, err = newLogger(cfg, nil)
		if err != nil {
			return
		}
		SetLogger(l)
	})
	return err
}

// SetLogger replaces the process logger.
func SetLogger(l Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}
