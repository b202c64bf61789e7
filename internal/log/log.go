// Package log provides the process-wide structured logger.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
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
	mu       sync.RWMutex
	logger   Logger
	fallback sync.Once
)

// GetLogger returns the process logger. Before Init it returns a stdout
// logger at info level, never nil.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	fallback.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			base := logrus.New()
			base.SetOutput(os.Stdout)
			base.SetLevel(logrus.InfoLevel)
			logger = &logrusAdapter{entry: logrus.NewEntry(base)}
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// swapLogger installs l and returns the logger it replaced, possibly nil.
func swapLogger(l Logger) Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = l
	return prev
}
