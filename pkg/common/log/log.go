/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"sync"

	"github.com/agoralab/agora-framework-go/internal/logging/metadata"
	"github.com/agoralab/agora-framework-go/internal/logging/modlog"
	spilog "github.com/agoralab/agora-framework-go/spi/log"
)

// Log is an implementation of the spi/log Logger interface.
// It encapsulates a default or custom logger to provide module and level based logging.
type Log struct {
	instance spilog.Logger
	module   string
	once     sync.Once
}

// New creates and returns a Logger implementation based on the given module name.
// note: the underlying logger instance is lazily initialized on first use.
// To use your own logger implementation provide a logger provider in 'Initialize()'
// before logging any line. If 'Initialize()' is not called before logging any line
// then the default logging implementation is used.
func New(module string) *Log {
	return &Log{module: module}
}

// Fatalf calls Fatalf on the underlying logger.
// Should possibly cause system shutdown based on implementation.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	l.logger().Fatalf(msg, args...)
}

// Panicf calls Panicf on the underlying logger.
// Should possibly cause a panic based on implementation.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.logger().Panicf(msg, args...)
}

// Debugf calls Debugf on the underlying logger.
func (l *Log) Debugf(msg string, args ...interface{}) {
	l.logger().Debugf(msg, args...)
}

// Infof calls Infof on the underlying logger.
func (l *Log) Infof(msg string, args ...interface{}) {
	l.logger().Infof(msg, args...)
}

// Warnf calls Warnf on the underlying logger.
func (l *Log) Warnf(msg string, args ...interface{}) {
	l.logger().Warnf(msg, args...)
}

// Errorf calls Errorf on the underlying logger.
func (l *Log) Errorf(msg string, args ...interface{}) {
	l.logger().Errorf(msg, args...)
}

func (l *Log) logger() spilog.Logger {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})

	return l.instance
}

// SetLevel sets the log level for the given module.
// If not set, the default logging level is info.
func SetLevel(module string, level spilog.Level) {
	metadata.SetLevel(module, metadata.Level(level))
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) spilog.Level {
	return spilog.Level(metadata.GetLevel(module))
}

// IsEnabledFor returns true if the given log level is enabled for the given module.
func IsEnabledFor(module string, level spilog.Level) bool {
	return metadata.IsEnabledFor(module, metadata.Level(level))
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (spilog.Level, error) {
	l, err := metadata.ParseLevel(level)

	return spilog.Level(l), err
}

//nolint:gochecknoglobals
var (
	loggerProviderInstance spilog.LoggerProvider
	loggerProviderOnce     sync.Once
)

// Initialize sets a custom logger provider. It can be called only once;
// subsequent calls are a no-op and log a warning through the winning provider.
func Initialize(lp spilog.LoggerProvider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = lp
	})
}

func loggerProvider() spilog.LoggerProvider {
	loggerProviderOnce.Do(func() {
		// A custom logger must be initialized prior to the first log output.
		// Otherwise the built-in moduled logger is used.
		loggerProviderInstance = &modlog.Provider{}
	})

	return loggerProviderInstance
}
