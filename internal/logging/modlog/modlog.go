/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package modlog

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/agoralab/agora-framework-go/internal/logging/metadata"
	spilog "github.com/agoralab/agora-framework-go/spi/log"
)

// NewModLog returns a moduled logger backed by the standard library logger.
func NewModLog(module string) *ModLog {
	return &ModLog{
		logger: stdlog.New(os.Stderr, fmt.Sprintf("[%s] ", module), stdlog.Ldate|stdlog.Ltime|stdlog.LUTC),
		module: module,
	}
}

// ModLog is a moduled logger implementation backed by the standard library,
// honoring the levels registered in the metadata package.
type ModLog struct {
	logger *stdlog.Logger
	module string
}

// Fatalf is a CRITICAL log followed by a call to os.Exit(1).
func (l *ModLog) Fatalf(format string, args ...interface{}) {
	l.logf(metadata.CRITICAL, format, args...)
	os.Exit(1)
}

// Panicf is a CRITICAL log followed by a call to panic().
func (l *ModLog) Panicf(format string, args ...interface{}) {
	l.logf(metadata.CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

// Debugf logs verbose messages. Arguments are handled in the manner of fmt.Printf.
func (l *ModLog) Debugf(format string, args ...interface{}) {
	l.logf(metadata.DEBUG, format, args...)
}

// Infof logs general information messages. Arguments are handled in the manner of fmt.Printf.
func (l *ModLog) Infof(format string, args ...interface{}) {
	l.logf(metadata.INFO, format, args...)
}

// Warnf logs possible errors. Arguments are handled in the manner of fmt.Printf.
func (l *ModLog) Warnf(format string, args ...interface{}) {
	l.logf(metadata.WARNING, format, args...)
}

// Errorf logs errors. Arguments are handled in the manner of fmt.Printf.
func (l *ModLog) Errorf(format string, args ...interface{}) {
	l.logf(metadata.ERROR, format, args...)
}

func (l *ModLog) logf(level metadata.Level, format string, args ...interface{}) {
	if !metadata.IsEnabledFor(l.module, level) {
		return
	}

	prefix := fmt.Sprintf("UTC -> %s ", metadata.ParseString(level))

	if err := l.logger.Output(3, prefix+fmt.Sprintf(format, args...)); err != nil {
		fmt.Printf("error from logger.Output %v\n", err)
	}
}

// Provider is a LoggerProvider serving ModLog instances.
type Provider struct{}

// GetLogger returns a moduled logger implementation.
func (p *Provider) GetLogger(module string) spilog.Logger {
	return NewModLog(module)
}
