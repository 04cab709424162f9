/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"errors"
	"strings"
	"sync"
)

// Level defines all available log levels for logging messages.
// note: the constants below mirror 'spi/log.Level' to avoid a circular
// reference; do not reorder them.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO // default logging level
	DEBUG
)

const defaultModuleName = ""

var levelNames = []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG"}

var rwmutex = &sync.RWMutex{} //nolint:gochecknoglobals

var levels = newModuledLevels() //nolint:gochecknoglobals

// ParseString returns the string representation of the given level.
func ParseString(level Level) string {
	return levelNames[level]
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, level) {
			return Level(i), nil
		}
	}

	return ERROR, errors.New("logger: invalid log level")
}

// SetLevel sets the log level for the given module.
func SetLevel(module string, level Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()

	levels.SetLevel(module, level)
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) Level {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return levels.GetLevel(module)
}

// IsEnabledFor returns true if logging is enabled for the given module and level.
func IsEnabledFor(module string, level Level) bool {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	return levels.IsEnabledFor(module, level)
}

func newModuledLevels() *moduleLevels {
	return &moduleLevels{levels: make(map[string]Level)}
}

// moduleLevels maintains log levels based on module names.
type moduleLevels struct {
	levels map[string]Level
}

// GetLevel returns the log level for the given module.
func (l *moduleLevels) GetLevel(module string) Level {
	level, exists := l.levels[module]
	if !exists {
		level, exists = l.levels[defaultModuleName]
		// no configuration exists, default to info
		if !exists {
			return INFO
		}
	}

	return level
}

// SetLevel sets the log level for the given module.
func (l *moduleLevels) SetLevel(module string, level Level) {
	l.levels[module] = level
}

// IsEnabledFor returns true if the given level is enabled for the given module.
func (l *moduleLevels) IsEnabledFor(module string, level Level) bool {
	return level <= l.GetLevel(module)
}
