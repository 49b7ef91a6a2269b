// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger = New("info", os.Stderr)
)

// New returns a pterm structured logger writing to w at the named level.
// Unknown level names fall back to info.
func New(level string, w io.Writer) *pterm.Logger {
	return pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(ParseLevel(level))
}

// Discard returns a logger that drops everything.
func Discard() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}

// ParseLevel maps a config level name to a pterm level.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	case "off", "disabled", "none":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelInfo
	}
}

// Default returns the process-wide logger configured by the CLI.
func Default() *pterm.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *pterm.Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
