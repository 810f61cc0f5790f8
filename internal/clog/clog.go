// Package clog is a small leveled logger used as a constructor argument by components that need to log,
// instead of reaching for a package-level logger.
package clog

import (
	"log"
	"os"
	"sync/atomic"
)

// LogProvider is the pluggable backend a Clog writes through.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog wraps a LogProvider with an atomic enable flag so logging can be toggled without reconstructing
// every component holding a copy.
type Clog struct {
	provider LogProvider
	has      uint32 // 1: enabled, 0: disabled
}

// New creates a logger with the given prefix, writing to stdout until SetLogProvider overrides it.
func New(prefix string) Clog {
	return Clog{
		provider: defaultLogger{log.New(os.Stdout, prefix, log.LstdFlags)},
		has:      1,
	}
}

// LogMode enables or disables output.
func (c *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&c.has, 1)
	} else {
		atomic.StoreUint32(&c.has, 0)
	}
}

// SetLogProvider swaps the backend, e.g. to route through a structured logger.
func (c *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		c.provider = p
	}
}

func (c Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Critical(format, v...)
	}
}

func (c Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Error(format, v...)
	}
}

func (c Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Warn(format, v...)
	}
}

func (c Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Debug(format, v...)
	}
}

type defaultLogger struct {
	*log.Logger
}

var _ LogProvider = (*defaultLogger)(nil)

func (l defaultLogger) Critical(format string, v ...interface{}) { l.Printf("[C]: "+format, v...) }
func (l defaultLogger) Error(format string, v ...interface{})    { l.Printf("[E]: "+format, v...) }
func (l defaultLogger) Warn(format string, v ...interface{})     { l.Printf("[W]: "+format, v...) }
func (l defaultLogger) Debug(format string, v ...interface{})    { l.Printf("[D]: "+format, v...) }

// LevelFromString maps a config log_level string ("debug","warn","error","critical") to whether Debug-level
// messages should be enabled; anything unrecognized defaults to enabled, matching the teacher's
// fail-open verbosity default.
func LevelFromString(level string) bool {
	switch level {
	case "warn", "error", "critical":
		return false
	default:
		return true
	}
}
