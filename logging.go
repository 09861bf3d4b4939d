package signin

import (
	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider = glog.LoggerProvider

// ResolveLogger picks the named logger from provider, falling back to logger
// and finally to a no-op logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	provider, logger = glog.Resolve(name, provider, logger)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			logger = named
		}
	}
	return provider, glog.Ensure(logger)
}

func defaultLogger() Logger {
	return glog.Nop()
}
