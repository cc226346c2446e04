package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package
type Logger = glog.Logger

// LoggerProvider hands out named loggers
type LoggerProvider = glog.LoggerProvider

// LoggerProviderFunc adapts a function to LoggerProvider
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return defaultLogger()
	}
	return f(name)
}

// ResolveLogger returns a provider and the named logger, falling back to the
// given logger when the provider is nil or yields nil.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if fallback == nil {
		fallback = defaultLogger()
	}

	if provider == nil {
		provider = staticProvider{logger: fallback}
	}

	logger := provider.GetLogger(name)
	if logger == nil {
		provider = staticProvider{logger: fallback}
		logger = fallback
	}

	return provider, logger
}

type staticProvider struct {
	logger Logger
}

func (p staticProvider) GetLogger(string) Logger {
	return p.logger
}

type defLogger struct {
	name string
}

func defaultLogger() Logger {
	return defLogger{name: "AUTH"}
}

func (d defLogger) Trace(msg string, args ...any) {}

func (d defLogger) Debug(msg string, args ...any) {}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args...)
}

func (d defLogger) Fatal(msg string, args ...any) {
	d.print("FTL", msg, args...)
}

func (d defLogger) WithContext(context.Context) Logger {
	return d
}

func (d defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[" + level + "] " + d.name + " " + msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	fmt.Fprintln(os.Stdout, b.String())
}
