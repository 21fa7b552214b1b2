// Package logger configures structured logging and crash capture for loomboard.
package logger

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a logger writing to out. Unknown levels are an error; an empty
// level means info.
func New(out io.Writer, level, format string) (*log.Logger, error) {
	l := log.New()
	l.SetOutput(out)

	if err := SetLevel(l, level); err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		l.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return l, nil
}

// SetLevel parses level and applies it to l.
func SetLevel(l *log.Logger, level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	l.SetLevel(lvl)
	return nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
