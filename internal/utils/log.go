// Package utils
package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zerolog.Logger
	mu     sync.Mutex
)

// LogOptions configures the process logger.
type LogOptions struct {
	Level   string
	File    string
	Console bool
}

// NewLogger builds a logger writing to the console and, when File is set, to a
// rotating log file. Unknown levels fall back to info.
func NewLogger(opts LogOptions) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	var writers []io.Writer
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
		})
	}
	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(lvl)
}

// InitLogger replaces the process logger.
func InitLogger(opts LogOptions) *zerolog.Logger {
	l := NewLogger(opts)
	mu.Lock()
	logger = &l
	mu.Unlock()
	return &l
}

// GetLogger returns the process logger, creating a console logger at info
// level on first use.
func GetLogger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l := NewLogger(LogOptions{Level: "info", Console: true})
		logger = &l
	}
	return logger
}

// Component returns a child of the process logger tagged with name.
func Component(name string) zerolog.Logger {
	return GetLogger().With().Str("component", name).Logger()
}
