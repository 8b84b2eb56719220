package main

import (
	"io"
	"log/slog"
	"os"
	"strconv"
)

const debugEnv = "STELLIFY_DEBUG"

func envDebug() bool {
	v, err := strconv.ParseBool(os.Getenv(debugEnv))
	return err == nil && v
}

// newLogger logs to w without timestamps, at debug level when debug is set.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}
