package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stellify/stellify/runtime/parser"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorGray   = "\033[90m"
)

// colorize wraps text in an ANSI color when enabled.
func colorize(text, color string, enabled bool) string {
	if !enabled {
		return text
	}
	return color + text + colorReset
}

// ShouldUseColor honours --no-color, NO_COLOR and whether stdout is a
// terminal.
func ShouldUseColor(noColorFlag bool) bool {
	if noColorFlag || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// usageError is a bad flag or argument value.
type usageError struct {
	Message string
	Hint    string
}

func (e *usageError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Hint
}

// sourceError is a parse failure together with the source it came from.
type sourceError struct {
	Path   string
	Source []byte
	Errs   parser.ErrorList
}

func (e *sourceError) Error() string { return e.Errs.Error() }
func (e *sourceError) Unwrap() error { return e.Errs }

// FormatError writes err for a terminal.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	var src *sourceError
	var usage *usageError
	switch {
	case errors.As(err, &src):
		f := parser.ErrorFormatter{Source: src.Source, Filename: src.Path, Color: useColor}
		_, _ = fmt.Fprint(w, f.FormatAll(src.Errs))
	case errors.As(err, &usage):
		_, _ = fmt.Fprintf(w, "%s%s\n", colorize("Error: ", colorRed, useColor), usage.Message)
		if usage.Hint != "" {
			_, _ = fmt.Fprintf(w, "  %s\n", colorize(usage.Hint, colorGray, useColor))
		}
	default:
		_, _ = fmt.Fprintf(w, "%s%s\n", colorize("Error: ", colorRed, useColor), err.Error())
	}
}
