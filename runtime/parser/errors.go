package parser

import (
	"fmt"
	"strings"

	"github.com/stellify/stellify/runtime/lexer"
)

// ParseError represents a parse error with rich context for user-friendly messages
type ParseError struct {
	// Location
	Filename string         // Source filename (empty for isolated expressions)
	Position lexer.Position // Line, column, offset

	// Core error info
	Message string // Clear, specific: "missing closing parenthesis"
	Context string // What we were parsing: "parameter list"

	// What went wrong
	Expected string // What would have been valid: "')'"
	Got      string // What we found instead: "'{'"

	// How to fix it
	Suggestion string // Actionable fix: "Add ')' after the last parameter"
}

func (e ParseError) Error() string {
	var b strings.Builder
	if e.Filename != "" {
		b.WriteString(e.Filename + ":")
	}
	fmt.Fprintf(&b, "%d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
	if e.Context != "" {
		b.WriteString(" in " + e.Context)
	}
	return b.String()
}

// ErrorList is the error returned when a unit fails to parse. It keeps every
// error found before the parser gave up.
type ErrorList []ParseError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// ErrorFormatter renders parse errors with a source excerpt.
type ErrorFormatter struct {
	Source   []byte
	Filename string
	Compact  bool // one header line plus the excerpt
	Color    bool // ANSI colors for terminals
}

const (
	colorRed   = "\033[31m"
	colorBold  = "\033[1m"
	colorReset = "\033[0m"
)

// Format renders err.
//
// Compact:
//
//	routes.php:3:15: missing closing parenthesis in parameter list
//	 3 | function greet($name {
//	   |               ^ expected ')'
//	   Add ')' after the last parameter
//
// Detailed:
//
//	Error: missing closing parenthesis
//	  --> routes.php:3:15
//	   |
//	 3 | function greet($name {
//	   |               ^ expected ')'
//	   |
//	   = Suggestion: Add ')' after the last parameter
func (f ErrorFormatter) Format(err ParseError) string {
	filename := err.Filename
	if filename == "" {
		filename = f.Filename
	}
	line := sourceLine(f.Source, err.Position.Line)
	gutter := len(fmt.Sprint(err.Position.Line))
	pad := strings.Repeat(" ", gutter+2)

	caret := ""
	if err.Position.Column > 0 {
		caret = strings.Repeat(" ", err.Position.Column-1) + "^"
		if err.Expected != "" {
			caret += " expected " + err.Expected
		}
	}

	var b strings.Builder
	if f.Compact {
		header := fmt.Sprintf("%s:%d:%d: %s", filename, err.Position.Line, err.Position.Column, err.Message)
		if err.Context != "" {
			header += " in " + err.Context
		}
		b.WriteString(f.paint(header) + "\n")
		fmt.Fprintf(&b, " %d | %s\n", err.Position.Line, line)
		fmt.Fprintf(&b, "%s| %s\n", pad, caret)
		if err.Suggestion != "" {
			fmt.Fprintf(&b, "%s%s\n", pad, err.Suggestion)
		}
		return b.String()
	}

	b.WriteString(f.paint("Error: "+err.Message) + "\n")
	fmt.Fprintf(&b, "%s--> %s:%d:%d\n", strings.Repeat(" ", gutter+1), filename, err.Position.Line, err.Position.Column)
	fmt.Fprintf(&b, "%s|\n", pad)
	fmt.Fprintf(&b, " %d | %s\n", err.Position.Line, line)
	fmt.Fprintf(&b, "%s| %s\n", pad, caret)
	if err.Suggestion != "" {
		fmt.Fprintf(&b, "%s|\n", pad)
		fmt.Fprintf(&b, "%s= Suggestion: %s\n", pad, err.Suggestion)
	}
	return b.String()
}

// FormatAll renders every error of an ErrorList, separated by blank lines.
func (f ErrorFormatter) FormatAll(errs ErrorList) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = f.Format(e)
	}
	return strings.Join(parts, "\n")
}

func (f ErrorFormatter) paint(s string) string {
	if !f.Color {
		return s
	}
	return colorBold + colorRed + s + colorReset
}

func sourceLine(src []byte, n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(string(src), "\n")
	if n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}
