// Completion: 100% - Error handling complete, clear and helpful messages
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Kind classifies a build failure. Every kind is fatal.
type Kind int

const (
	KindMissingEnvironment Kind = iota
	KindMissingFile
	KindMalformedVersionDescriptor
	KindUnsupportedHost
	KindMalformedTriple
	KindMissingToolchainRoot
	KindCompilerFailed
)

func (k Kind) String() string {
	switch k {
	case KindMissingEnvironment:
		return "missing environment"
	case KindMissingFile:
		return "missing file"
	case KindMalformedVersionDescriptor:
		return "malformed version descriptor"
	case KindUnsupportedHost:
		return "unsupported host"
	case KindMalformedTriple:
		return "malformed target triple"
	case KindMissingToolchainRoot:
		return "missing toolchain root"
	case KindCompilerFailed:
		return "compiler failed"
	default:
		return "unknown"
	}
}

// Error is a build failure together with the resource it concerns
// (an environment variable, a path, a triple).
type Error struct {
	Kind     Kind
	Resource string
	Message  string
	Help     string
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Resource != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Resource)
		sb.WriteString(")")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format returns the error laid out for a terminal, with the resource on its
// own line and the help text last.
func (e *Error) Format(useColor bool) string {
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	if !useColor {
		red.DisableColor()
		blue.DisableColor()
		cyan.DisableColor()
	}

	var sb strings.Builder
	sb.WriteString(red.Sprint("fatal error"))
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	sb.WriteString("\n")

	if e.Resource != "" {
		sb.WriteString(blue.Sprint("  --> "))
		sb.WriteString(e.Resource)
		sb.WriteString("\n")
	}

	if e.Err != nil {
		sb.WriteString("  cause: ")
		sb.WriteString(e.Err.Error())
		sb.WriteString("\n")
	}

	if e.Help != "" {
		sb.WriteString(cyan.Sprint("   note: "))
		sb.WriteString(e.Help)
		sb.WriteString("\n")
	}

	return sb.String()
}

// New creates an Error without an underlying cause
func New(kind Kind, resource, message string) *Error {
	return &Error{Kind: kind, Resource: resource, Message: message}
}

// Wrap creates an Error that keeps err as its cause
func Wrap(kind Kind, resource string, err error, message string) *Error {
	return &Error{Kind: kind, Resource: resource, Message: message, Err: err}
}

// WithHelp sets the note printed under the error and returns e
func (e *Error) WithHelp(format string, args ...any) *Error {
	e.Help = fmt.Sprintf(format, args...)
	return e
}

// Is reports whether err, or anything it wraps, is an *Error of the given kind
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// FormatError formats any error for the terminal. Errors that are not
// *Error are printed on a single line.
func FormatError(err error, useColor bool) string {
	var de *Error
	if errors.As(err, &de) {
		s := de.Format(useColor)
		if outer := err.Error(); outer != de.Error() {
			// keep the context added by callers that wrapped the diag error
			prefix := strings.TrimSuffix(outer, de.Error())
			prefix = strings.TrimSuffix(prefix, ": ")
			if prefix != "" {
				s = prefix + "\n" + s
			}
		}
		return s
	}
	red := color.New(color.FgRed, color.Bold)
	if !useColor {
		red.DisableColor()
	}
	return red.Sprint("error") + ": " + err.Error() + "\n"
}
