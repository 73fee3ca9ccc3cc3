package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax          = errors.New("malformed scenario document")
	ErrValidation      = errors.New("invalid scenario configuration")
	ErrMissingResource = errors.New("scenario source unavailable")
	ErrInputTooLarge   = errors.New("scenario document exceeds size limit")
)

// SyntaxError locates the first malformed token of a document
type SyntaxError struct {
	Offset int64 // byte offset, 0 when unknown
	Line   int   // 1-based, 0 when unknown
	Column int   // 1-based, 0 when unknown
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s: line %d, column %d: %s", ErrSyntax, e.Line, e.Column, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %s", ErrSyntax, e.Line, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", ErrSyntax, e.Msg)
	}
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// newSyntaxError computes line and column for a byte offset into data
func newSyntaxError(data []byte, offset int64, msg string) *SyntaxError {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, c := range data[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &SyntaxError{Offset: offset, Line: line, Column: col, Msg: msg}
}

// Severity distinguishes fatal issues from advisory ones
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Issue is one finding of the validator, keyed by dotted field path
type Issue struct {
	Path     string
	Reason   string
	Severity Severity
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Reason)
}

// ValidationError carries every violation found in one validation pass
type ValidationError struct {
	Issues   []Issue // errors only
	Warnings []Issue
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	noun := "problems"
	if len(parts) == 1 {
		noun = "problem"
	}
	return fmt.Sprintf("%s: %d %s: %s", ErrValidation, len(parts), noun, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// HasPath reports whether any error issue is recorded for path
func (e *ValidationError) HasPath(path string) bool {
	if e == nil {
		return false
	}
	for _, issue := range e.Issues {
		if issue.Path == path {
			return true
		}
	}
	return false
}

// MissingResourceError reports an absent or unreadable input source
type MissingResourceError struct {
	Source string
	Err    error
}

func (e *MissingResourceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrMissingResource, e.Source)
	}
	return fmt.Sprintf("%s: %s: %v", ErrMissingResource, e.Source, e.Err)
}

// Unwrap exposes both the sentinel and the underlying filesystem error
func (e *MissingResourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMissingResource}
	}
	return []error{ErrMissingResource, e.Err}
}
