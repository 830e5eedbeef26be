// Package vmerrors implements the error kinds and traceback rendering
// from spec.md §7. It is named vmerrors rather than errors so it
// doesn't shadow the standard library package it otherwise sits next
// to throughout the engine.
package vmerrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorType is one of the eight user-visible error kinds of spec.md §7.
type ErrorType string

const (
	TypeError       ErrorType = "TypeError"
	NilError        ErrorType = "NilError"
	IndexError      ErrorType = "IndexError"
	ArithmeticError ErrorType = "ArithmeticError"
	TimeoutError    ErrorType = "TimeoutError"
	ArgumentError   ErrorType = "ArgumentError"
	IOError         ErrorType = "IOError"
	InternalError   ErrorType = "InternalError"
)

// SourceLocation is a (module, row, col) triple, matching each
// instruction's row/col debug fields (spec.md §4.4).
type SourceLocation struct {
	Module string
	Row    uint16
	Col    uint16
}

// StackFrame is one entry of a reconstructed traceback (spec.md §7:
// "a traceback reconstructed from the (row, col, module) of each
// frame").
type StackFrame struct {
	Function string
	Location SourceLocation
}

// VMError is a raised JL exception as seen by Go code driving the
// engine (constructing/propagating it before it becomes a heap Error
// object visible to JL code). It mirrors the teacher's SentraError
// shape with spec.md's error-kind vocabulary.
type VMError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	cause     error
}

func (e *VMError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))
	if e.Location.Module != "" {
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", e.Location.Module, e.Location.Row, e.Location.Col))
	}
	for _, f := range e.CallStack {
		if f.Function != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s (%s:%d:%d)", f.Function, f.Location.Module, f.Location.Row, f.Location.Col))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", f.Location.Module, f.Location.Row, f.Location.Col))
		}
	}
	return sb.String()
}

// Unwrap reports the underlying cause for InternalError values wrapped
// with Wrap, supporting errors.Is/As from callers.
func (e *VMError) Unwrap() error { return e.cause }

// New constructs a VMError with no location yet attached; the engine
// fills Location/CallStack in as it unwinds (see engine/exception.go).
func New(t ErrorType, format string, args ...interface{}) *VMError {
	return &VMError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an InternalError carrying a pkg/errors stack trace, for
// the "should not occur" invariant-violation paths of spec.md §7
// (fatal allocation/reclamation failures).
func Wrap(cause error, format string, args ...interface{}) *VMError {
	return &VMError{
		Type:    InternalError,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

func (e *VMError) WithLocation(loc SourceLocation) *VMError {
	e.Location = loc
	return e
}

func (e *VMError) AddFrame(function string, loc SourceLocation) *VMError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, Location: loc})
	return e
}
