// Package errors provides the domain error types of the script host.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"io/fs"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Error types reported in ErrorDetail.Type and seen by scripts in catch blocks.
const (
	TypeIO       = "io"
	TypeDecode   = "decode"
	TypeRuntime  = "runtime"
	TypeConfig   = "config"
	TypeInternal = "internal"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface to be classified by ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// The outermost DetailedError in the chain wins, except that a RuntimeError
// defers to the cause it wraps so scripts see the original classification.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var re *RuntimeError
	if stdErrors.As(err, &re) && re.Err != nil {
		var inner DetailedError
		if stdErrors.As(re.Err, &inner) {
			return inner.ToErrorDetail()
		}
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    TypeInternal,
	}
}

// IOError reports a byte source that cannot be opened or a failed low-level read.
type IOError struct {
	Err  error
	Op   string
	Path string
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError builds an IOError for op on path. A *fs.PathError cause is
// replaced by its inner error so op and path are reported once.
func NewIOError(op, path string, err error) *IOError {
	var pathErr *fs.PathError
	if stdErrors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// ToErrorDetail implements DetailedError.
func (e *IOError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: TypeIO, Code: e.Op}
}

// DecodeError reports bytes that are present but do not form a complete,
// valid value. Format names the encoding and defaults to "json".
type DecodeError struct {
	Err    error
	Source string
	Format string
	Offset int64
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("decode %s at byte %d: %v", e.Source, e.Offset, e.Err)
	}
	return fmt.Sprintf("decode at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	format := e.Format
	if format == "" {
		format = "json"
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: TypeDecode, Code: format}
}

// Runtime error codes.
const (
	CodeParse            = "parse"
	CodeFunctionNotFound = "function_not_found"
	CodeVariableNotFound = "variable_not_found"
	CodePropertyNotFound = "property_not_found"
	CodeTypeMismatch     = "type_mismatch"
	CodeArity            = "arity"
	CodeArithmetic       = "arithmetic"
	CodeIndex            = "index"
	CodeUncaught         = "uncaught_exception"
	CodeCapability       = "capability"
	CodeStackOverflow    = "stack_overflow"
	CodeInterrupted      = "interrupted"
)

// RuntimeError reports a script parse or evaluation failure. Line and Col are
// 1-based; zero means the position is unknown. Err, when set, is the
// capability or I/O failure that caused it.
type RuntimeError struct {
	Err    error
	Code   string
	Msg    string
	Script string
	Line   int
	Col    int
}

func (e *RuntimeError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Line > 0 && e.Script != "":
		return fmt.Sprintf("%s:%d:%d: %s", e.Script, e.Line, e.Col, msg)
	case e.Line > 0:
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, msg)
	default:
		return msg
	}
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *RuntimeError) ToErrorDetail() *entities.ErrorDetail {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return &entities.ErrorDetail{Message: msg, Type: TypeRuntime, Code: e.Code}
}

// ConfigError represents a build-time configuration failure: registration
// collisions, invalid operator declarations or invalid host settings.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error for '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: TypeConfig, Code: e.Field}
}

// NewConfigError is a shorthand for a ConfigError with a formatted cause.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsConfig reports whether err is, or wraps, a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return stdErrors.As(err, &ce)
}
