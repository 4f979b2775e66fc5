package entities

import "fmt"

// ErrorDetail is the structured form of a failure as scripts observe it in a
// catch block and as the CLI reports it.
// Error Types: "io", "decode", "runtime", "config", "internal"
type ErrorDetail struct {
	// Details contains additional error context.
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message" yaml:"message"`

	// Type categorizes the error.
	Type string `json:"type" yaml:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code" yaml:"code"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	return msg
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails attaches details and returns e.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode attaches a code and returns e.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

// ToValue renders the detail as the script map #{type, message, code}, plus
// details when present.
func (e *ErrorDetail) ToValue() Value {
	m := NewMap()
	m.Set("type", Str(e.Type))
	m.Set("message", Str(e.Message))
	m.Set("code", Str(e.Code))
	if len(e.Details) > 0 {
		if d, err := FromGo(e.Details); err == nil {
			m.Set("details", d)
		}
	}
	return MapOf(m)
}
