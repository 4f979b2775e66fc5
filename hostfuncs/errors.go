package hostfuncs

import (
	"fmt"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
)

// CodePanic marks a capability that panicked.
const CodePanic = "panic"

// ArgumentError reports a script argument that could not be decoded into the
// type a capability expects.
type ArgumentError struct {
	Err   error
	Index int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d: %v", e.Index+1, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// PanicError is returned in place of a panic raised inside a capability, so
// the script sees an ordinary failure instead of crashing the host.
type PanicError struct {
	Value      any
	Capability string
}

// NewPanicError creates a PanicError for a recovered value.
func NewPanicError(capability string, recovered any) *PanicError {
	return &PanicError{Capability: capability, Value: recovered}
}

func (e *PanicError) Error() string {
	var msg string
	switch v := e.Value.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = "panic recovered"
	}
	return fmt.Sprintf("capability %s panicked: %s", e.Capability, msg)
}

// ToErrorDetail implements errors.DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(domainerrors.TypeInternal, e.Error()).
		WithCode(CodePanic).
		WithDetails(map[string]any{"capability": e.Capability})
}
