package hostfuncs

import (
	"context"
	"fmt"
	"math"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// TestStruct is the example custom record: one integer field, visible to
// scripts as the type ABC.
type TestStruct struct {
	X int64 `json:"x"`
}

// TypeName implements entities.Object.
func (t *TestStruct) TypeName() string { return "TestStruct" }

// CloneObject implements entities.Cloner so records follow value semantics.
func (t *TestStruct) CloneObject() entities.Object {
	c := *t
	return &c
}

// Increment adds one to the field.
func (t *TestStruct) Increment() error {
	if t.X == math.MaxInt64 {
		return fmt.Errorf("increment overflows %d", t.X)
	}
	t.X++
	return nil
}

// RecordModule returns the ABC example: create_abc(value), the read-only
// property value and the mutating increment(record). The raw field accessor
// is declared but not exported.
func RecordModule() Module {
	return Module{
		Name:    "record",
		Mode:    ModeGlobal,
		Feature: "record",
		Entries: []entities.Descriptor{
			TypeAlias("TestStruct", "ABC"),
			Func1("create_abc", func(_ context.Context, x int64) (*TestStruct, error) {
				return &TestStruct{X: x}, nil
			}),
			Property("ABC", "value", func(t *TestStruct) (int64, error) {
				return t.X, nil
			}),
			Func1("increment", func(_ context.Context, t *TestStruct) (entities.Value, error) {
				return entities.Null, t.Increment()
			}),
			Func2("set_raw_field", func(_ context.Context, t *TestStruct, x int64) (entities.Value, error) {
				t.X = x
				return entities.Null, nil
			}).Hidden(),
		},
	}
}
