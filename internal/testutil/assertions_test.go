package testutil

import (
	"errors"
	"os"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/stretchr/testify/assert"
)

func TestAssertValue(t *testing.T) {
	build := func() entities.Value {
		m := entities.NewMap()
		m.Set("a", entities.Int(1))
		return entities.Arr(entities.Int(1), entities.MapOf(m))
	}
	assert.True(t, AssertValue(t, build(), build()))
}

func TestRequireRuntimeError(t *testing.T) {
	err := errors.Join(errors.New("ctx"), &domainerrors.RuntimeError{Code: domainerrors.CodeParse, Msg: "bad"})
	re := RequireRuntimeError(t, err, domainerrors.CodeParse)
	assert.Equal(t, "bad", re.Msg)
}

func TestAssertJSONEqual(t *testing.T) {
	AssertJSONEqual(t, `{"a": [1, 2], "b": null}`, "{\"b\":null,\n\"a\":[1,2]}")
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, t.TempDir(), "x.txt", "data")
	b, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "data", string(b))
}
