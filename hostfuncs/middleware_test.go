package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, 42)
	hc := NewHostContext(parent, "codec::json::encode")

	assert.Equal(t, "codec::json::encode", hc.Capability())
	assert.Equal(t, "codec", hc.Module())
	assert.Equal(t, "codec::json::encode", CapabilityName(hc))
	assert.Equal(t, 42, hc.Value(key{}), "values of the parent context remain visible")

	assert.Equal(t, "len", NewHostContext(context.Background(), "len").Module())
	assert.Equal(t, "unknown", CapabilityName(context.Background()))
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	fn := PanicRecoveryMiddleware()(func(context.Context, []entities.Value) (entities.Value, error) {
		panic(errors.New("nil map"))
	})

	v, err := fn(NewHostContext(context.Background(), "bad"), nil)
	assert.Equal(t, entities.Null, v)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad", pe.Capability)

	detail := domainerrors.ToErrorDetail(err)
	assert.Equal(t, domainerrors.TypeInternal, detail.Type)
	assert.Equal(t, CodePanic, detail.Code)
	assert.Equal(t, map[string]any{"capability": "bad"}, detail.Details)
}

func TestPanicRecoveryMiddleware_PassesThrough(t *testing.T) {
	fn := PanicRecoveryMiddleware()(func(context.Context, []entities.Value) (entities.Value, error) {
		return entities.Int(1), nil
	})
	v, err := fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, entities.Int(1), v)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := LoggingMiddleware(logger)

	ok := mw(func(context.Context, []entities.Value) (entities.Value, error) { return entities.Null, nil })
	_, err := ok(NewHostContext(context.Background(), "io::open"), []entities.Value{entities.Str("x")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="capability completed"`)
	assert.Contains(t, buf.String(), "capability=io::open")
	assert.Contains(t, buf.String(), "args=1")

	buf.Reset()
	failing := mw(func(context.Context, []entities.Value) (entities.Value, error) {
		return entities.Null, errors.New("boom")
	})
	_, err = failing(NewHostContext(context.Background(), "io::open"), nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `msg="capability failed"`)
	assert.Contains(t, buf.String(), "error=boom")
}
