package hostfuncs

import (
	"context"
	"log/slog"
	"time"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Middleware wraps a capability implementation to add cross-cutting
// behavior. Middleware runs in FIFO order: the first registered wraps
// outermost.
//
// Example usage:
//
//	counting := func(next entities.NativeFunc) entities.NativeFunc {
//	    return func(ctx context.Context, args []entities.Value) (entities.Value, error) {
//	        calls.Add(1)
//	        return next(ctx, args)
//	    }
//	}
type Middleware func(next entities.NativeFunc) entities.NativeFunc

// PanicRecoveryMiddleware converts a panic inside a capability into a
// PanicError so the script sees a catchable failure.
func PanicRecoveryMiddleware() Middleware {
	return func(next entities.NativeFunc) entities.NativeFunc {
		return func(ctx context.Context, args []entities.Value) (v entities.Value, err error) {
			defer func() {
				if r := recover(); r != nil {
					v = entities.Null
					err = NewPanicError(CapabilityName(ctx), r)
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware logs every capability invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next entities.NativeFunc) entities.NativeFunc {
		return func(ctx context.Context, args []entities.Value) (entities.Value, error) {
			name := CapabilityName(ctx)
			start := time.Now()
			v, err := next(ctx, args)
			if err != nil {
				logger.DebugContext(ctx, "capability failed",
					"capability", name,
					"args", len(args),
					"duration", time.Since(start),
					"error", err)
				return v, err
			}
			logger.DebugContext(ctx, "capability completed",
				"capability", name,
				"args", len(args),
				"duration", time.Since(start))
			return v, nil
		}
	}
}
