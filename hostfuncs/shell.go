package hostfuncs

import (
	"context"

	"github.com/reglet-dev/scripthost/domain/entities"
	"github.com/reglet-dev/scripthost/domain/ports"
)

// ShellModule returns the sh module backed by runner: sh::run(script) and
// sh::run_with(script, options) returning #{stdout, stderr, code, truncated}.
// It is gated by the "shell" feature, which hosts leave off by default.
func ShellModule(runner ports.ShellRunner) Module {
	run := func(ctx context.Context, req ports.ShellRequest) (entities.Value, error) {
		res, err := runner.Run(ctx, req)
		if err != nil {
			return entities.Null, err
		}
		m := entities.NewMap()
		m.Set("stdout", entities.Str(res.Stdout))
		m.Set("stderr", entities.Str(res.Stderr))
		m.Set("code", entities.Int(int64(res.ExitCode)))
		m.Set("truncated", entities.Bool(res.Truncated))
		return entities.MapOf(m), nil
	}

	return Module{
		Name:    "sh",
		Mode:    ModeNamespaced,
		Feature: "shell",
		Entries: []entities.Descriptor{
			Func1("run", func(ctx context.Context, script string) (entities.Value, error) {
				return run(ctx, ports.ShellRequest{Script: script})
			}),
			Func2("run_with", func(ctx context.Context, script string, opts *entities.Map) (entities.Value, error) {
				req := ports.ShellRequest{Script: script}
				if v, ok := opts.Get("stdin"); ok {
					s, err := entities.Decode[string](v)
					if err != nil {
						return entities.Null, err
					}
					req.Stdin = s
				}
				if v, ok := opts.Get("dir"); ok {
					s, err := entities.Decode[string](v)
					if err != nil {
						return entities.Null, err
					}
					req.Dir = s
				}
				if v, ok := opts.Get("env"); ok {
					env, err := entities.Decode[*entities.Map](v)
					if err != nil {
						return entities.Null, err
					}
					req.Env = make([]string, 0, env.Len())
					for _, k := range env.Keys() {
						val, _ := env.Get(k)
						req.Env = append(req.Env, k+"="+val.String())
					}
				}
				return run(ctx, req)
			}),
		},
	}
}
