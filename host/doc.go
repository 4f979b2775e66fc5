// Package host is the execution driver: it builds a capability registry from
// configuration, installs it into one script engine and runs a script file
// once, synchronously, to completion or first error.
//
// Basic usage:
//
//	h, err := host.New(ctx, host.WithConfig(cfg), host.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
//	if _, err := h.RunFile(ctx, "script.shs"); err != nil {
//	    os.Exit(host.ExitCode(err))
//	}
//
// The registry always contains the core module. The io, record, ops, codec,
// sh and wasm modules are registered too and gated by the features listed in
// the configuration; extra modules may be added with WithModules.
package host
