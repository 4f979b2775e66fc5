// Package hostfuncs declares host capabilities as plain data and compiles
// them into a script runtime's resolution namespace.
//
// A Module groups descriptors (functions, constants, type aliases, property
// getters and infix operators) under a registration mode. NewRegistry
// checks the modules once at startup, applies feature gates and middleware,
// and produces an immutable Registry that can be bound into any
// ports.Binder. The built-in modules (core, io, record, ops, codec, sh)
// live alongside the registry.
package hostfuncs
