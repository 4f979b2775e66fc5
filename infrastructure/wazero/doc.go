// Package wazero exposes WebAssembly modules to scripts through the wazero
// runtime.
//
// The wasm capability module binds, under the wasm namespace:
//
//   - load(path) compiles and instantiates a module and returns a WasmModule
//   - call(module, name, args...) invokes an exported function
//   - exports(module) lists exported functions with their signatures
//
// Numeric arguments and results map onto the four core value types: i32 and
// i64 to int, f32 and f64 to float. A function with several results returns
// an array.
//
// # Basic Usage
//
//	loader := wazero.NewLoader(wazero.WithMemoryPages(cfg.Wasm.MemoryPages))
//	defer loader.Close(ctx)
//
//	registry, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithFeatures("wasm"),
//	    hostfuncs.WithModule(loader.Module()),
//	)
//
// # Host Imports
//
// Every runtime carries a host module named "scripthost" that guests may
// import. It exports log(i64), which takes the packed pointer and length of
// a UTF-8 message in the guest's memory (pointer in the upper 32 bits).
package wazero
