// Package ports defines the interfaces between the script runtime, the
// capability registry and the infrastructure adapters.
// Domain and application code depend on these abstractions; the script
// engine and adapters implement them.
package ports
