package ports

import (
	"context"
)

// ShellRunner executes a POSIX shell script without spawning a system shell.
// Infrastructure adapters implement this to provide the sh capability.
type ShellRunner interface {
	// Run interprets script and returns its captured output.
	Run(ctx context.Context, req ShellRequest) (*ShellResult, error)
}

// ShellRequest holds parameters for one shell invocation.
type ShellRequest struct {
	Script string
	Dir    string
	Env    []string
	Stdin  string
}

// ShellResult represents the outcome of a shell invocation. A non-zero
// ExitCode is a result, not an error.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Truncated is set when output exceeded the runner's capture limit.
	Truncated bool
}
