package shell

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"
)

var (
	// blockedEnvPrefixes are never passed to scripts: dynamic linker
	// injection vectors.
	blockedEnvPrefixes = []string{"LD_", "DYLD_"}

	// blockedEnv are exact names that are never passed to scripts.
	blockedEnv = []string{"IFS", "LOCPATH", "BASH_ENV", "ENV"}

	// gatedEnv are only passed when the runner allows them by name.
	gatedEnv = []string{
		"PATH", "HOME", "CDPATH", "PS4",
		"PYTHONPATH", "PYTHONSTARTUP", "PYTHONHOME",
		"NODE_OPTIONS", "NODE_PATH",
		"RUBYLIB", "PERL5LIB", "LUA_PATH", "LUA_CPATH",
	}
)

// IsBlockedEnv reports whether key may never be set for a shell script.
func IsBlockedEnv(key string) bool {
	upper := strings.ToUpper(key)
	for _, prefix := range blockedEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return slices.Contains(blockedEnv, upper)
}

// SanitizeEnv drops malformed and blocked entries from env, and gated
// entries whose name is not in allowed.
func SanitizeEnv(ctx context.Context, logger *slog.Logger, env, allowed []string) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		key, _, ok := strings.Cut(e, "=")
		if !ok || key == "" {
			logger.WarnContext(ctx, "malformed environment entry skipped", "env", e)
			continue
		}
		upper := strings.ToUpper(key)
		if IsBlockedEnv(upper) {
			logger.WarnContext(ctx, "blocked environment variable", "env_var", key, "reason", "always_blocked")
			continue
		}
		if slices.Contains(gatedEnv, upper) && !slices.Contains(allowed, upper) {
			logger.DebugContext(ctx, "gated environment variable dropped", "env_var", key)
			continue
		}
		out = append(out, e)
	}
	return out
}

// ExecKind classifies an external command line.
type ExecKind string

const (
	ExecSafe        ExecKind = "safe"
	ExecShell       ExecKind = "nested shell"
	ExecInterpreter ExecKind = "interpreter code execution"
	ExecSuspicious  ExecKind = "suspicious execution"
)

var (
	shells = []string{"sh", "bash", "dash", "zsh", "ksh", "csh", "tcsh", "fish"}

	// codeFlags lists, per interpreter, the flags that evaluate an argument
	// as code.
	codeFlags = map[string][]string{
		"python": {"-c", "--command"}, "python2": {"-c", "--command"}, "python3": {"-c", "--command"},
		"perl": {"-e", "-E"}, "perl5": {"-e", "-E"},
		"ruby": {"-e"}, "irb": {"-e"},
		"node": {"-e", "--eval"}, "nodejs": {"-e", "--eval"},
		"php": {"-r"},
		"lua": {"-e"},
		"tclsh": {"-c"}, "wish": {"-c"},
	}

	awks = []string{"awk", "gawk", "mawk", "nawk"}

	suspiciousFlags = []string{"-c", "-e", "-E", "-r", "--eval", "--command"}
)

// Classify reports what kind of execution the command line performs.
func Classify(command string, args []string) ExecKind {
	base := path.Base(command)
	if slices.Contains(shells, base) && len(args) > 0 {
		return ExecShell
	}
	if runsCode(base, args) {
		return ExecInterpreter
	}
	for _, a := range args {
		if slices.Contains(suspiciousFlags, a) {
			return ExecSuspicious
		}
	}
	return ExecSafe
}

func runsCode(base string, args []string) bool {
	if slices.Contains(awks, base) {
		for _, a := range args {
			a = strings.TrimSpace(a)
			if strings.HasPrefix(a, "BEGIN") || strings.HasPrefix(a, "END") {
				return true
			}
		}
		return false
	}
	// Versioned names such as python3.12 share the flags of their family.
	family := strings.TrimRight(base, "0123456789.")
	flags, ok := codeFlags[base]
	if !ok {
		flags, ok = codeFlags[family]
	}
	if !ok {
		return false
	}
	for _, a := range args {
		for _, f := range flags {
			if a == f || strings.HasPrefix(a, f+"=") {
				return true
			}
		}
	}
	return false
}
