package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), LoadOptions{Env: noEnv})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.False(t, cfg.Enabled("shell"))
	assert.True(t, cfg.Enabled("wasm"))
}

func TestLoad_Files(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "scripthost.yaml", "log_level: debug\nfeatures: [io, shell]\nlimits:\n  max_call_depth: 64\nmodes:\n  codec: global\n"},
		{"toml", "scripthost.toml", "log_level = \"debug\"\nfeatures = [\"io\", \"shell\"]\nmodes = { codec = \"global\" }\n[limits]\nmax_call_depth = 64\n"},
		{"json", "scripthost.json", `{"log_level": "debug", "features": ["io", "shell"], "limits": {"max_call_depth": 64}, "modes": {"codec": "global"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			cfg, err := Load(context.Background(), LoadOptions{File: path, Env: noEnv})
			require.NoError(t, err)

			assert.Equal(t, "debug", cfg.LogLevel)
			assert.Equal(t, []string{"io", "shell"}, cfg.Features)
			assert.Equal(t, 64, cfg.Limits.MaxCallDepth)
			assert.Equal(t, 1<<20, cfg.Limits.MaxOutputBytes, "unset keys keep their defaults")
			assert.Equal(t, map[string]string{"codec": "global"}, cfg.Modes)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "c.yaml", "log_level: debug\nwasm:\n  memory_pages: 8\n")
	cfg, err := Load(context.Background(), LoadOptions{
		File: path,
		Env: envMap(map[string]string{
			"SCRIPTHOST_LOG_LEVEL":             "error",
			"SCRIPTHOST_FEATURES":              "io,codec",
			"SCRIPTHOST_LIMITS_MAX_CALL_DEPTH": "32",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, []string{"io", "codec"}, cfg.Features)
	assert.Equal(t, 32, cfg.Limits.MaxCallDepth)
	assert.Equal(t, uint32(8), cfg.Wasm.MemoryPages)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown key", "colour: blue\n", ""},
		{"wrong type", "limits:\n  max_call_depth: deep\n", "limits.max_call_depth"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"bad mode", "modes:\n  codec: flat\n", "modes[codec]"},
		{"zero pages", "wasm:\n  memory_pages: 0\n", "wasm.memory_pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "c.yaml", tt.content)
			_, err := Load(context.Background(), LoadOptions{File: path, Env: noEnv})
			require.Error(t, err)

			var ce *domainerrors.ConfigError
			require.ErrorAs(t, err, &ce)
			if tt.field != "" {
				assert.Equal(t, tt.field, ce.Field)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), Env: noEnv})
	require.Error(t, err)
	assert.True(t, domainerrors.IsConfig(err))
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{Env: envMap(map[string]string{
		"SCRIPTHOST_LIMITS_MAX_CALL_DEPTH": "0",
	})})
	var ce *domainerrors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "limits.max_call_depth", ce.Field)
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, LoadOptions{Env: noEnv})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_EnableDisable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enable("shell", "io")
	assert.True(t, cfg.Enabled("shell"))
	assert.Len(t, cfg.Features, len(DefaultFeatures)+1)

	cfg.Disable("wasm", "toml")
	assert.False(t, cfg.Enabled("wasm"))
	assert.False(t, cfg.Enabled("toml"))
	assert.True(t, cfg.Enabled("codec"))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Features = append(cfg.Features, "")
	err := cfg.Validate()
	var ce *domainerrors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "features[6]", ce.Field)
}
