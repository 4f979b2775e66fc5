// Package config loads and validates host configuration.
//
// Settings come from, in increasing priority: built-in defaults, an
// optional YAML, TOML or JSON file, and SCRIPTHOST_* environment variables.
// Command-line flags are applied by the caller on the returned Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/scripthost/application/schema"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SCRIPTHOST_LOG_LEVEL or SCRIPTHOST_WASM_MEMORY_PAGES.
const EnvPrefix = "SCRIPTHOST"

// Config is the complete host configuration.
type Config struct {
	// Modes overrides the registration mode of top-level modules.
	Modes map[string]string `json:"modes,omitempty" yaml:"modes,omitempty" mapstructure:"modes" validate:"dive,keys,required,endkeys,oneof=global namespaced" jsonschema:"description=Registration mode per module"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// BaseDir resolves relative paths given to io::open and wasm::load.
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty" mapstructure:"base_dir"`

	// Features lists enabled feature gates.
	Features []string `json:"features" yaml:"features" mapstructure:"features" validate:"dive,required"`

	Shell  ShellConfig  `json:"shell" yaml:"shell" mapstructure:"shell"`
	Limits LimitsConfig `json:"limits" yaml:"limits" mapstructure:"limits"`
	Wasm   WasmConfig   `json:"wasm" yaml:"wasm" mapstructure:"wasm"`
}

// LimitsConfig bounds script execution.
type LimitsConfig struct {
	MaxCallDepth int `json:"max_call_depth" yaml:"max_call_depth" mapstructure:"max_call_depth" validate:"min=1,max=10000" jsonschema:"minimum=1,maximum=10000"`

	// MaxOutputBytes caps captured sh::run output per stream.
	MaxOutputBytes int `json:"max_output_bytes" yaml:"max_output_bytes" mapstructure:"max_output_bytes" validate:"min=1" jsonschema:"minimum=1"`
}

// WasmConfig configures the wasm runtime.
type WasmConfig struct {
	// MemoryPages is the per-memory limit in 64 KiB pages.
	MemoryPages uint32 `json:"memory_pages" yaml:"memory_pages" mapstructure:"memory_pages" validate:"min=1,max=65536" jsonschema:"minimum=1,maximum=65536"`
}

// ShellConfig configures the sh module.
type ShellConfig struct {
	AllowedEnv      []string `json:"allowed_env" yaml:"allowed_env" mapstructure:"allowed_env"`
	External        bool     `json:"external" yaml:"external" mapstructure:"external"`
	InterpreterCode bool     `json:"interpreter_code" yaml:"interpreter_code" mapstructure:"interpreter_code"`
}

// DefaultFeatures are enabled when no configuration says otherwise. The
// shell feature is off by default.
var DefaultFeatures = []string{"io", "record", "operator", "codec", "toml", "wasm"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "warn",
		Features: slices.Clone(DefaultFeatures),
		Limits: LimitsConfig{
			MaxCallDepth:   256,
			MaxOutputBytes: 1 << 20,
		},
		Wasm: WasmConfig{MemoryPages: 256},
		Shell: ShellConfig{
			External:   true,
			AllowedEnv: []string{"PATH", "HOME"},
		},
	}
}

// validate is a package-level singleton for better performance.
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their file key rather than their Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fileSchema = mustFileSchema()

func mustFileSchema() *schema.Validator {
	v, err := schema.NewValidator(&Config{}, schema.Partial())
	if err != nil {
		panic(fmt.Sprintf("config: compile file schema: %v", err))
	}
	return v
}

// LoadOptions controls Load.
type LoadOptions struct {
	// File is an optional config file; its extension selects the format.
	File string

	// Env replaces the process environment lookup, for tests.
	Env func(key string) (string, bool)
}

// Load builds a Config from defaults, opts.File and the environment, then
// validates it. All failures are ConfigErrors.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, &domainerrors.ConfigError{Field: "config", Err: fmt.Errorf("read %s: %w", opts.File, err)}
		}
		// Only keys the file sets are checked here; defaults fill the rest.
		if err := fileSchema.Validate(v.AllSettings()); err != nil {
			return nil, &domainerrors.ConfigError{Field: schemaField(err, opts.File), Err: err}
		}
	}

	defaults := DefaultConfig()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("base_dir", defaults.BaseDir)
	v.SetDefault("features", defaults.Features)
	v.SetDefault("limits.max_call_depth", defaults.Limits.MaxCallDepth)
	v.SetDefault("limits.max_output_bytes", defaults.Limits.MaxOutputBytes)
	v.SetDefault("wasm.memory_pages", defaults.Wasm.MemoryPages)
	v.SetDefault("shell.external", defaults.Shell.External)
	v.SetDefault("shell.interpreter_code", defaults.Shell.InterpreterCode)
	v.SetDefault("shell.allowed_env", defaults.Shell.AllowedEnv)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if opts.Env != nil {
		for _, key := range v.AllKeys() {
			envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			if val, ok := opts.Env(envKey); ok {
				v.Set(key, val)
			}
		}
	} else {
		v.AutomaticEnv()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domainerrors.ConfigError{Field: "config", Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// schemaField names the key of the first schema violation in err.
func schemaField(err error, fallback string) string {
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || len(ve.Violations) == 0 || ve.Violations[0].Path == "" {
		return fallback
	}
	return strings.ReplaceAll(strings.TrimPrefix(ve.Violations[0].Path, "/"), "/", ".")
}

// Validate checks struct constraints and returns the first violation as a
// ConfigError naming the offending key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domainerrors.ConfigError{Field: "config", Err: err}
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	msg := fmt.Sprintf("failed on the %q rule", fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("failed on the %q rule (%s)", fe.Tag(), fe.Param())
	}
	return domainerrors.NewConfigError(field, "value %v %s", fe.Value(), msg)
}

// Enabled reports whether feature is enabled.
func (c *Config) Enabled(feature string) bool {
	return slices.Contains(c.Features, feature)
}

// Enable adds features that are not yet enabled.
func (c *Config) Enable(features ...string) {
	for _, f := range features {
		if !c.Enabled(f) {
			c.Features = append(c.Features, f)
		}
	}
}

// Disable removes features.
func (c *Config) Disable(features ...string) {
	c.Features = slices.DeleteFunc(c.Features, func(f string) bool {
		return slices.Contains(features, f)
	})
}
