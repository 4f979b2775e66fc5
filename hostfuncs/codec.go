package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"gopkg.in/yaml.v3"
)

// CodecModule returns the namespaced codec module. to_json is also exposed
// unqualified; the json, yaml and toml groups are reached as
// codec::json::encode and so on. The toml group is gated by its own feature.
func CodecModule() Module {
	return Module{
		Name:    "codec",
		Mode:    ModeNamespaced,
		Feature: "codec",
		Entries: []entities.Descriptor{
			Func1("to_json", func(_ context.Context, v entities.Value) (string, error) {
				return encodeJSON(v, false)
			}).AsGlobal(),
		},
		Groups: []Module{
			{
				Name: "json",
				Entries: []entities.Descriptor{
					Func1("encode", func(_ context.Context, v entities.Value) (string, error) {
						return encodeJSON(v, false)
					}),
					Func1("pretty", func(_ context.Context, v entities.Value) (string, error) {
						return encodeJSON(v, true)
					}),
					Func1("decode", decodeJSON),
				},
			},
			{
				Name: "yaml",
				Entries: []entities.Descriptor{
					Func1("encode", encodeYAML),
					Func1("decode", decodeYAML),
				},
			},
			{
				Name:    "toml",
				Feature: "toml",
				Entries: []entities.Descriptor{
					Func1("encode", encodeTOML),
					Func1("decode", decodeTOML),
				},
			},
		},
	}
}

func encodeJSON(v entities.Value, pretty bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(entities.ToGo(v)); err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeJSON(_ context.Context, text string) (entities.Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return entities.Null, jsonDecodeError(err, dec.InputOffset())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return entities.Null, &domainerrors.DecodeError{
			Source: "codec::json::decode",
			Offset: dec.InputOffset(),
			Err:    errors.New("unexpected data after value"),
		}
	}
	return entities.FromGo(out)
}

func jsonDecodeError(err error, offset int64) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		offset = se.Offset
	}
	return &domainerrors.DecodeError{Source: "codec::json::decode", Offset: offset, Err: err}
}

func encodeYAML(_ context.Context, v entities.Value) (string, error) {
	out, err := yaml.Marshal(entities.ToGo(v))
	if err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return string(out), nil
}

func decodeYAML(_ context.Context, text string) (entities.Value, error) {
	var out any
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		return entities.Null, &domainerrors.DecodeError{Source: "codec::yaml::decode", Format: "yaml", Err: err}
	}
	return entities.FromGo(normalize(out))
}

func encodeTOML(_ context.Context, m *entities.Map) (string, error) {
	out, err := toml.Marshal(entities.ToGo(entities.MapOf(m)))
	if err != nil {
		return "", fmt.Errorf("encode toml: %w", err)
	}
	return string(out), nil
}

func decodeTOML(_ context.Context, text string) (entities.Value, error) {
	var out map[string]any
	if err := toml.Unmarshal([]byte(text), &out); err != nil {
		return entities.Null, &domainerrors.DecodeError{Source: "codec::toml::decode", Format: "toml", Err: err}
	}
	return entities.FromGo(normalize(out))
}

// normalize rewrites decoder-specific scalars that have no script
// counterpart (timestamps and TOML local dates) into strings.
func normalize(x any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
		return t
	case map[any]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
		return t
	case []any:
		for i, v := range t {
			t[i] = normalize(v)
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case toml.LocalDate:
		return t.String()
	case toml.LocalTime:
		return t.String()
	case toml.LocalDateTime:
		return t.String()
	}
	return x
}
