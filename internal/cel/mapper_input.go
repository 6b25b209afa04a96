// Package cel exposes mapper inputs to CEL claim expressions.
package cel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/project-kessel/remoteclaim/internal/service"
	"github.com/project-kessel/remoteclaim/internal/session"
)

// MapperInputLibrary provides, for one mapper evaluation:
//   - datasource(name) - decoded JSON of a named data source
//   - identity - the session identity as a map
//   - token_type - the token being built
//
// A zero-value registry gives a compile-only environment.
type MapperInputLibrary struct {
	ctx      context.Context
	registry *service.DataSourceRegistry
	dsInput  *service.DataSourceInput

	mu    sync.Mutex
	cache map[string]any
	err   error
}

// NewMapperInputLibrary creates the library for one evaluation
func NewMapperInputLibrary(ctx context.Context, registry *service.DataSourceRegistry, dsInput *service.DataSourceInput) *MapperInputLibrary {
	return &MapperInputLibrary{
		ctx:      ctx,
		registry: registry,
		dsInput:  dsInput,
		cache:    make(map[string]any),
	}
}

// EnvOption returns the library as a CEL environment option
func (lib *MapperInputLibrary) EnvOption() cel.EnvOption {
	return cel.Lib(lib)
}

// Err returns the first data source failure seen during evaluation.
// A failure is reported even when the expression short-circuited past it.
func (lib *MapperInputLibrary) Err() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.err
}

func (lib *MapperInputLibrary) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("datasource",
			cel.Overload("datasource_string",
				[]*cel.Type{cel.StringType},
				cel.DynType,
				cel.UnaryBinding(lib.fetchDatasource),
			),
		),
		cel.Variable("identity", cel.DynType),
		cel.Variable("token_type", cel.StringType),
	}
}

func (lib *MapperInputLibrary) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func (lib *MapperInputLibrary) fail(err error) ref.Val {
	lib.mu.Lock()
	if lib.err == nil {
		lib.err = err
	}
	lib.mu.Unlock()
	return types.WrapErr(err)
}

// fetchDatasource implements the datasource() CEL function
func (lib *MapperInputLibrary) fetchDatasource(arg ref.Val) ref.Val {
	name, ok := arg.Value().(string)
	if !ok {
		return types.NewErr("datasource argument must be a string")
	}

	lib.mu.Lock()
	cached, ok := lib.cache[name]
	lib.mu.Unlock()
	if ok {
		return types.DefaultTypeAdapter.NativeToValue(cached)
	}

	if lib.registry == nil {
		return types.NullValue
	}

	ds := lib.registry.Get(name)
	if ds == nil {
		return lib.fail(fmt.Errorf("unknown data source %q", name))
	}

	result, err := ds.Fetch(lib.ctx, lib.dsInput)
	if err != nil {
		return lib.fail(err)
	}
	if result == nil {
		return types.NullValue
	}

	switch result.ContentType {
	case service.ContentTypeJSON:
		data, err := DecodeJSON(result.Data)
		if err != nil {
			return lib.fail(fmt.Errorf("data source %s: %w", name, err))
		}
		lib.mu.Lock()
		lib.cache[name] = data
		lib.mu.Unlock()
		return types.DefaultTypeAdapter.NativeToValue(data)
	default:
		return lib.fail(fmt.Errorf("data source %s: unsupported content type %q", name, result.ContentType))
	}
}

// DecodeJSON decodes a JSON payload into plain Go values.
// Integral numbers become int64 so they survive re-encoding unchanged;
// other numbers become float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}

// IdentityToMap converts a session identity to a map for CEL access
func IdentityToMap(identity *session.Identity) map[string]any {
	if identity == nil {
		return nil
	}

	m := map[string]any{
		"username":   identity.Username,
		"client_ids": toAnySlice(identity.DistinctClientIDs()),
	}
	if identity.Client != nil {
		m["client_id"] = identity.Client.ClientID
	}

	attrs := make(map[string]any, len(identity.Attributes))
	for name, values := range identity.Attributes {
		attrs[name] = toAnySlice(values)
	}
	m["attributes"] = attrs

	return m
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ConvertCELValue converts a CEL ref.Val to a Go native value
func ConvertCELValue(val ref.Val) any {
	if val == nil {
		return nil
	}
	if _, ok := val.(types.Null); ok {
		return nil
	}
	nativeVal := val.Value()

	if m, ok := nativeVal.(map[ref.Val]ref.Val); ok {
		result := make(map[string]any)
		for k, v := range m {
			if keyStr, ok := k.Value().(string); ok {
				result[keyStr] = ConvertCELValue(v)
			}
		}
		return result
	}

	if slice, ok := nativeVal.([]ref.Val); ok {
		result := make([]any, len(slice))
		for i, item := range slice {
			result[i] = ConvertCELValue(item)
		}
		return result
	}

	if slice, ok := nativeVal.([]any); ok {
		result := make([]any, len(slice))
		for i, item := range slice {
			if refVal, ok := item.(ref.Val); ok {
				result[i] = ConvertCELValue(refVal)
			} else {
				result[i] = item
			}
		}
		return result
	}

	if m, ok := nativeVal.(map[string]any); ok {
		result := make(map[string]any)
		for k, v := range m {
			if refVal, ok := v.(ref.Val); ok {
				result[k] = ConvertCELValue(refVal)
			} else {
				result[k] = v
			}
		}
		return result
	}

	return nativeVal
}
