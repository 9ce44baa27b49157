// Package addon loads WebAssembly binaries as native addons.  Every exported
// function of an addon becomes a Starlark builtin on the addon's module
// value.
package addon

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/stackb/modload/pkg/module"
)

// Runtime owns the wazero runtime all addons are instantiated in.
type Runtime struct {
	logger zerolog.Logger

	mu      sync.Mutex
	rt      wazero.Runtime
	modules map[string]*starlarkstruct.Module
}

// NewRuntime creates a runtime with WASI preview1 host functions available
// to addons.
func NewRuntime(ctx context.Context, logger zerolog.Logger) (*Runtime, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiating wasi: %w", err)
	}
	return &Runtime{
		logger:  logger,
		rt:      rt,
		modules: make(map[string]*starlarkstruct.Module),
	}, nil
}

// Load compiles and instantiates wasm under name.  Loading the same name
// again returns the first instance.
func (r *Runtime) Load(ctx context.Context, name string, wasm []byte) (*starlarkstruct.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.modules[name]; ok {
		return m, nil
	}
	if r.rt == nil {
		return nil, fmt.Errorf("addon runtime is closed")
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compiling addon %s: %w", name, err)
	}
	mod, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("instantiating addon %s: %w", name, err)
	}

	defs := compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for fn := range defs {
		names = append(names, fn)
	}
	sort.Strings(names)

	members := make(starlark.StringDict, len(names))
	for _, fn := range names {
		members[fn] = newFunction(fn, defs[fn], mod.ExportedFunction(fn))
	}
	m := &starlarkstruct.Module{Name: name, Members: members}
	m.Freeze()
	r.modules[name] = m

	r.logger.Debug().Str("addon", name).Strs("exports", names).Msg("instantiated addon")
	return m, nil
}

// Close releases every addon instance.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rt == nil {
		return nil
	}
	err := r.rt.Close(ctx)
	r.rt = nil
	return err
}

func newFunction(name string, def api.FunctionDefinition, fn api.Function) *starlark.Builtin {
	params := def.ParamTypes()
	results := def.ResultTypes()
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		if len(args) != len(params) {
			return nil, fmt.Errorf("%s: got %d arguments, want %d", b.Name(), len(args), len(params))
		}
		stack := make([]uint64, len(params))
		for i, p := range params {
			v, err := encode(p, args[i])
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i+1, err)
			}
			stack[i] = v
		}
		out, err := fn.Call(module.Context(thread), stack...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		switch len(results) {
		case 0:
			return starlark.None, nil
		case 1:
			return decode(results[0], out[0])
		}
		tuple := make(starlark.Tuple, len(results))
		for i, rt := range results {
			v, err := decode(rt, out[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			tuple[i] = v
		}
		return tuple, nil
	})
}

func encode(t api.ValueType, v starlark.Value) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		var i int32
		if err := starlark.AsInt(v, &i); err != nil {
			return 0, err
		}
		return api.EncodeI32(i), nil
	case api.ValueTypeI64:
		var i int64
		if err := starlark.AsInt(v, &i); err != nil {
			return 0, err
		}
		return api.EncodeI64(i), nil
	case api.ValueTypeF32:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return 0, fmt.Errorf("got %s, want float", v.Type())
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return 0, fmt.Errorf("got %s, want float", v.Type())
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
}

func decode(t api.ValueType, v uint64) (starlark.Value, error) {
	switch t {
	case api.ValueTypeI32:
		return starlark.MakeInt64(int64(api.DecodeI32(v))), nil
	case api.ValueTypeI64:
		return starlark.MakeInt64(int64(v)), nil
	case api.ValueTypeF32:
		return starlark.Float(api.DecodeF32(v)), nil
	case api.ValueTypeF64:
		return starlark.Float(api.DecodeF64(v)), nil
	}
	return nil, fmt.Errorf("unsupported result type %s", api.ValueTypeName(t))
}
