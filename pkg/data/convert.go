package data

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// ToStarlark converts a decoded document into a Starlark value.  Maps
// become dicts with sorted keys, sequences become lists.
func ToStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return t, nil
	case bool:
		return starlark.Bool(t), nil
	case string:
		return starlark.String(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case uint64:
		return starlark.MakeUint64(t), nil
	case *big.Int:
		return starlark.MakeBigInt(t), nil
	case float64:
		return starlark.Float(t), nil
	case float32:
		return starlark.Float(t), nil
	case *big.Float:
		f, _ := t.Float64()
		return starlark.Float(f), nil
	case time.Time:
		return starlarktime.Time(t), nil
	case []any:
		elems := make([]starlark.Value, len(t))
		for i, e := range t {
			sv, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(t))
		for _, k := range keys {
			sv, err := ToStarlark(t[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = e
		}
		return ToStarlark(m)
	case fmt.Stringer:
		return starlark.String(t.String()), nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}
