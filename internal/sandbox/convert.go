package sandbox

import (
	"encoding/json"
	"fmt"
	"math/big"

	"go.starlark.net/starlark"
)

// ToStarlark converts a plain Go value (the shapes produced by JSON and
// YAML decoding, plus the common Go scalars) into a Starlark value.
func ToStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		if b, ok := new(big.Int).SetString(v.String(), 10); ok {
			return starlark.MakeBigInt(b), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", v.String())
		}
		return starlark.Float(f), nil
	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			se, err := ToStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = se
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, e := range v {
			se, err := ToStarlark(e)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), se); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// FromStarlark converts a Starlark value back into a plain Go value.
// Integers come back as json.Number so arbitrary precision survives the
// JSON hop across the worker process boundary. Values with no sensible
// external representation (builtins, functions) return an error and are
// skipped by Extract.
func FromStarlark(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		return json.Number(v.String()), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Tuple:
		return fromSequence(v.Len(), v.Index)
	case *starlark.List:
		return fromSequence(v.Len(), v.Index)
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key of type %s cannot be exported", item[0].Type())
			}
			gv, err := FromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %s cannot be exported", v.Type())
	}
}

func fromSequence(n int, index func(int) starlark.Value) (any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		gv, err := FromStarlark(index(i))
		if err != nil {
			return nil, err
		}
		out[i] = gv
	}
	return out, nil
}
