package jsengine

import (
	"github.com/dop251/goja"

	"github.com/oriys/novasandbox/internal/value"
)

func valueToJS(vm *goja.Runtime, v value.Value) goja.Value {
	switch v.Kind {
	case value.Void:
		return goja.Undefined()
	case value.Float32:
		return vm.ToValue(float64(v.AsFloat32()))
	case value.Int32:
		return vm.ToValue(v.AsInt32())
	case value.Bool:
		return vm.ToValue(v.AsBool())
	case value.String:
		return vm.ToValue(v.AsString())
	case value.Array:
		arr := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, el := range arr {
			out[i] = valueToJS(vm, el)
		}
		return vm.ToValue(out)
	default:
		return goja.Undefined()
	}
}

func jsToValue(v goja.Value) value.Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return value.VoidValue()
	}
	return exportedToValue(v.Export())
}

// exportedToValue converts a Go value produced by goja.Value.Export into
// our Value model, recursing into slices for arrays.
func exportedToValue(exported interface{}) value.Value {
	switch ev := exported.(type) {
	case nil:
		return value.VoidValue()
	case bool:
		return value.BoolValue(ev)
	case int64:
		return value.Int32Value(int32(ev))
	case float64:
		if ev == float64(int32(ev)) {
			return value.Int32Value(int32(ev))
		}
		return value.Float32Value(float32(ev))
	case string:
		return value.StringValue(ev)
	case []interface{}:
		out := make([]value.Value, len(ev))
		for i, el := range ev {
			out[i] = exportedToValue(el)
		}
		return value.ArrayValue(out)
	default:
		return value.VoidValue()
	}
}
