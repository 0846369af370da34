package luaengine

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/novasandbox/internal/value"
)

func valueToLua(L *lua.LState, v value.Value) lua.LValue {
	switch v.Kind {
	case value.Void:
		return lua.LNil
	case value.Float32:
		return lua.LNumber(v.AsFloat32())
	case value.Int32:
		return lua.LNumber(v.AsInt32())
	case value.Bool:
		return lua.LBool(v.AsBool())
	case value.String:
		return lua.LString(v.AsString())
	case value.Array:
		arr := v.AsArray()
		tbl := L.CreateTable(len(arr), 0)
		for i, el := range arr {
			tbl.RawSetInt(i+1, valueToLua(L, el))
		}
		return tbl
	default:
		return lua.LNil
	}
}

func luaToValue(lv lua.LValue) value.Value {
	switch lv.Type() {
	case lua.LTNil:
		return value.VoidValue()
	case lua.LTBool:
		return value.BoolValue(bool(lv.(lua.LBool)))
	case lua.LTNumber:
		n := float64(lv.(lua.LNumber))
		if n == float64(int32(n)) {
			return value.Int32Value(int32(n))
		}
		return value.Float32Value(float32(n))
	case lua.LTString:
		return value.StringValue(string(lv.(lua.LString)))
	case lua.LTTable:
		tbl := lv.(*lua.LTable)
		n := tbl.Len()
		out := make([]value.Value, n)
		for i := 1; i <= n; i++ {
			out[i-1] = luaToValue(tbl.RawGetInt(i))
		}
		return value.ArrayValue(out)
	default:
		return value.VoidValue()
	}
}
