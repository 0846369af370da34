package value

import (
	"fmt"
	"strconv"
)

// NotConvertibleError reports that a parameter could not be coerced to the
// shape a native callback declared, along with the offending parameter
// index (spec §4.1).
type NotConvertibleError struct {
	ParamIndex int
	From       Kind
	To         Kind
}

func (e *NotConvertibleError) Error() string {
	return fmt.Sprintf("parameter %d: cannot convert %s to %s", e.ParamIndex, e.From, e.To)
}

// Coerce adapts v to the target Kind following the per-argument switch in
// original_source/function.c's cfunction_call: numeric widening between
// i32/f32, bool from zero/non-zero, and string formatting/parsing.
// paramIndex is only used to build a NotConvertibleError.
func Coerce(v Value, to Kind, paramIndex int) (Value, error) {
	if v.Kind == to {
		return v, nil
	}
	switch to {
	case Int32:
		switch v.Kind {
		case Float32:
			return Int32Value(int32(v.f32)), nil
		case Bool:
			if v.b {
				return Int32Value(1), nil
			}
			return Int32Value(0), nil
		case String:
			n, err := strconv.ParseInt(v.s, 10, 32)
			if err != nil {
				return Value{}, &NotConvertibleError{paramIndex, v.Kind, to}
			}
			return Int32Value(int32(n)), nil
		}
	case Float32:
		switch v.Kind {
		case Int32:
			return Float32Value(float32(v.i32)), nil
		case Bool:
			if v.b {
				return Float32Value(1), nil
			}
			return Float32Value(0), nil
		case String:
			f, err := strconv.ParseFloat(v.s, 32)
			if err != nil {
				return Value{}, &NotConvertibleError{paramIndex, v.Kind, to}
			}
			return Float32Value(float32(f)), nil
		}
	case Bool:
		switch v.Kind {
		case Int32:
			return BoolValue(v.i32 != 0), nil
		case Float32:
			return BoolValue(v.f32 != 0), nil
		case String:
			return BoolValue(v.s != ""), nil
		}
	case String:
		switch v.Kind {
		case Int32:
			return StringValue(strconv.FormatInt(int64(v.i32), 10)), nil
		case Float32:
			return StringValue(strconv.FormatFloat(float64(v.f32), 'g', -1, 32)), nil
		case Bool:
			return StringValue(strconv.FormatBool(v.b)), nil
		}
	}
	return Value{}, &NotConvertibleError{paramIndex, v.Kind, to}
}
