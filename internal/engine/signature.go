package engine

import (
	"fmt"

	"github.com/oriys/novasandbox/internal/value"
)

// ParseSignature decodes a type-descriptor string (spec §6 "Type
// descriptors"): a sequence of single-letter codes, `v`=void, `i`=i32,
// `f`=f32, `b`=bool, `s`=string, `[`=array, read positionally. Grounded on
// original_source/function.c's _parse_type/function_count_args, which walk
// a params string one byte at a time; this parser keeps that one-byte-per-
// letter cursor but resolves the source's array ambiguity per spec
// property 3: a `[` still advances the cursor but is excluded from the
// reported arity.
func ParseSignature(descriptor string) ([]value.Kind, int, error) {
	kinds := make([]value.Kind, 0, len(descriptor))
	arity := 0
	for i := 0; i < len(descriptor); i++ {
		switch descriptor[i] {
		case 'v':
			kinds = append(kinds, value.Void)
			arity++
		case 'i':
			kinds = append(kinds, value.Int32)
			arity++
		case 'f':
			kinds = append(kinds, value.Float32)
			arity++
		case 'b':
			kinds = append(kinds, value.Bool)
			arity++
		case 's':
			kinds = append(kinds, value.String)
			arity++
		case '[':
			kinds = append(kinds, value.Array)
		default:
			return nil, 0, fmt.Errorf("engine: invalid type descriptor byte %q at offset %d in %q", descriptor[i], i, descriptor)
		}
	}
	return kinds, arity, nil
}

// ParseReturnSignature parses a single-value return descriptor: the empty
// string means void, otherwise exactly one type letter.
func ParseReturnSignature(descriptor string) (value.Kind, error) {
	if descriptor == "" {
		return value.Void, nil
	}
	kinds, _, err := ParseSignature(descriptor)
	if err != nil {
		return value.Void, err
	}
	if len(kinds) != 1 {
		return value.Void, fmt.Errorf("engine: return descriptor %q must name exactly one type", descriptor)
	}
	return kinds[0], nil
}

// WrapCoercion adapts fn's arguments to paramKinds and its return value to
// returnKind at the native callback boundary (spec §4.1, §6). paramKinds
// that don't line up with the call's actual argument count are left
// untouched at the extra or missing positions — arity mismatches are the
// adapter's concern, not the coercion layer's.
func WrapCoercion(paramKinds []value.Kind, returnKind value.Kind, fn value.Callable) value.Callable {
	return func(args []value.Value) (value.Value, error) {
		coerced := make([]value.Value, len(args))
		copy(coerced, args)
		for i := range coerced {
			if i >= len(paramKinds) {
				break
			}
			cv, err := value.Coerce(coerced[i], paramKinds[i], i)
			if err != nil {
				return value.VoidValue(), &CoercionError{ParamIndex: i, Reason: err.Error()}
			}
			coerced[i] = cv
		}

		result, err := fn(coerced)
		if err != nil {
			return value.VoidValue(), err
		}
		if returnKind == value.Void {
			return value.VoidValue(), nil
		}
		rv, err := value.Coerce(result, returnKind, -1)
		if err != nil {
			return value.VoidValue(), &CoercionError{ParamIndex: -1, Reason: err.Error()}
		}
		return rv, nil
	}
}
