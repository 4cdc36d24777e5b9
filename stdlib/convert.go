package stdlib

import (
	"strconv"
	"strings"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/values"
)

func installConvert(e *engine.Engine) {
	e.RegisterFunction("type", 1, typeOf)
	e.RegisterFunction("tostring", 1, toStringFn)
	e.RegisterFunction("tonumber", 1, toNumberFn)
	e.RegisterFunction("dump", 1, dumpFn)
}

func typeOf(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	return values.String(args[0].TypeName()), nil
}

func toStringFn(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	out := args[0].ToRawString()
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}

// toNumberFn truncates permissively: a leading numeric prefix of a string
// converts (e.g. "42abc" -> 42), and anything that doesn't start with a
// number yields nil rather than an error — the same permissive coercion
// used for indexing elsewhere in the language.
func toNumberFn(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	v := args[0]
	switch v.Kind {
	case values.KindNumber:
		return v, nil
	case values.KindString:
		s := strings.TrimSpace(v.Str)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return values.Number(n), nil
		}
		end := 0
		for end < len(s) && (isDigitByte(s[end]) || s[end] == '-' || s[end] == '+' || s[end] == '.') {
			end++
		}
		if end == 0 {
			return values.Nil(), nil
		}
		if n, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return values.Number(n), nil
		}
		return values.Nil(), nil
	default:
		return values.Nil(), nil
	}
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

// dumpFn wraps ScriptValue.Dump(), a var_dump-style introspection helper.
func dumpFn(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	out := args[0].Dump()
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}
