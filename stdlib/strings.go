package stdlib

import (
	"strings"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

// chargeString charges ctx's memory limiter for a newly built string of
// length n, the same per-byte accounting OP_CONCAT uses, so a native that
// builds its own string (upper/lower/trim/sub/replace/concat) can't bypass
// the limit the bytecode-level concatenations are held to.
func chargeString(ctx *registry.BuiltinCallContext, n int) error {
	if ctx == nil || ctx.Memory == nil {
		return nil
	}
	return ctx.Memory.Charge(sandbox.EstimateSize("string", n))
}

func installStrings(e *engine.Engine) {
	e.RegisterFunction("str_len", 1, strLen)
	e.RegisterFunction("str_upper", 1, strUpper)
	e.RegisterFunction("str_lower", 1, strLower)
	e.RegisterFunction("str_sub", -1, strSub)
	e.RegisterFunction("str_trim", 1, strTrim)
	e.RegisterFunction("str_split", 2, strSplit)
	e.RegisterFunction("str_replace", 3, strReplace)
	e.RegisterFunction("str_concat", -1, strConcat)
}

func expectString(v values.ScriptValue, who string) (string, error) {
	if v.Kind != values.KindString {
		return "", typeErr(who, "string", v.TypeName())
	}
	return v.Str, nil
}

func typeErr(who, want, got string) error {
	return &TypeMismatchError{Who: who, Want: want, Got: got}
}

// TypeMismatchError is returned by stdlib helpers when an argument doesn't
// match the expected ScriptValue kind; the VM's CALL dispatch wraps it into
// vm.NativeError without stdlib needing to import package vm.
type TypeMismatchError struct {
	Who, Want, Got string
}

func (e *TypeMismatchError) Error() string {
	return e.Who + ": expected " + e.Want + ", got " + e.Got
}

func strLen(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_len")
	if err != nil {
		return values.Nil(), err
	}
	return values.Number(float64(len(s))), nil
}

func strUpper(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_upper")
	if err != nil {
		return values.Nil(), err
	}
	out := strings.ToUpper(s)
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}

func strLower(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_lower")
	if err != nil {
		return values.Nil(), err
	}
	out := strings.ToLower(s)
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}

// strSub(s, start[, length]) — 0-based start, matching array indexing
// elsewhere in the language; a negative or out-of-range start/length is
// clamped rather than erroring, consistent with the permissive numeric
// coercion used for indexing.
func strSub(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	if len(args) < 2 {
		return values.Nil(), &registry.ArityError{Name: "str_sub", Expected: 2, Got: len(args)}
	}
	s, err := expectString(args[0], "str_sub")
	if err != nil {
		return values.Nil(), err
	}
	if args[1].Kind != values.KindNumber {
		return values.Nil(), typeErr("str_sub", "number", args[1].TypeName())
	}
	start := clamp(int(args[1].Num), 0, len(s))
	end := len(s)
	if len(args) >= 3 && args[2].Kind == values.KindNumber {
		end = clamp(start+int(args[2].Num), start, len(s))
	}
	if err := chargeString(ctx, end-start); err != nil {
		return values.Nil(), err
	}
	return values.String(s[start:end]), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func strTrim(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_trim")
	if err != nil {
		return values.Nil(), err
	}
	out := strings.TrimSpace(s)
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}

func strSplit(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_split")
	if err != nil {
		return values.Nil(), err
	}
	sep, err := expectString(args[1], "str_split")
	if err != nil {
		return values.Nil(), err
	}
	parts := strings.Split(s, sep)
	arr, err := newChargedArray(ctx, len(parts))
	if err != nil {
		return values.Nil(), err
	}
	for _, p := range parts {
		arr.Push(values.String(p))
	}
	return values.FromArray(arr), nil
}

func strReplace(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	s, err := expectString(args[0], "str_replace")
	if err != nil {
		return values.Nil(), err
	}
	old, err := expectString(args[1], "str_replace")
	if err != nil {
		return values.Nil(), err
	}
	repl, err := expectString(args[2], "str_replace")
	if err != nil {
		return values.Nil(), err
	}
	out := strings.ReplaceAll(s, old, repl)
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}

func strConcat(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.ToRawString())
	}
	out := b.String()
	if err := chargeString(ctx, len(out)); err != nil {
		return values.Nil(), err
	}
	return values.String(out), nil
}
