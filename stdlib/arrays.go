package stdlib

import (
	"sort"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/values"
)

func installArrays(e *engine.Engine) {
	e.RegisterFunction("array_len", 1, arrayLen)
	e.RegisterFunction("array_push", 2, arrayPush)
	e.RegisterFunction("array_pop", 1, arrayPop)
	e.RegisterFunction("array_get", 2, arrayGet)
	e.RegisterFunction("array_set", 3, arraySet)
	e.RegisterFunction("array_map", 2, arrayMap)
	e.RegisterFunction("array_filter", 2, arrayFilter)
	e.RegisterFunction("array_sort", -1, arraySort)
	e.RegisterFunction("array_iter", 1, arrayIter)
}

func expectArray(v values.ScriptValue, who string) (*values.Array, error) {
	if v.Kind != values.KindArray {
		return nil, typeErr(who, "array", v.TypeName())
	}
	return v.Agg.(*values.Array), nil
}

func arrayLen(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_len")
	if err != nil {
		return values.Nil(), err
	}
	return values.Number(float64(arr.Len())), nil
}

func arrayPush(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_push")
	if err != nil {
		return values.Nil(), err
	}
	arr.Push(args[1])
	return args[0], nil
}

func arrayPop(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_pop")
	if err != nil {
		return values.Nil(), err
	}
	n := arr.Len()
	if n == 0 {
		return values.Nil(), nil
	}
	v, _ := arr.Get(n - 1)
	// Drop the array's ownership of the popped element: the VM's native-call
	// dispatch retains it again when writing the return value into a
	// register, so releasing here (rather than copying it out unreleased)
	// keeps the net refcount unchanged across the pop.
	arr.Elements[n-1].Release()
	arr.Elements = arr.Elements[:n-1]
	return v, nil
}

func arrayGet(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_get")
	if err != nil {
		return values.Nil(), err
	}
	if args[1].Kind != values.KindNumber {
		return values.Nil(), typeErr("array_get", "number", args[1].TypeName())
	}
	v, ok := arr.Get(int(args[1].Num))
	if !ok {
		return values.Nil(), nil
	}
	return v, nil
}

func arraySet(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_set")
	if err != nil {
		return values.Nil(), err
	}
	if args[1].Kind != values.KindNumber {
		return values.Nil(), typeErr("array_set", "number", args[1].TypeName())
	}
	arr.Set(int(args[1].Num), args[2])
	return args[0], nil
}

func arrayMap(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_map")
	if err != nil {
		return values.Nil(), err
	}
	if args[1].Kind != values.KindFunction {
		return values.Nil(), typeErr("array_map", "function", args[1].TypeName())
	}
	out, err := newChargedArray(ctx, arr.Len())
	if err != nil {
		return values.Nil(), err
	}
	for i := 0; i < arr.Len(); i++ {
		el, _ := arr.Get(i)
		mapped, err := ctx.CallFunc(args[1], []values.ScriptValue{el})
		if err != nil {
			return values.Nil(), err
		}
		out.Push(mapped)
	}
	return values.FromArray(out), nil
}

func arrayFilter(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_filter")
	if err != nil {
		return values.Nil(), err
	}
	if args[1].Kind != values.KindFunction {
		return values.Nil(), typeErr("array_filter", "function", args[1].TypeName())
	}
	out, err := newChargedArray(ctx, 0)
	if err != nil {
		return values.Nil(), err
	}
	for i := 0; i < arr.Len(); i++ {
		el, _ := arr.Get(i)
		keep, err := ctx.CallFunc(args[1], []values.ScriptValue{el})
		if err != nil {
			return values.Nil(), err
		}
		if keep.Truthy() {
			out.Push(el)
		}
	}
	return values.FromArray(out), nil
}

// arraySort(arr[, cmp]) sorts a copy of arr. Without cmp, numbers sort
// numerically and strings lexicographically; mixed-kind arrays without a
// comparator raise a TypeMismatchError rather than guessing an ordering.
func arraySort(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_sort")
	if err != nil {
		return values.Nil(), err
	}
	elems := make([]values.ScriptValue, arr.Len())
	for i := range elems {
		elems[i], _ = arr.Get(i)
	}

	var sortErr error
	if len(args) >= 2 && args[1].Kind == values.KindFunction {
		cmp := args[1]
		sort.SliceStable(elems, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			res, err := ctx.CallFunc(cmp, []values.ScriptValue{elems[i], elems[j]})
			if err != nil {
				sortErr = err
				return false
			}
			return res.Truthy()
		})
	} else {
		sort.SliceStable(elems, func(i, j int) bool {
			a, b := elems[i], elems[j]
			if a.Kind == values.KindNumber && b.Kind == values.KindNumber {
				return a.Num < b.Num
			}
			if a.Kind == values.KindString && b.Kind == values.KindString {
				return a.Str < b.Str
			}
			sortErr = typeErr("array_sort", "number or string (or a comparator)", a.TypeName())
			return false
		})
	}
	if sortErr != nil {
		return values.Nil(), sortErr
	}

	out, err := newChargedArray(ctx, len(elems))
	if err != nil {
		return values.Nil(), err
	}
	for _, v := range elems {
		out.Push(v)
	}
	return values.FromArray(out), nil
}

// arrayIter produces a single iterator function compatible with the
// single-iterator-function generic-for protocol: each call returns the next
// [index, value, ok] triple, ok=false once exhausted.
func arrayIter(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	arr, err := expectArray(args[0], "array_iter")
	if err != nil {
		return values.Nil(), err
	}
	i := 0
	iter := func(_ []values.ScriptValue) (values.ScriptValue, error) {
		result, err := newChargedArray(ctx, 3)
		if err != nil {
			return values.Nil(), err
		}
		if i >= arr.Len() {
			result.Push(values.Nil())
			result.Push(values.Nil())
			result.Push(values.Bool(false))
			return values.FromArray(result), nil
		}
		v, _ := arr.Get(i)
		result.Push(values.Number(float64(i)))
		result.Push(v)
		result.Push(values.Bool(true))
		i++
		return values.FromArray(result), nil
	}
	return values.FromFunc(values.NewNativeFunction("array_iter#next", iter)), nil
}
