package stdlib

import (
	"sort"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/values"
)

func installTables(e *engine.Engine) {
	e.RegisterFunction("table_keys", 1, tableKeys)
	e.RegisterFunction("table_has", 2, tableHas)
	e.RegisterFunction("table_get", 2, tableGet)
	e.RegisterFunction("table_set", 3, tableSet)
	e.RegisterFunction("table_remove", 2, tableRemove)
	e.RegisterFunction("table_len", 1, tableLen)
	e.RegisterFunction("table_merge", 2, tableMerge)
}

func expectTable(v values.ScriptValue, who string) (*values.Table, error) {
	if v.Kind != values.KindTable {
		return nil, typeErr(who, "table", v.TypeName())
	}
	return v.Agg.(*values.Table), nil
}

// tableKeys returns keys in sorted order so scripts get deterministic
// iteration rather than depending on Go's randomized map ranging.
func tableKeys(ctx *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_keys")
	if err != nil {
		return values.Nil(), err
	}
	keys := t.Keys()
	sort.Strings(keys)
	arr, err := newChargedArray(ctx, len(keys))
	if err != nil {
		return values.Nil(), err
	}
	for _, k := range keys {
		arr.Push(values.String(k))
	}
	return values.FromArray(arr), nil
}

func tableHas(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_has")
	if err != nil {
		return values.Nil(), err
	}
	key, err := expectString(args[1], "table_has")
	if err != nil {
		return values.Nil(), err
	}
	_, ok := t.Get(key)
	return values.Bool(ok), nil
}

func tableGet(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_get")
	if err != nil {
		return values.Nil(), err
	}
	key, err := expectString(args[1], "table_get")
	if err != nil {
		return values.Nil(), err
	}
	v, ok := t.Get(key)
	if !ok {
		return values.Nil(), nil
	}
	return v, nil
}

func tableSet(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_set")
	if err != nil {
		return values.Nil(), err
	}
	key, err := expectString(args[1], "table_set")
	if err != nil {
		return values.Nil(), err
	}
	t.Set(key, args[2])
	return args[0], nil
}

func tableRemove(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_remove")
	if err != nil {
		return values.Nil(), err
	}
	key, err := expectString(args[1], "table_remove")
	if err != nil {
		return values.Nil(), err
	}
	t.Remove(key)
	return args[0], nil
}

func tableLen(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	t, err := expectTable(args[0], "table_len")
	if err != nil {
		return values.Nil(), err
	}
	return values.Number(float64(len(t.Keys()))), nil
}

// tableMerge copies every field of src into dst and returns dst, matching
// the reference-semantics the rest of the table helpers use: tables are
// always passed by reference, never copied.
func tableMerge(_ *registry.BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	dst, err := expectTable(args[0], "table_merge")
	if err != nil {
		return values.Nil(), err
	}
	src, err := expectTable(args[1], "table_merge")
	if err != nil {
		return values.Nil(), err
	}
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
	return args[0], nil
}
