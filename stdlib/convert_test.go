package stdlib

import (
	"testing"

	"github.com/wudi/gza/values"
)

func TestTypeOf(t *testing.T) {
	cases := []struct {
		v    values.ScriptValue
		want string
	}{
		{values.Nil(), "nil"},
		{values.Bool(true), "boolean"},
		{values.Number(1), "number"},
		{values.String("x"), "string"},
		{values.FromArray(values.NewArray(0)), "array"},
		{values.FromTable(values.NewTable()), "table"},
	}
	for _, c := range cases {
		got, err := typeOf(nil, []values.ScriptValue{c.v})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Str != c.want {
			t.Errorf("type(%v) = %q, want %q", c.v, got.Str, c.want)
		}
	}
}

func TestToStringFn(t *testing.T) {
	got, err := toStringFn(nil, []values.ScriptValue{values.Number(3)})
	if err != nil || got.Str != "3" {
		t.Fatalf("toStringFn(3) = %v, %v", got, err)
	}
}

func TestToNumberFnPlainNumeric(t *testing.T) {
	got, err := toNumberFn(nil, []values.ScriptValue{values.String("42")})
	if err != nil || got.Num != 42 {
		t.Fatalf("tonumber(\"42\") = %v, %v", got, err)
	}
}

func TestToNumberFnPermissivePrefix(t *testing.T) {
	got, err := toNumberFn(nil, []values.ScriptValue{values.String("42abc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Num != 42 {
		t.Errorf("tonumber(\"42abc\") = %v, want 42", got)
	}
}

func TestToNumberFnNonNumericReturnsNil(t *testing.T) {
	got, err := toNumberFn(nil, []values.ScriptValue{values.String("abc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != values.KindNil {
		t.Errorf("tonumber(\"abc\") = %v, want Nil", got)
	}
}

func TestToNumberFnPassesThroughNumbers(t *testing.T) {
	got, err := toNumberFn(nil, []values.ScriptValue{values.Number(3.5)})
	if err != nil || got.Num != 3.5 {
		t.Fatalf("tonumber(3.5) = %v, %v", got, err)
	}
}

func TestToNumberFnNegativeAndDecimalPrefix(t *testing.T) {
	got, err := toNumberFn(nil, []values.ScriptValue{values.String("-3.14xyz")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Num != -3.14 {
		t.Errorf("got %v, want -3.14", got.Num)
	}
}

func TestDumpFn(t *testing.T) {
	got, err := dumpFn(nil, []values.ScriptValue{values.Number(7)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Str == "" {
		t.Error("expected a non-empty dump")
	}
}
