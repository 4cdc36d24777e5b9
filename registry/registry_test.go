package registry

import (
	"testing"

	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

func echoImpl(_ *BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
	return args[0], nil
}

func TestBindEnforcesArity(t *testing.T) {
	fn := &Function{Name: "echo", Arity: 1, Impl: echoImpl}
	ctx := &BuiltinCallContext{Security: sandbox.DefaultSecurityContext()}
	native := Bind(fn, ctx)

	_, err := native.Native(nil)
	if err == nil {
		t.Fatal("expected an ArityError calling with no arguments")
	}
	if _, ok := err.(*ArityError); !ok {
		t.Errorf("expected *ArityError, got %T: %v", err, err)
	}

	_, err = native.Native([]values.ScriptValue{values.Number(1), values.Number(2)})
	if err == nil {
		t.Fatal("expected an ArityError calling with too many arguments")
	}
}

func TestBindInvokesImplementationOnCorrectArity(t *testing.T) {
	fn := &Function{Name: "echo", Arity: 1, Impl: echoImpl}
	ctx := &BuiltinCallContext{Security: sandbox.DefaultSecurityContext()}
	native := Bind(fn, ctx)

	result, err := native.Native([]values.ScriptValue{values.String("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Str != "hi" {
		t.Errorf("got %v, want %q", result, "hi")
	}
}

func TestBindVariadicArityAcceptsAnyCount(t *testing.T) {
	fn := &Function{Name: "variadic", Arity: -1, Impl: func(_ *BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
		return values.Number(float64(len(args))), nil
	}}
	ctx := &BuiltinCallContext{}
	native := Bind(fn, ctx)

	result, err := native.Native([]values.ScriptValue{values.Number(1), values.Number(2), values.Number(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Num != 3 {
		t.Errorf("got %v, want 3", result.Num)
	}
}

func TestRegistryLookupAndNames(t *testing.T) {
	r := New()
	r.Register(&Function{Name: "echo", Arity: 1, Impl: echoImpl})

	fn, ok := r.Lookup("echo")
	if !ok || fn.Name != "echo" {
		t.Fatalf("Lookup(echo) = %v, %v", fn, ok)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("expected Lookup(missing) to report not-found")
	}

	names := r.Names()
	if len(names) != 1 || names[0] != "echo" {
		t.Errorf("Names() = %v, want [echo]", names)
	}
}

func TestBindAllBindsEveryRegisteredFunction(t *testing.T) {
	r := New()
	r.Register(&Function{Name: "echo", Arity: 1, Impl: echoImpl})
	r.Register(&Function{Name: "count", Arity: -1, Impl: func(_ *BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
		return values.Number(float64(len(args))), nil
	}})

	ctx := &BuiltinCallContext{Security: sandbox.DefaultSecurityContext()}
	bound := r.BindAll(ctx)

	if len(bound) != 2 {
		t.Fatalf("BindAll produced %d entries, want 2", len(bound))
	}
	if _, ok := bound["echo"]; !ok {
		t.Error("expected echo to be bound")
	}
	if !bound["count"].IsNative() {
		t.Error("bound function should report IsNative")
	}
}

func TestCallFuncCallbackIsReachableFromImplementation(t *testing.T) {
	var calledWith values.ScriptValue
	ctx := &BuiltinCallContext{
		CallFunc: func(fn values.ScriptValue, args []values.ScriptValue) (values.ScriptValue, error) {
			calledWith = args[0]
			return values.Nil(), nil
		},
	}
	fn := &Function{Name: "invoke", Arity: 2, Impl: func(ctx *BuiltinCallContext, args []values.ScriptValue) (values.ScriptValue, error) {
		return ctx.CallFunc(args[0], args[1:])
	}}
	native := Bind(fn, ctx)

	_, err := native.Native([]values.ScriptValue{values.Nil(), values.String("payload")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calledWith.Str != "payload" {
		t.Errorf("CallFunc callback did not see expected argument, got %v", calledWith)
	}
}
