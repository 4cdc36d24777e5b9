package stdlib

import (
	"testing"

	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/values"
)

// callNativeCtx dispatches CallFunc straight to a native function value's
// Native callback, enough to exercise array_map/filter/sort in isolation
// without spinning up a VirtualMachine.
func callNativeCtx() *registry.BuiltinCallContext {
	return &registry.BuiltinCallContext{
		CallFunc: func(fn values.ScriptValue, args []values.ScriptValue) (values.ScriptValue, error) {
			return fn.Agg.(*values.Function).Native(args)
		},
	}
}

func nativeFn(name string, f func(args []values.ScriptValue) (values.ScriptValue, error)) values.ScriptValue {
	return values.FromFunc(values.NewNativeFunction(name, f))
}

func numArray(nums ...float64) *values.Array {
	arr := values.NewArray(len(nums))
	for _, n := range nums {
		arr.Push(values.Number(n))
	}
	return arr
}

func TestArrayLenPushPop(t *testing.T) {
	arr := values.FromArray(numArray(1, 2, 3))

	got, err := arrayLen(nil, []values.ScriptValue{arr})
	if err != nil || got.Num != 3 {
		t.Fatalf("arrayLen = %v, %v", got, err)
	}

	if _, err := arrayPush(nil, []values.ScriptValue{arr, values.Number(4)}); err != nil {
		t.Fatalf("arrayPush error: %v", err)
	}
	got, _ = arrayLen(nil, []values.ScriptValue{arr})
	if got.Num != 4 {
		t.Fatalf("arrayLen after push = %v, want 4", got)
	}

	popped, err := arrayPop(nil, []values.ScriptValue{arr})
	if err != nil {
		t.Fatalf("arrayPop error: %v", err)
	}
	if popped.Num != 4 {
		t.Errorf("arrayPop = %v, want 4", popped)
	}
	got, _ = arrayLen(nil, []values.ScriptValue{arr})
	if got.Num != 3 {
		t.Errorf("arrayLen after pop = %v, want 3", got)
	}
}

func TestArrayPopRefcountDoesNotLeak(t *testing.T) {
	outer := values.NewArray(0)
	inner := values.NewArray(0)
	outer.Push(values.FromArray(inner))
	if inner.RefCount() != 2 {
		t.Fatalf("inner refcount after push = %d, want 2", inner.RefCount())
	}

	popped, err := arrayPop(nil, []values.ScriptValue{values.FromArray(outer)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// arrayPop drops outer's reference (the VM retains the returned value
	// when it writes it into a register): refcount should be back at 1,
	// the test's own reference from NewArray, not drop to 0 or climb to 3.
	if inner.RefCount() != 1 {
		t.Fatalf("inner refcount after pop = %d, want 1", inner.RefCount())
	}
	if popped.Agg != inner {
		t.Fatal("expected the popped value to be the inner array")
	}
	popped.Agg.Release()
}

func TestArrayGetSet(t *testing.T) {
	arr := values.FromArray(numArray(10, 20, 30))

	v, err := arrayGet(nil, []values.ScriptValue{arr, values.Number(1)})
	if err != nil || v.Num != 20 {
		t.Fatalf("arrayGet(1) = %v, %v", v, err)
	}

	if _, err := arraySet(nil, []values.ScriptValue{arr, values.Number(1), values.Number(99)}); err != nil {
		t.Fatalf("arraySet error: %v", err)
	}
	v, _ = arrayGet(nil, []values.ScriptValue{arr, values.Number(1)})
	if v.Num != 99 {
		t.Errorf("arrayGet(1) after set = %v, want 99", v)
	}
}

func TestArrayGetOutOfRangeReturnsNil(t *testing.T) {
	arr := values.FromArray(numArray(1))
	v, err := arrayGet(nil, []values.ScriptValue{arr, values.Number(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != values.KindNil {
		t.Errorf("expected Nil for out-of-range index, got %v", v)
	}
}

func TestArrayMap(t *testing.T) {
	arr := values.FromArray(numArray(1, 2, 3))
	double := nativeFn("double", func(args []values.ScriptValue) (values.ScriptValue, error) {
		return values.Number(args[0].Num * 2), nil
	})

	result, err := arrayMap(callNativeCtx(), []values.ScriptValue{arr, double})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Agg.(*values.Array)
	for i, want := range []float64{2, 4, 6} {
		v, _ := out.Get(i)
		if v.Num != want {
			t.Errorf("index %d: got %v, want %v", i, v.Num, want)
		}
	}
}

func TestArrayFilter(t *testing.T) {
	arr := values.FromArray(numArray(1, 2, 3, 4, 5))
	isEven := nativeFn("isEven", func(args []values.ScriptValue) (values.ScriptValue, error) {
		n := int(args[0].Num)
		return values.Bool(n%2 == 0), nil
	})

	result, err := arrayFilter(callNativeCtx(), []values.ScriptValue{arr, isEven})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Agg.(*values.Array)
	if out.Len() != 2 {
		t.Fatalf("filtered length = %d, want 2", out.Len())
	}
	v0, _ := out.Get(0)
	v1, _ := out.Get(1)
	if v0.Num != 2 || v1.Num != 4 {
		t.Errorf("got %v, %v", v0, v1)
	}
}

func TestArraySortDefaultNumeric(t *testing.T) {
	arr := values.FromArray(numArray(3, 1, 2))
	result, err := arraySort(nil, []values.ScriptValue{arr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Agg.(*values.Array)
	for i, want := range []float64{1, 2, 3} {
		v, _ := out.Get(i)
		if v.Num != want {
			t.Errorf("index %d: got %v, want %v", i, v.Num, want)
		}
	}
}

func TestArraySortWithComparator(t *testing.T) {
	arr := values.FromArray(numArray(3, 1, 2))
	descending := nativeFn("descending", func(args []values.ScriptValue) (values.ScriptValue, error) {
		return values.Bool(args[0].Num > args[1].Num), nil
	})

	result, err := arraySort(callNativeCtx(), []values.ScriptValue{arr, descending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Agg.(*values.Array)
	for i, want := range []float64{3, 2, 1} {
		v, _ := out.Get(i)
		if v.Num != want {
			t.Errorf("index %d: got %v, want %v", i, v.Num, want)
		}
	}
}

func TestArraySortMixedKindsWithoutComparatorErrors(t *testing.T) {
	arr := values.NewArray(0)
	arr.Push(values.Number(1))
	arr.Push(values.String("a"))
	_, err := arraySort(nil, []values.ScriptValue{values.FromArray(arr)})
	if err == nil {
		t.Fatal("expected a type error sorting mixed-kind elements without a comparator")
	}
}

func TestArrayIterProtocol(t *testing.T) {
	arr := values.FromArray(numArray(10, 20))
	iterVal, err := arrayIter(nil, []values.ScriptValue{arr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := iterVal.Agg.(*values.Function)

	r1, _ := fn.Native(nil)
	if r1.Agg.(*values.Array).Len() != 3 {
		t.Fatalf("iterator should yield [index, value, ok] triples")
	}
	idx, _ := r1.Agg.(*values.Array).Get(0)
	val, _ := r1.Agg.(*values.Array).Get(1)
	ok, _ := r1.Agg.(*values.Array).Get(2)
	if idx.Num != 0 || val.Num != 10 || !ok.Truthy() {
		t.Errorf("first iteration = %v", r1)
	}

	_, _ = fn.Native(nil) // second element

	r3, _ := fn.Native(nil)
	ok3, _ := r3.Agg.(*values.Array).Get(2)
	if ok3.Truthy() {
		t.Error("expected ok=false once the array is exhausted")
	}
}
