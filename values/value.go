// Package values defines ScriptValue, the tagged union that crosses the
// VM/host boundary, and the reference-counted aggregates (Array, Table,
// Function) it can hold. Unlike the teacher's PHP Value (which leans on
// Go's GC for Array/Object lifetime), every aggregate here carries an
// explicit refcount: retain/release discipline is part of the contract
// spec.md §3 imposes on the whole runtime, not an implementation detail.
package values

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/gza/sandbox"
)

// Kind is the tag of a ScriptValue.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindTable
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindTable:
		return "table"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// ScriptValue is the only value type crossing the VM/host boundary.
// Strings are always copied on ownership transfer: Str holds an independent
// Go string header per value, never shared/interned, matching the "no
// interning, no ref counting" rule for strings specifically (only the
// aggregates below are refcounted).
type ScriptValue struct {
	Kind Kind
	Num  float64
	Str  string
	Agg  Aggregate // non-nil iff Kind is KindArray, KindTable or KindFunction
}

// Aggregate is implemented by the three reference-counted value kinds.
// Retain/Release are the only operations the VM and registry are allowed to
// use to manage their lifetime; nothing else may free or share them.
type Aggregate interface {
	Retain()
	Release() int32 // returns refcount after the release
	RefCount() int32
}

func Nil() ScriptValue                { return ScriptValue{Kind: KindNil} }
func Bool(b bool) ScriptValue         { return ScriptValue{Kind: KindBool, Num: b2f(b)} }
func Number(n float64) ScriptValue    { return ScriptValue{Kind: KindNumber, Num: n} }
func String(s string) ScriptValue     { return ScriptValue{Kind: KindString, Str: s} }
func FromArray(a *Array) ScriptValue  { return ScriptValue{Kind: KindArray, Agg: a} }
func FromTable(t *Table) ScriptValue  { return ScriptValue{Kind: KindTable, Agg: t} }
func FromFunc(f *Function) ScriptValue { return ScriptValue{Kind: KindFunction, Agg: f} }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v ScriptValue) IsNil() bool      { return v.Kind == KindNil }
func (v ScriptValue) IsBool() bool     { return v.Kind == KindBool }
func (v ScriptValue) IsNumber() bool   { return v.Kind == KindNumber }
func (v ScriptValue) IsString() bool   { return v.Kind == KindString }
func (v ScriptValue) IsArray() bool    { return v.Kind == KindArray }
func (v ScriptValue) IsTable() bool    { return v.Kind == KindTable }
func (v ScriptValue) IsFunction() bool { return v.Kind == KindFunction }
func (v ScriptValue) IsAggregate() bool {
	return v.Kind == KindArray || v.Kind == KindTable || v.Kind == KindFunction
}

func (v ScriptValue) Bool() bool { return v.Num != 0 }

// Truthy reports script truthiness: false and nil are falsy, everything else
// (including 0, "", and empty aggregates) is truthy.
func (v ScriptValue) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Num != 0
	default:
		return true
	}
}

// Retain increments the refcount of an aggregate value. A no-op for
// primitives and strings, mirroring the refcount-drop contract (mirrored here
// as the retain half of the pair).
func (v ScriptValue) Retain() {
	if v.Agg != nil {
		v.Agg.Retain()
	}
}

// Release decrements the refcount of an aggregate value, freeing its
// contents (recursively releasing nested aggregates, freeing owned strings)
// when the count reaches zero. A no-op for primitives and strings.
func (v ScriptValue) Release() {
	if v.Agg != nil {
		v.Agg.Release()
	}
}

// Array is a shared, reference-counted, ordered sequence of ScriptValue.
type Array struct {
	refcount int32
	Elements []ScriptValue

	mem     *sandbox.MemoryLimiter
	charged int64
}

func NewArray(capacity int) *Array {
	return &Array{refcount: 1, Elements: make([]ScriptValue, 0, capacity)}
}

func (a *Array) Retain()         { a.refcount++ }
func (a *Array) RefCount() int32 { return a.refcount }

// ChargeMemory records that n bytes were charged against mem to back this
// array, so Release can hand them back once the array is freed. Called once
// by the VM right after construction; a no-op if the caller tracks no
// limiter.
func (a *Array) ChargeMemory(mem *sandbox.MemoryLimiter, n int64) {
	a.mem = mem
	a.charged = n
}

// Release decrements the refcount. On reaching zero every element is
// released (strings freed, nested aggregates released recursively), the
// backing slice is dropped, and any bytes charged against a memory limiter
// at construction time are handed back. A release past zero is a fatal
// invariant violation and panics rather than silently corrupting accounting.
func (a *Array) Release() int32 {
	if a.refcount <= 0 {
		panic("values: release of already-freed array")
	}
	a.refcount--
	if a.refcount == 0 {
		for _, el := range a.Elements {
			el.Release()
		}
		a.Elements = nil
		if a.mem != nil && a.charged > 0 {
			a.mem.Release(a.charged)
			a.charged = 0
		}
	}
	return a.refcount
}

func (a *Array) Len() int { return len(a.Elements) }

// Push appends a value, retaining it per the ARRAY_PUSH contract.
func (a *Array) Push(v ScriptValue) {
	v.Retain()
	a.Elements = append(a.Elements, v)
}

// Get returns the element at idx, or (Nil, false) if out of bounds.
func (a *Array) Get(idx int) (ScriptValue, bool) {
	if idx < 0 || idx >= len(a.Elements) {
		return Nil(), false
	}
	return a.Elements[idx], true
}

// Set overwrites (releasing the prior occupant first) or, when idx equals
// the current length, extends the array by one (the INDEX_SET opcode). Any
// other out-of-range index is the caller's responsibility to reject.
func (a *Array) Set(idx int, v ScriptValue) bool {
	if idx < 0 || idx > len(a.Elements) {
		return false
	}
	v.Retain()
	if idx == len(a.Elements) {
		a.Elements = append(a.Elements, v)
		return true
	}
	a.Elements[idx].Release()
	a.Elements[idx] = v
	return true
}

// Table is a shared, reference-counted, string-keyed mapping to ScriptValue.
type Table struct {
	refcount int32
	Fields   map[string]ScriptValue

	mem     *sandbox.MemoryLimiter
	charged int64
}

func NewTable() *Table {
	return &Table{refcount: 1, Fields: make(map[string]ScriptValue)}
}

func (t *Table) Retain()         { t.refcount++ }
func (t *Table) RefCount() int32 { return t.refcount }

// ChargeMemory records that n bytes were charged against mem to back this
// table, so Release can hand them back once the table is freed.
func (t *Table) ChargeMemory(mem *sandbox.MemoryLimiter, n int64) {
	t.mem = mem
	t.charged = n
}

func (t *Table) Release() int32 {
	if t.refcount <= 0 {
		panic("values: release of already-freed table")
	}
	t.refcount--
	if t.refcount == 0 {
		for _, v := range t.Fields {
			v.Release()
		}
		t.Fields = nil
		if t.mem != nil && t.charged > 0 {
			t.mem.Release(t.charged)
			t.charged = 0
		}
	}
	return t.refcount
}

func (t *Table) Get(key string) (ScriptValue, bool) {
	v, ok := t.Fields[key]
	return v, ok
}

// Set overwrites a field, releasing whatever value it previously held
// (the outgoing value is freed before the incoming one
// replaces it) and retaining the incoming one.
func (t *Table) Set(key string, v ScriptValue) {
	if old, ok := t.Fields[key]; ok {
		old.Release()
	}
	v.Retain()
	t.Fields[key] = v
}

func (t *Table) Remove(key string) {
	if old, ok := t.Fields[key]; ok {
		old.Release()
		delete(t.Fields, key)
	}
}

func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NativeFunc is a host-supplied callable registered by name. It receives a
// borrowed slice of arguments and returns a single owned ScriptValue.
type NativeFunc func(args []ScriptValue) (ScriptValue, error)

// Function is the reference-counted aggregate backing the `function` value
// kind: either a native callable (Native non-nil) or a script closure over a
// bytecode range (Entry/NumParams) and the constant pool it was compiled
// against.
type Function struct {
	refcount int32

	Name       string
	Native     NativeFunc
	Entry      int // instruction index of the first opcode of the body
	NumParams  int
	NumLocals  int // register file size the parser declared for this function
	IsVariadic bool
}

func NewNativeFunction(name string, fn NativeFunc) *Function {
	return &Function{refcount: 1, Name: name, Native: fn}
}

func NewScriptFunction(name string, entry, numParams, numLocals int) *Function {
	return &Function{refcount: 1, Name: name, Entry: entry, NumParams: numParams, NumLocals: numLocals}
}

func (f *Function) Retain()         { f.refcount++ }
func (f *Function) RefCount() int32 { return f.refcount }

func (f *Function) Release() int32 {
	if f.refcount <= 0 {
		panic("values: release of already-freed function")
	}
	f.refcount--
	return f.refcount
}

func (f *Function) IsNative() bool { return f.Native != nil }

// Equal implements script equality: numbers by IEEE equality (so NaN !=
// NaN), strings by byte sequence, booleans/nil by identity, aggregates by
// reference identity — two distinct arrays with equal contents are NOT
// equal.
func Equal(a, b ScriptValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool, KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	case KindArray:
		return a.Agg.(*Array) == b.Agg.(*Array)
	case KindTable:
		return a.Agg.(*Table) == b.Agg.(*Table)
	case KindFunction:
		return a.Agg.(*Function) == b.Agg.(*Function)
	default:
		return false
	}
}

// TypeName reports the canonical type name, used by the `type` conversion
// helper and by runtime error messages.
func (v ScriptValue) TypeName() string { return v.Kind.String() }

// ToDisplayString renders the canonical CLI-driver form: nil,
// true/false, decimal numbers, quoted strings for primitives, and
// <array>/<table> placeholders for aggregates.
func (v ScriptValue) ToDisplayString() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Truthy() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindString:
		return strconv.Quote(v.Str)
	case KindArray:
		return "<array>"
	case KindTable:
		return "<table>"
	case KindFunction:
		return "<function>"
	default:
		return "<?>"
	}
}

// ToRawString renders a value the way string concatenation does: numbers in
// decimal form, strings verbatim and unquoted (unlike ToDisplayString, which
// quotes strings for the canonical CLI form). Only numbers and strings are
// meaningful operands for concatenation; callers reject other kinds first.
func (v ScriptValue) ToRawString() string {
	if v.Kind == KindString {
		return v.Str
	}
	return formatNumber(v.Num)
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) && !isInfOrNaN(n) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func isInfOrNaN(n float64) bool {
	return math.IsNaN(n) || math.IsInf(n, 0)
}

// Dump renders a value tree in a var_dump-like form, used by the `dump`
// stdlib helper and diagnostics. Cycles through Array/Table are detected via
// the visited set so a self-referential structure (uncollected
// cycles) doesn't hang formatting.
func (v ScriptValue) Dump() string {
	var b strings.Builder
	v.dump(&b, 0, map[Aggregate]bool{})
	return b.String()
}

func (v ScriptValue) dump(b *strings.Builder, indent int, seen map[Aggregate]bool) {
	ind := strings.Repeat("  ", indent)
	switch v.Kind {
	case KindNil:
		b.WriteString(ind + "nil\n")
	case KindBool:
		fmt.Fprintf(b, "%sbool(%v)\n", ind, v.Truthy())
	case KindNumber:
		fmt.Fprintf(b, "%snumber(%s)\n", ind, formatNumber(v.Num))
	case KindString:
		fmt.Fprintf(b, "%sstring(%d) %q\n", ind, len(v.Str), v.Str)
	case KindArray:
		arr := v.Agg.(*Array)
		if seen[arr] {
			b.WriteString(ind + "*recursion*\n")
			return
		}
		seen[arr] = true
		fmt.Fprintf(b, "%sarray(%d) {\n", ind, len(arr.Elements))
		for i, el := range arr.Elements {
			fmt.Fprintf(b, "%s  [%d]=>\n", ind, i)
			el.dump(b, indent+2, seen)
		}
		b.WriteString(ind + "}\n")
		delete(seen, arr)
	case KindTable:
		tbl := v.Agg.(*Table)
		if seen[tbl] {
			b.WriteString(ind + "*recursion*\n")
			return
		}
		seen[tbl] = true
		fmt.Fprintf(b, "%stable(%d) {\n", ind, len(tbl.Fields))
		for _, k := range tbl.Keys() {
			fmt.Fprintf(b, "%s  [%q]=>\n", ind, k)
			tbl.Fields[k].dump(b, indent+2, seen)
		}
		b.WriteString(ind + "}\n")
		delete(seen, tbl)
	case KindFunction:
		fn := v.Agg.(*Function)
		fmt.Fprintf(b, "%sfunction(%s)\n", ind, fn.Name)
	}
}
