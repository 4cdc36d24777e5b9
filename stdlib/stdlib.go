// Package stdlib implements the standard helper set: string operations, a
// Lua-style pattern matcher, array/table helpers, and type conversion —
// registered as natives through registry.BuiltinImplementation, the same
// contract skx-evalfilter's builtins registry uses. None of it reaches for
// the teacher's PHP-specific stdlib (mysqli, SPL, wordpress helpers, ...),
// which is exactly the PHP-domain bulk DESIGN.md records as dropped rather
// than adapted.
package stdlib

import (
	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

// Install registers every standard helper as a global native function on e.
// Engine.RegisterHelpers(stdlib.Install) is the intended call site.
func Install(e *engine.Engine) {
	installStrings(e)
	installArrays(e)
	installTables(e)
	installPattern(e)
	installConvert(e)
	installSys(e)
}

// chargeArraySlots asks ctx's memory limiter for room to hold n array
// elements, the same per-slot accounting the VM's NEW_ARRAY opcode uses, so
// a native that builds its own array (map/filter/sort/...) can't bypass the
// limit the bytecode-level allocations are held to. Returns the charged
// amount to pass to Array.ChargeMemory once the array exists.
func chargeArraySlots(ctx *registry.BuiltinCallContext, n int) (int64, error) {
	if ctx == nil || ctx.Memory == nil {
		return 0, nil
	}
	charge := sandbox.EstimateSize("array_slot", n)
	if err := ctx.Memory.Charge(charge); err != nil {
		return 0, err
	}
	return charge, nil
}

// newChargedArray allocates an array of capacity n, charging ctx's memory
// limiter and wiring the array to release that charge once its refcount
// reaches zero.
func newChargedArray(ctx *registry.BuiltinCallContext, n int) (*values.Array, error) {
	charge, err := chargeArraySlots(ctx, n)
	if err != nil {
		return nil, err
	}
	arr := values.NewArray(n)
	if ctx != nil && ctx.Memory != nil {
		arr.ChargeMemory(ctx.Memory, charge)
	}
	return arr, nil
}
