package stdlib

import (
	"math/rand"
	"time"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

// This file is the one stdlib surface that genuinely needs a capability
// check: wall-clock reads and randomness are exactly the non-reproducible
// operations the security context's `deterministic` flag exists to gate, so
// sys_clock/sys_random consult ctx.Security on every call and raise
// SecurityViolation under the default deterministic engine.
func installSys(e *engine.Engine) {
	e.RegisterFunction("sys_clock", 0, sysClock)
	e.RegisterFunction("sys_random", 0, sysRandom)
}

func sysClock(ctx *registry.BuiltinCallContext, _ []values.ScriptValue) (values.ScriptValue, error) {
	if err := ctx.Security.Require(sandbox.CapNonDeterm); err != nil {
		return values.Nil(), err
	}
	return values.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func sysRandom(ctx *registry.BuiltinCallContext, _ []values.ScriptValue) (values.ScriptValue, error) {
	if err := ctx.Security.Require(sandbox.CapNonDeterm); err != nil {
		return values.Nil(), err
	}
	return values.Number(rand.Float64()), nil
}
