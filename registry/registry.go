package registry

import (
	"fmt"

	"github.com/wudi/gza/values"
)

// ArityError is raised before a BuiltinImplementation runs when the caller
// passed the wrong number of arguments to a fixed-arity native.
type ArityError struct {
	Name     string
	Expected int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity mismatch calling %q: expected %d argument(s), got %d", e.Name, e.Expected, e.Got)
}

// Bind wraps a registered Function as a values.Function native callable,
// closing over ctx so the native can reach host services without the VM
// needing to know about the registry at all — the VM only ever sees a
// *values.Function.
func Bind(fn *Function, ctx *BuiltinCallContext) *values.Function {
	impl := fn.Impl
	arity := fn.Arity
	name := fn.Name
	native := func(args []values.ScriptValue) (values.ScriptValue, error) {
		if arity >= 0 && len(args) != arity {
			return values.Nil(), &ArityError{Name: name, Expected: arity, Got: len(args)}
		}
		return impl(ctx, args)
	}
	return values.NewNativeFunction(name, native)
}

// BindAll returns every registered function bound against ctx, keyed by
// name, ready to install as globals. Engine.RegisterHelpers does not use
// it: each helper is bound and installed one at a time through
// Engine.RegisterFunction.
func (r *Registry) BindAll(ctx *BuiltinCallContext) map[string]*values.Function {
	out := make(map[string]*values.Function, len(r.functions))
	for name, fn := range r.functions {
		out[name] = Bind(fn, ctx)
	}
	return out
}
