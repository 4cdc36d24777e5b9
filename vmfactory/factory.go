// Package vmfactory wires a compiled program, globals, sandbox limiters, and
// an instrumentation hook into a ready-to-run *vm.VirtualMachine. It mirrors
// the teacher's vmfactory/factory.go (VMFactory/CompilerFactory/
// CompilerCallback), trimmed to the single compiler this module has (no
// alternate PHP compiler backends to select between).
package vmfactory

import (
	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
	"github.com/wudi/gza/vm"
)

// Factory builds VirtualMachines that share one set of sandbox limiters and
// an instrumentation hook, the way one Engine produces many short-lived VM
// runs (one per Run/Call) against the same Globals map.
type Factory struct {
	Memory   *sandbox.MemoryLimiter
	Security *sandbox.SecurityContext
	Limits   vm.Limits
	Hook     vm.Hook
	EngineID string
}

func New(mem *sandbox.MemoryLimiter, sec *sandbox.SecurityContext, limits vm.Limits, hook vm.Hook, engineID string) *Factory {
	return &Factory{Memory: mem, Security: sec, Limits: limits, Hook: hook, EngineID: engineID}
}

// Build returns a VirtualMachine for an already compiled Program, ready to
// Execute, sharing globals with whatever else the caller is already running.
func (f *Factory) Build(prog *compiler.Program, globals map[string]values.ScriptValue) *vm.VirtualMachine {
	return vm.New(prog, globals, f.Memory, f.Security, f.Limits, f.Hook, f.EngineID)
}
