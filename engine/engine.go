// Package engine is the embeddable Host API: create an Engine, register
// native functions and helpers, load and run scripts, and get/set globals.
// The surface follows the idiomatic embeddable-scripting shape confirmed by
// other_examples/goop2's gopher-lua usage (Engine.RegisterFunction /
// SetGlobal·GetGlobal / Call-by-name) while the plumbing underneath —
// compiling into one growing instruction pool so globals and function
// values persist across LoadScript calls — is gza's own, since the
// teacher's PHP runtime has no equivalent of a long-lived embeddable engine
// (see DESIGN.md).
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/wudi/gza/ast"
	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/lexer"
	"github.com/wudi/gza/parser"
	"github.com/wudi/gza/registry"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
	"github.com/wudi/gza/vm"
	"github.com/wudi/gza/vmfactory"
)

// Config are the per-Engine sandbox and instrumentation settings a host
// supplies at Create time. Struct tags let a driver load this straight out
// of YAML.
type Config struct {
	MemoryLimitBytes int64         `yaml:"memory_limit_bytes"`
	MaxCallDepth     int           `yaml:"max_call_depth"`
	MaxInstructions  uint64        `yaml:"max_instructions"`
	Timeout          time.Duration `yaml:"timeout"`
	AllowIO          bool          `yaml:"allow_io"`
	AllowSyscalls    bool          `yaml:"allow_syscalls"`
	Deterministic    bool          `yaml:"deterministic"`

	// UseArena switches the memory limiter from per-value Charge/Release
	// accounting to bulk reclamation: charges still accrue as the script
	// runs, but Close drops them all at once instead of relying on strings
	// and ephemeral buffers to release individually (strings in particular
	// never do — see values/value.go). Trades the ability to observe Used()
	// trend back to baseline mid-run for a guarantee that a long-lived host
	// recovers fully at teardown.
	UseArena bool `yaml:"use_arena"`

	// Hook receives every dispatched instruction for profiling/tracing; nil
	// disables instrumentation. Not part of the YAML surface.
	Hook vm.Hook `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes: 64 * 1024 * 1024,
		MaxCallDepth:     256,
		MaxInstructions:  0,
		Deterministic:    true,
	}
}

// Script is a compiled, loaded unit ready to Run. It is opaque to the host
// beyond Disassemble, a read-only diagnostic dump.
type Script struct {
	program *compiler.Program
}

// Disassemble renders the script's instruction stream for diagnostics, the
// same shape kristofer-smog's pkg/bytecode/format.go uses for its wire
// format — here strictly read-only, there is no bytecode serialization
// format or reload-from-disassembly path.
func (s *Script) Disassemble() string {
	return opcodesDisassemble(s.program)
}

// Engine is one sandboxed script execution context: a persistent global
// namespace, a growing instruction pool (so functions/globals defined by one
// LoadScript call remain valid in the next), and the sandbox limiters every
// Run enforces.
type Engine struct {
	ID       string
	config   Config
	globals  map[string]values.ScriptValue
	memory   *sandbox.MemoryLimiter
	security *sandbox.SecurityContext
	registry *registry.Registry
	program  *compiler.Program // grows with each LoadScript
}

// Create allocates a new Engine. Its ID lets a host running several engines
// tell their instrumentation events and memory-context diagnostics apart.
func Create(cfg Config) *Engine {
	return &Engine{
		ID:      uuid.NewString(),
		config:  cfg,
		globals: make(map[string]values.ScriptValue),
		memory:  sandbox.NewMemoryLimiter(cfg.MemoryLimitBytes),
		security: &sandbox.SecurityContext{
			AllowIO:       cfg.AllowIO,
			AllowSyscalls: cfg.AllowSyscalls,
			Deterministic: cfg.Deterministic,
		},
		registry: registry.New(),
	}
}

// Close releases every global an Engine holds. After Close the Engine must
// not be used again.
func (e *Engine) Close() {
	for name, v := range e.globals {
		v.Release()
		delete(e.globals, name)
	}
	if e.config.UseArena {
		e.memory.ReleaseAll()
	}
}

// LoadScript parses and compiles source text, appending it to the Engine's
// growing instruction pool. The returned Script can be Run any number of
// times (each Run is a fresh top-level call into the same appended chunk).
func (e *Engine) LoadScript(src string) (*Script, error) {
	l := lexer.New(src)
	p, err := parser.New(l)
	if err != nil {
		return nil, err
	}
	prog, err := parseProgram(p)
	if err != nil {
		return nil, err
	}
	compiled, err := compiler.CompileAppend(e.program, prog)
	if err != nil {
		return nil, err
	}
	e.program = compiled
	return &Script{program: compiled}, nil
}

// parseProgram is a thin indirection so engine doesn't need a second,
// exported ParseProgram entry point in package parser beyond the
// string-based convenience one.
func parseProgram(p *parser.Parser) (*ast.Program, error) {
	return p.ParseProgram()
}

// Run executes a loaded Script's chunk (from its EntryPoint) to completion,
// applying the Engine's configured sandbox limits.
func (e *Engine) Run(script *Script) (values.ScriptValue, error) {
	limits := vm.Limits{MaxCallDepth: e.config.MaxCallDepth, MaxInstructions: e.config.MaxInstructions}
	if e.config.Timeout > 0 {
		limits.Deadline = time.Now().Add(e.config.Timeout)
	}
	factory := vmfactory.New(e.memory, e.security, limits, e.config.Hook, e.ID)
	machine := factory.Build(script.program, e.globals)
	return machine.Execute()
}

// RunSource is LoadScript+Run in one call, the common embedding path for a
// one-shot `gza script.gza` invocation.
func (e *Engine) RunSource(src string) (values.ScriptValue, error) {
	script, err := e.LoadScript(src)
	if err != nil {
		return values.Nil(), err
	}
	return e.Run(script)
}

// GetGlobal reads a global by name.
func (e *Engine) GetGlobal(name string) (values.ScriptValue, bool) {
	v, ok := e.globals[name]
	return v, ok
}

// SetGlobal installs or replaces a global, releasing whatever it previously
// held and retaining the incoming value — the host-facing equivalent of
// OP_STORE_GLOBAL.
func (e *Engine) SetGlobal(name string, v values.ScriptValue) {
	if old, ok := e.globals[name]; ok {
		old.Release()
	}
	v.Retain()
	e.globals[name] = v
}

// RegisterFunction installs one native function, callable from scripts by
// name, with a fixed arity (-1 for variadic).
func (e *Engine) RegisterFunction(name string, arity int, impl registry.BuiltinImplementation) {
	fn := &registry.Function{Name: name, Arity: arity, Impl: impl}
	e.registry.Register(fn)
	e.installNative(fn)
}

func (e *Engine) installNative(fn *registry.Function) {
	ctx := &registry.BuiltinCallContext{
		Security: e.security,
		Memory:   e.memory,
		CallFunc: e.callValueViaTransientVM,
	}
	bound := registry.Bind(fn, ctx)
	e.SetGlobal(fn.Name, values.FromFunc(bound))
}

// callValueViaTransientVM lets a native reach back into script code (e.g. an
// `array.sort(arr, cmp)` helper invoking the comparator). It needs a
// VirtualMachine bound to the Engine's current instruction pool, since the
// callback's function value's Entry is an index into it; a throwaway VM
// sharing the Engine's globals and limiters is built for just this call.
func (e *Engine) callValueViaTransientVM(fn values.ScriptValue, args []values.ScriptValue) (values.ScriptValue, error) {
	limits := vm.Limits{MaxCallDepth: e.config.MaxCallDepth, MaxInstructions: e.config.MaxInstructions}
	factory := vmfactory.New(e.memory, e.security, limits, e.config.Hook, e.ID)
	machine := factory.Build(e.program, e.globals)
	return machine.CallValue(fn, args)
}

// RegisterHelpers installs the standard helper set into this Engine's
// globals. Defined in package stdlib to keep the helper implementations out
// of engine's own source.
func (e *Engine) RegisterHelpers(install func(*Engine)) {
	install(e)
}

// Call invokes a global function by name with already-constructed argument
// values — the Host API's `call()` operation.
func (e *Engine) Call(name string, args ...values.ScriptValue) (values.ScriptValue, error) {
	fnVal, ok := e.globals[name]
	if !ok {
		return values.Nil(), &UndefinedGlobalError{Name: name}
	}
	return e.callValueViaTransientVM(fnVal, args)
}

// UndefinedGlobalError is returned by Call when no global of that name
// exists.
type UndefinedGlobalError struct{ Name string }

func (e *UndefinedGlobalError) Error() string { return "undefined global: " + e.Name }

// Memory exposes the Engine's memory limiter so a CLI driver can render a
// memory-context diagnostic block after an OutOfMemory error.
func (e *Engine) Memory() *sandbox.MemoryLimiter { return e.memory }

// Globals returns the live global namespace, for host-side diagnostics (e.g.
// a CLI driver's out-of-memory report enumerating what's still retained).
// The returned map is the Engine's own, not a copy: callers must not mutate
// it directly — use SetGlobal.
func (e *Engine) Globals() map[string]values.ScriptValue { return e.globals }

// Program exposes the compiled chunk pool, primarily so a CLI driver can
// offer a `-disasm` diagnostic flag without re-parsing.
func (e *Engine) Program() *compiler.Program { return e.program }
