package vm_test

import (
	"testing"
	"time"

	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/parser"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
	"github.com/wudi/gza/vm"
)

func compileSrc(t *testing.T, src string) *compiler.Program {
	t.Helper()
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cp, err := compiler.Compile(prog)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return cp
}

func newVM(t *testing.T, src string, limits vm.Limits, memLimit int64) *vm.VirtualMachine {
	t.Helper()
	prog := compileSrc(t, src)
	mem := sandbox.NewMemoryLimiter(memLimit)
	sec := sandbox.DefaultSecurityContext()
	return vm.New(prog, map[string]values.ScriptValue{}, mem, sec, limits, nil, "test-engine")
}

func TestArithmeticDispatch(t *testing.T) {
	m := newVM(t, `return 2 + 3 * 4 - 1`, vm.Limits{}, 1<<20)
	result, err := m.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Num != 13 {
		t.Errorf("got %v, want 13", result.Num)
	}
}

func TestNewArrayRefcountStartsAtOne(t *testing.T) {
	m := newVM(t, `
local a = [1, 2, 3]
return a
`, vm.Limits{}, 1<<20)
	result, err := m.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Agg == nil {
		t.Fatal("expected array result")
	}
	if got := result.Agg.RefCount(); got != 1 {
		t.Errorf("returned array refcount = %d, want 1", got)
	}
}

func TestNewTableRefcountStartsAtOne(t *testing.T) {
	m := newVM(t, `
local t = { a = 1, b = 2 }
return t
`, vm.Limits{}, 1<<20)
	result, err := m.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Agg.RefCount(); got != 1 {
		t.Errorf("returned table refcount = %d, want 1", got)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	m := newVM(t, `
function add(a, b) {
	return a + b
}
return add(4, 5)
`, vm.Limits{MaxCallDepth: 64}, 1<<20)
	result, err := m.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Num != 9 {
		t.Errorf("got %v, want 9", result.Num)
	}
}

func TestStackOverflowOnUnboundedRecursion(t *testing.T) {
	m := newVM(t, `
function loop(n) {
	return loop(n + 1)
}
return loop(0)
`, vm.Limits{MaxCallDepth: 16}, 1<<20)
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected StackOverflow error")
	}
	if _, ok := err.(*vm.StackOverflow); !ok {
		t.Errorf("expected *vm.StackOverflow, got %T: %v", err, err)
	}
}

func TestMemoryLimitExceededOnStringGrowth(t *testing.T) {
	m := newVM(t, `
var s = ""
while true {
	s = s .. "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
}
`, vm.Limits{}, 256)
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected MemoryLimitExceeded error")
	}
	if _, ok := err.(*vm.MemoryLimitExceeded); !ok {
		t.Errorf("expected *vm.MemoryLimitExceeded, got %T: %v", err, err)
	}
}

func TestExecutionTimeoutOnInfiniteLoop(t *testing.T) {
	prog := compileSrc(t, `
var i = 0
while true {
	i = i + 1
}
`)
	mem := sandbox.NewMemoryLimiter(1 << 20)
	sec := sandbox.DefaultSecurityContext()
	limits := vm.Limits{Deadline: time.Now().Add(20 * time.Millisecond), CheckEvery: 64}
	m := vm.New(prog, map[string]values.ScriptValue{}, mem, sec, limits, nil, "test-engine")
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected ExecutionTimeout error")
	}
	if _, ok := err.(*vm.ExecutionTimeout); !ok {
		t.Errorf("expected *vm.ExecutionTimeout, got %T: %v", err, err)
	}
}

func TestInstructionLimitExceeded(t *testing.T) {
	m := newVM(t, `
var i = 0
while true {
	i = i + 1
}
`, vm.Limits{MaxInstructions: 500, CheckEvery: 32}, 1<<20)
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected an instruction-limit error")
	}
}

func TestDivisionByZero(t *testing.T) {
	m := newVM(t, `return 1 / 0`, vm.Limits{}, 1<<20)
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected DivisionByZero error")
	}
	if _, ok := err.(*vm.DivisionByZero); !ok {
		t.Errorf("expected *vm.DivisionByZero, got %T: %v", err, err)
	}
}

func TestUndefinedVariableError(t *testing.T) {
	m := newVM(t, `return doesNotExist`, vm.Limits{}, 1<<20)
	_, err := m.Execute()
	if err == nil {
		t.Fatal("expected UndefinedVariable error")
	}
}

func TestCallStackManagerPushPopDepth(t *testing.T) {
	stack := vm.NewCallStackManager(2)
	if stack.Depth() != 0 {
		t.Fatalf("fresh stack depth = %d, want 0", stack.Depth())
	}
	f1 := &vm.CallFrame{ReturnIP: -1}
	if err := stack.Push(f1); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	f2 := &vm.CallFrame{ReturnIP: 0}
	if err := stack.Push(f2); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if err := stack.Push(&vm.CallFrame{ReturnIP: 0}); err == nil {
		t.Fatal("expected push past max depth to fail")
	}
	if stack.Current() != f2 {
		t.Fatal("Current should return the most recently pushed frame")
	}
	popped := stack.Pop()
	if popped != f2 {
		t.Fatal("Pop should return the most recently pushed frame")
	}
	if stack.Depth() != 1 {
		t.Fatalf("depth after pop = %d, want 1", stack.Depth())
	}
}
