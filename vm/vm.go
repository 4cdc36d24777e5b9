package vm

import (
	"time"

	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/opcodes"
	"github.com/wudi/gza/sandbox"
	"github.com/wudi/gza/values"
)

// wrapNativeErr turns a capability check failure raised by a native
// (sandbox.SecurityViolation) into the VM's own SecurityViolation runtime
// error and a failed memory charge (sandbox.MemoryLimitError) into
// MemoryLimitExceeded, preserving the closed taxonomy; every other native
// error is wrapped in NativeError as before.
func wrapNativeErr(line int, err error) error {
	if sv, ok := err.(*sandbox.SecurityViolation); ok {
		return &SecurityViolation{baseErr{line}, string(sv.Capability)}
	}
	if ml, ok := err.(*sandbox.MemoryLimitError); ok {
		return &MemoryLimitExceeded{baseErr{line}, ml.Error()}
	}
	return &NativeError{baseErr{line}, err}
}

// NativeError wraps an error surfaced by a host-supplied native function so
// it still satisfies vm.RuntimeError and carries a source line.
type NativeError struct {
	baseErr
	Err error
}

func (e *NativeError) Error() string { return e.Err.Error() }
func (e *NativeError) Unwrap() error { return e.Err }

// VirtualMachine executes one compiled Program against one set of globals,
// sandbox limiters, and instrumentation hook. It follows the teacher's
// vm.VirtualMachine: Execute as the public entry point, run as the dispatch
// loop with its per-opcode switch inline — generalized from the
// teacher's PHP opcode set to opcodes.Opcode; a VirtualMachine runs a single
// chunk on its calling goroutine, no internal concurrency.
type VirtualMachine struct {
	Program *compiler.Program
	Globals map[string]values.ScriptValue

	Memory   *sandbox.MemoryLimiter
	Security *sandbox.SecurityContext
	Stack    *CallStackManager
	Limits   Limits
	Hook     Hook
	EngineID string

	ip         int
	instrCount uint64
	sinceCheck int
	debug      *debugLog
}

func New(prog *compiler.Program, globals map[string]values.ScriptValue, mem *sandbox.MemoryLimiter, sec *sandbox.SecurityContext, limits Limits, hook Hook, engineID string) *VirtualMachine {
	if globals == nil {
		globals = make(map[string]values.ScriptValue)
	}
	if limits.CheckEvery <= 0 {
		limits.CheckEvery = DefaultCheckEvery
	}
	return &VirtualMachine{
		Program:  prog,
		Globals:  globals,
		Memory:   mem,
		Security: sec,
		Stack:    NewCallStackManager(limits.MaxCallDepth),
		Limits:   limits,
		Hook:     hook,
		EngineID: engineID,
		debug:    newDebugLog(64),
	}
}

func (m *VirtualMachine) DebugLog() []string { return m.debug.Lines() }

// Execute runs the program from its entry point to completion.
func (m *VirtualMachine) Execute() (values.ScriptValue, error) {
	frame := &CallFrame{Regs: make([]values.ScriptValue, m.Program.MainLocals), ReturnIP: -1}
	if err := m.Stack.Push(frame); err != nil {
		return values.Nil(), err
	}
	m.ip = m.Program.EntryPoint
	return m.run(0)
}

// CallValue invokes a function value (native or script) from outside the
// dispatch loop — used by Engine.Call and by natives that call back into
// script code (registry.BuiltinCallContext.CallFunc).
func (m *VirtualMachine) CallValue(fn values.ScriptValue, args []values.ScriptValue) (values.ScriptValue, error) {
	if fn.Kind != values.KindFunction {
		return values.Nil(), &NotAFunction{baseErr{0}, fn.TypeName()}
	}
	f := fn.Agg.(*values.Function)
	if f.IsNative() {
		res, err := f.Native(args)
		if err != nil {
			return values.Nil(), wrapNativeErr(0, err)
		}
		return res, nil
	}

	savedIP := m.ip
	target := m.Stack.Depth()
	frame := &CallFrame{Regs: make([]values.ScriptValue, max(f.NumLocals, f.NumParams)), Function: f, ReturnIP: -1}
	for i, a := range args {
		if i >= len(frame.Regs) {
			break
		}
		a.Retain()
		frame.Regs[i] = a
	}
	if err := m.Stack.Push(frame); err != nil {
		return values.Nil(), err
	}
	m.ip = f.Entry
	val, err := m.run(target)
	m.ip = savedIP
	return val, err
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// run dispatches instructions starting at m.ip until a RETURN/HALT brings
// the call stack back down to targetDepth, returning that frame's value.
func (m *VirtualMachine) run(targetDepth int) (values.ScriptValue, error) {
	for {
		if m.ip < 0 || m.ip >= len(m.Program.Instructions) {
			return values.Nil(), NewTypeError(0, "instruction pointer %d out of range", m.ip)
		}
		inst := &m.Program.Instructions[m.ip]

		if err := m.checkLimits(inst.Line); err != nil {
			return values.Nil(), err
		}

		if m.Hook != nil {
			m.Hook(Event{Kind: EventInstruction, IP: m.ip, Opcode: inst.Opcode.String(), Depth: m.Stack.Depth(), EngineID: m.EngineID})
		}

		frame := m.Stack.Current()
		advance := true

		switch inst.Opcode {
		case opcodes.OP_NOP:
			// no-op

		case opcodes.OP_LOAD_CONST:
			m.setReg(frame, inst.Dest, m.Program.Constants[inst.Const])

		case opcodes.OP_LOAD_LOCAL:
			m.setReg(frame, inst.Dest, frame.Regs[inst.A])

		case opcodes.OP_LOAD_GLOBAL:
			name := m.Program.Names[inst.Const]
			v, ok := m.Globals[name]
			if !ok {
				return values.Nil(), &UndefinedVariable{baseErr{inst.Line}, name}
			}
			m.setReg(frame, inst.Dest, v)

		case opcodes.OP_STORE_LOCAL:
			m.setReg(frame, inst.Dest, frame.Regs[inst.A])

		case opcodes.OP_STORE_GLOBAL:
			name := m.Program.Names[inst.Const]
			v := frame.Regs[inst.A]
			v.Retain()
			if old, ok := m.Globals[name]; ok {
				old.Release()
			}
			m.Globals[name] = v

		case opcodes.OP_ADD, opcodes.OP_SUB, opcodes.OP_MUL, opcodes.OP_DIV, opcodes.OP_MOD:
			if err := m.execArith(frame, inst); err != nil {
				return values.Nil(), err
			}

		case opcodes.OP_NEG:
			x := frame.Regs[inst.A]
			if x.Kind != values.KindNumber {
				return values.Nil(), NewTypeError(inst.Line, "cannot negate a %s", x.TypeName())
			}
			m.setReg(frame, inst.Dest, values.Number(-x.Num))

		case opcodes.OP_CONCAT:
			l := frame.Regs[inst.A]
			r := frame.Regs[inst.B]
			if !concatable(l) || !concatable(r) {
				return values.Nil(), NewTypeError(inst.Line, "cannot concatenate %s and %s", l.TypeName(), r.TypeName())
			}
			result := concatString(l) + concatString(r)
			if m.Memory != nil {
				if err := m.Memory.Charge(sandbox.EstimateSize("string", len(result))); err != nil {
					return values.Nil(), &MemoryLimitExceeded{baseErr{inst.Line}, err.Error()}
				}
			}
			m.setReg(frame, inst.Dest, values.String(result))

		case opcodes.OP_EQ:
			m.setReg(frame, inst.Dest, values.Bool(values.Equal(frame.Regs[inst.A], frame.Regs[inst.B])))
		case opcodes.OP_NEQ:
			m.setReg(frame, inst.Dest, values.Bool(!values.Equal(frame.Regs[inst.A], frame.Regs[inst.B])))
		case opcodes.OP_LT, opcodes.OP_LE, opcodes.OP_GT, opcodes.OP_GE:
			res, err := compareOp(inst.Opcode, frame.Regs[inst.A], frame.Regs[inst.B], inst.Line)
			if err != nil {
				return values.Nil(), err
			}
			m.setReg(frame, inst.Dest, values.Bool(res))

		case opcodes.OP_NOT:
			m.setReg(frame, inst.Dest, values.Bool(!frame.Regs[inst.A].Truthy()))

		case opcodes.OP_NEW_ARRAY:
			arr := values.NewArray(int(inst.Imm))
			if m.Memory != nil {
				charge := sandbox.EstimateSize("array_slot", int(inst.Imm))
				if err := m.Memory.Charge(charge); err != nil {
					return values.Nil(), &MemoryLimitExceeded{baseErr{inst.Line}, err.Error()}
				}
				arr.ChargeMemory(m.Memory, charge)
			}
			m.bindNewReg(frame, inst.Dest, values.FromArray(arr))

		case opcodes.OP_ARRAY_PUSH:
			base := frame.Regs[inst.A]
			if base.Kind != values.KindArray {
				return values.Nil(), NewTypeError(inst.Line, "cannot push onto a %s", base.TypeName())
			}
			base.Agg.(*values.Array).Push(frame.Regs[inst.B])

		case opcodes.OP_NEW_TABLE:
			tbl := values.NewTable()
			if m.Memory != nil {
				charge := sandbox.EstimateSize("table_slot", 1)
				if err := m.Memory.Charge(charge); err != nil {
					return values.Nil(), &MemoryLimitExceeded{baseErr{inst.Line}, err.Error()}
				}
				tbl.ChargeMemory(m.Memory, charge)
			}
			m.bindNewReg(frame, inst.Dest, values.FromTable(tbl))

		case opcodes.OP_TABLE_SET:
			base := frame.Regs[inst.A]
			if base.Kind != values.KindTable {
				return values.Nil(), NewTypeError(inst.Line, "cannot set a field on a %s", base.TypeName())
			}
			base.Agg.(*values.Table).Set(m.Program.Names[inst.Const], frame.Regs[inst.B])

		case opcodes.OP_FIELD_GET:
			base := frame.Regs[inst.A]
			if base.Kind != values.KindTable {
				return values.Nil(), NewTypeError(inst.Line, "cannot read a field of a %s", base.TypeName())
			}
			v, _ := base.Agg.(*values.Table).Get(m.Program.Names[inst.Const])
			m.setReg(frame, inst.Dest, v)

		case opcodes.OP_FIELD_SET:
			base := frame.Regs[inst.A]
			if base.Kind != values.KindTable {
				return values.Nil(), NewTypeError(inst.Line, "cannot set a field on a %s", base.TypeName())
			}
			base.Agg.(*values.Table).Set(m.Program.Names[inst.Const], frame.Regs[inst.B])

		case opcodes.OP_INDEX_GET:
			v, err := m.indexGet(frame.Regs[inst.A], frame.Regs[inst.B], inst.Line)
			if err != nil {
				return values.Nil(), err
			}
			m.setReg(frame, inst.Dest, v)

		case opcodes.OP_INDEX_SET:
			if err := m.indexSet(frame.Regs[inst.A], frame.Regs[inst.B], frame.Regs[inst.Dest], inst.Line); err != nil {
				return values.Nil(), err
			}

		case opcodes.OP_CALL:
			res, err := m.execCall(frame, inst)
			if err != nil {
				return values.Nil(), err
			}
			// execCall may have changed m.ip itself (entering a script
			// function); only write back + advance when it returned a value
			// synchronously (a native call).
			if res.handled {
				m.setReg(frame, inst.Dest, res.value)
			} else {
				advance = false
			}

		case opcodes.OP_RETURN:
			var retVal values.ScriptValue
			if inst.Imm == 1 {
				retVal = frame.Regs[inst.A]
			} else {
				retVal = values.Nil()
			}
			retVal.Retain()
			popped := m.Stack.Pop()
			m.releaseFrame(popped, inst.A, inst.Imm == 1)
			if m.Stack.Depth() == targetDepth {
				retVal.Release()
				return retVal, nil
			}
			caller := m.Stack.Current()
			if popped.HasReturnReg {
				m.setReg(caller, popped.ReturnReg, retVal)
			}
			retVal.Release()
			m.ip = popped.ReturnIP
			advance = false

		case opcodes.OP_JUMP:
			m.ip = int(inst.Imm)
			advance = false

		case opcodes.OP_JUMP_IF_FALSE:
			if !frame.Regs[inst.A].Truthy() {
				m.ip = int(inst.Imm)
				advance = false
			}

		case opcodes.OP_JUMP_IF_TRUE:
			if frame.Regs[inst.A].Truthy() {
				m.ip = int(inst.Imm)
				advance = false
			}

		case opcodes.OP_ITER_INIT:
			m.setReg(frame, inst.Dest, frame.Regs[inst.A])

		case opcodes.OP_ITER_NEXT:
			if err := m.execIterNext(frame, inst); err != nil {
				return values.Nil(), err
			}

		case opcodes.OP_MAKE_FUNCTION:
			name := ""
			if inst.Const >= 0 {
				name = m.Program.Names[inst.Const]
			}
			fn := values.NewScriptFunction(name, int(inst.Imm), int(inst.A), int(inst.B))
			m.bindNewReg(frame, inst.Dest, values.FromFunc(fn))

		case opcodes.OP_HALT:
			popped := m.Stack.Pop()
			if popped != nil {
				m.releaseFrame(popped, 0, false)
			}
			return values.Nil(), nil

		default:
			return values.Nil(), NewTypeError(inst.Line, "unimplemented opcode %s", inst.Opcode)
		}

		if advance {
			m.ip++
		}
	}
}

// setReg releases whatever the register currently owns and retains the
// incoming value, keeping the manual refcount discipline consistent for
// every assignment into a storage slot. Use this whenever v already has
// an owner elsewhere (another register, a global, a field) — the slot is
// becoming an additional owner.
func (m *VirtualMachine) setReg(frame *CallFrame, idx uint32, v values.ScriptValue) {
	if int(idx) >= len(frame.Regs) {
		return
	}
	frame.Regs[idx].Release()
	v.Retain()
	frame.Regs[idx] = v
}

// bindNewReg stores a just-constructed aggregate (NEW_ARRAY/NEW_TABLE/
// MAKE_FUNCTION) into a register without retaining: the constructor already
// hands back a value with refcount 1 representing this very first owning
// slot, so retaining again here would leave the count permanently one too
// high once the slot is eventually released.
func (m *VirtualMachine) bindNewReg(frame *CallFrame, idx uint32, v values.ScriptValue) {
	if int(idx) >= len(frame.Regs) {
		return
	}
	frame.Regs[idx].Release()
	frame.Regs[idx] = v
}

// releaseFrame releases every register in a popped frame except the one
// carrying the live return value (already retained into retVal by the
// caller), so locals that held aggregates don't leak but the returned value
// survives the frame's teardown.
func (m *VirtualMachine) releaseFrame(frame *CallFrame, returnSrcReg uint32, hasReturn bool) {
	for i, r := range frame.Regs {
		if hasReturn && uint32(i) == returnSrcReg {
			continue
		}
		r.Release()
	}
}

func (m *VirtualMachine) checkLimits(line int) error {
	m.instrCount++
	m.sinceCheck++
	if m.sinceCheck < m.Limits.CheckEvery {
		return nil
	}
	m.sinceCheck = 0
	if m.Limits.MaxInstructions > 0 && m.instrCount > m.Limits.MaxInstructions {
		return &ExecutionTimeout{baseErr{line}}
	}
	if !m.Limits.Deadline.IsZero() && time.Now().After(m.Limits.Deadline) {
		return &ExecutionTimeout{baseErr{line}}
	}
	return nil
}

func concatable(v values.ScriptValue) bool {
	return v.Kind == values.KindString || v.Kind == values.KindNumber
}

func concatString(v values.ScriptValue) string {
	return v.ToRawString()
}

func compareOp(op opcodes.Opcode, a, b values.ScriptValue, line int) (bool, error) {
	if a.Kind == values.KindNumber && b.Kind == values.KindNumber {
		switch op {
		case opcodes.OP_LT:
			return a.Num < b.Num, nil
		case opcodes.OP_LE:
			return a.Num <= b.Num, nil
		case opcodes.OP_GT:
			return a.Num > b.Num, nil
		default:
			return a.Num >= b.Num, nil
		}
	}
	if a.Kind == values.KindString && b.Kind == values.KindString {
		switch op {
		case opcodes.OP_LT:
			return a.Str < b.Str, nil
		case opcodes.OP_LE:
			return a.Str <= b.Str, nil
		case opcodes.OP_GT:
			return a.Str > b.Str, nil
		default:
			return a.Str >= b.Str, nil
		}
	}
	return false, NewTypeError(line, "cannot compare %s and %s", a.TypeName(), b.TypeName())
}

func (m *VirtualMachine) execArith(frame *CallFrame, inst *opcodes.Instruction) error {
	a := frame.Regs[inst.A]
	b := frame.Regs[inst.B]
	if a.Kind != values.KindNumber || b.Kind != values.KindNumber {
		return NewTypeError(inst.Line, "arithmetic on %s and %s", a.TypeName(), b.TypeName())
	}
	var r float64
	switch inst.Opcode {
	case opcodes.OP_ADD:
		r = a.Num + b.Num
	case opcodes.OP_SUB:
		r = a.Num - b.Num
	case opcodes.OP_MUL:
		r = a.Num * b.Num
	case opcodes.OP_DIV:
		if b.Num == 0 {
			return &DivisionByZero{baseErr{inst.Line}}
		}
		r = a.Num / b.Num
	case opcodes.OP_MOD:
		if b.Num == 0 {
			return &DivisionByZero{baseErr{inst.Line}}
		}
		ai, bi := int64(a.Num), int64(b.Num)
		r = float64(ai % bi)
	}
	m.setReg(frame, inst.Dest, values.Number(r))
	return nil
}

// indexGet implements INDEX_GET for arrays (numeric index, truncated toward
// zero) and tables (string index; numeric keys are stringified).
func (m *VirtualMachine) indexGet(base, idx values.ScriptValue, line int) (values.ScriptValue, error) {
	switch base.Kind {
	case values.KindArray:
		if idx.Kind != values.KindNumber {
			return values.Nil(), NewTypeError(line, "array index must be a number, got %s", idx.TypeName())
		}
		arr := base.Agg.(*values.Array)
		v, ok := arr.Get(int(idx.Num))
		if !ok {
			return values.Nil(), NewIndexError(line, "array index %d out of range (len %d)", int(idx.Num), arr.Len())
		}
		return v, nil
	case values.KindTable:
		key := tableKey(idx)
		v, _ := base.Agg.(*values.Table).Get(key)
		return v, nil
	default:
		return values.Nil(), NewTypeError(line, "cannot index a %s", base.TypeName())
	}
}

func (m *VirtualMachine) indexSet(base, idx, val values.ScriptValue, line int) error {
	switch base.Kind {
	case values.KindArray:
		if idx.Kind != values.KindNumber {
			return NewTypeError(line, "array index must be a number, got %s", idx.TypeName())
		}
		arr := base.Agg.(*values.Array)
		if !arr.Set(int(idx.Num), val) {
			return NewIndexError(line, "array index %d out of range (len %d)", int(idx.Num), arr.Len())
		}
		return nil
	case values.KindTable:
		base.Agg.(*values.Table).Set(tableKey(idx), val)
		return nil
	default:
		return NewTypeError(line, "cannot index a %s", base.TypeName())
	}
}

func tableKey(idx values.ScriptValue) string {
	if idx.Kind == values.KindString {
		return idx.Str
	}
	return concatString(idx)
}

// callResult distinguishes a synchronously-available value (native call)
// from an entry into a script function, which continues the dispatch loop
// instead of writing back immediately.
type callResult struct {
	value   values.ScriptValue
	handled bool
}

func (m *VirtualMachine) execCall(frame *CallFrame, inst *opcodes.Instruction) (callResult, error) {
	callee := frame.Regs[inst.A]
	if callee.Kind != values.KindFunction {
		return callResult{}, &NotAFunction{baseErr{inst.Line}, callee.TypeName()}
	}
	fn := callee.Agg.(*values.Function)
	argc := int(inst.Imm)
	args := make([]values.ScriptValue, argc)
	for i := 0; i < argc; i++ {
		args[i] = frame.Regs[int(inst.B)+i]
	}

	if fn.IsNative() {
		res, err := fn.Native(args)
		if err != nil {
			return callResult{}, wrapNativeErr(inst.Line, err)
		}
		return callResult{value: res, handled: true}, nil
	}

	if !fn.IsVariadic && argc != fn.NumParams {
		return callResult{}, &ArityMismatch{baseErr{inst.Line}, fn.Name, fn.NumParams, argc}
	}

	newFrame := &CallFrame{
		Regs:         make([]values.ScriptValue, max(fn.NumLocals, fn.NumParams)),
		Function:     fn,
		ReturnIP:     m.ip + 1,
		ReturnReg:    inst.Dest,
		HasReturnReg: true,
	}
	for i, a := range args {
		if i >= len(newFrame.Regs) {
			break
		}
		a.Retain()
		newFrame.Regs[i] = a
	}
	if err := m.Stack.Push(newFrame); err != nil {
		return callResult{}, err
	}
	m.ip = fn.Entry
	return callResult{handled: false}, nil
}

// execIterNext implements the single-iterator-function generic-for protocol:
// calling A (no args) must yield a 3-element array [key, value, ok].
func (m *VirtualMachine) execIterNext(frame *CallFrame, inst *opcodes.Instruction) error {
	iterFn := frame.Regs[inst.A]
	result, err := m.CallValue(iterFn, nil)
	if err != nil {
		return err
	}
	if result.Kind != values.KindArray {
		return NewTypeError(inst.Line, "iterator function must return a 3-element array, got %s", result.TypeName())
	}
	arr := result.Agg.(*values.Array)
	if arr.Len() < 3 {
		return NewTypeError(inst.Line, "iterator function must return [key, value, ok], got %d element(s)", arr.Len())
	}
	key, _ := arr.Get(0)
	val, _ := arr.Get(1)
	ok, _ := arr.Get(2)
	m.setReg(frame, inst.Dest, key)
	m.setReg(frame, inst.B, val)
	m.setReg(frame, uint32(inst.Imm), values.Bool(ok.Truthy()))
	return nil
}
