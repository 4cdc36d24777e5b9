package vm

import "github.com/wudi/gza/values"

// CallFrame is one activation record: its register file, the instruction it
// should resume at on RETURN (ReturnIP), and where the returned value goes
// in the caller's register file.
type CallFrame struct {
	Regs         []values.ScriptValue
	Function     *values.Function
	ReturnIP     int
	ReturnReg    uint32
	HasReturnReg bool
}

// CallStackManager owns the frame stack and enforces the call-depth limit
// that backs the StackOverflow error, the same push/pop/current/depth shape
// as the teacher's vm/call_stack.go.
type CallStackManager struct {
	frames   []*CallFrame
	maxDepth int
}

func NewCallStackManager(maxDepth int) *CallStackManager {
	return &CallStackManager{maxDepth: maxDepth}
}

func (m *CallStackManager) Push(f *CallFrame) error {
	if m.maxDepth > 0 && len(m.frames) >= m.maxDepth {
		return &StackOverflow{baseErr{0}, len(m.frames)}
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *CallStackManager) Pop() *CallFrame {
	if len(m.frames) == 0 {
		return nil
	}
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	return f
}

func (m *CallStackManager) Current() *CallFrame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

func (m *CallStackManager) Depth() int { return len(m.frames) }
