// Package compiler walks an *ast.Program once and emits a flat
// opcodes.Instruction stream plus the constant/name pools the VM resolves
// them against. It replaces the teacher's multi-pass compiler/vm/compiler.go
// pipeline with a single tree-walking pass into a simple register model:
// no bytecode-to-machine-code lowering, no optimizer passes — there's no
// JIT tier to feed.
package compiler

import (
	"fmt"

	"github.com/wudi/gza/ast"
	"github.com/wudi/gza/opcodes"
	"github.com/wudi/gza/values"
)

// CompileError reports a semantic error caught during compilation (e.g. break
// outside a loop) that the parser couldn't have caught syntactically.
type CompileError struct {
	Message  string
	Line     int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error: %s (line %d)", e.Message, e.Line)
}

// Program is the compiled unit the VM executes: one shared instruction
// stream (main code followed by every function body), a literal constant
// pool, and a name pool used by global/field access opcodes.
type Program struct {
	Instructions []opcodes.Instruction
	Constants    []values.ScriptValue
	Names        []string
	EntryPoint   int
	MainLocals   int
}

type loopLabels struct {
	breakTargets    []int // instruction indices of pending JUMPs to patch to loop end
	continueTarget  int   // instruction index to jump to for `continue`
	continuePending []int // JUMPs to patch once continueTarget is known (repeat/until)
}

type funcScope struct {
	scopes  []map[string]uint32 // stack of local name -> register
	nextReg uint32
	maxReg  uint32
	loops   []*loopLabels
}

func newFuncScope() *funcScope {
	fs := &funcScope{}
	fs.push()
	return fs
}

func (fs *funcScope) push() { fs.scopes = append(fs.scopes, map[string]uint32{}) }
func (fs *funcScope) pop()  { fs.scopes = fs.scopes[:len(fs.scopes)-1] }

func (fs *funcScope) declare(name string) uint32 {
	reg := fs.alloc()
	fs.scopes[len(fs.scopes)-1][name] = reg
	return reg
}

func (fs *funcScope) resolve(name string) (uint32, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if reg, ok := fs.scopes[i][name]; ok {
			return reg, true
		}
	}
	return 0, false
}

func (fs *funcScope) alloc() uint32 {
	r := fs.nextReg
	fs.nextReg++
	if fs.nextReg > fs.maxReg {
		fs.maxReg = fs.nextReg
	}
	return r
}

// pendingFunc is a function body queued for compilation after the enclosing
// scope finishes, so its Entry point lands after all straight-line code that
// precedes it in source order.
type pendingFunc struct {
	name    string
	lit     *ast.FunctionLiteral
	outReg  uint32 // register MAKE_FUNCTION should target once entry is known
	makeIdx int    // index of the MAKE_FUNCTION instruction to patch with Imm=entry
}

type Compiler struct {
	instrs  []opcodes.Instruction
	consts  []values.ScriptValue
	names   []string
	nameIdx map[string]int

	fs      *funcScope
	pending []*pendingFunc
}

func New() *Compiler {
	return &Compiler{nameIdx: map[string]int{}}
}

// Compile compiles a full program into a fresh Program ready for the VM.
func Compile(prog *ast.Program) (*Program, error) {
	return CompileAppend(nil, prog)
}

// CompileAppend compiles prog as a new top-level chunk appended after an
// already-compiled Program's instructions (nil for a fresh one), returning a
// Program whose EntryPoint is the start of the newly appended chunk. Earlier
// instructions — including the bodies of functions defined by prior chunks —
// keep their absolute instruction indices, so a *values.Function produced by
// an earlier chunk stays callable against the returned Program. Engine uses
// this to give scripts loaded one after another into the same Engine a
// persistent global/function namespace, the register-VM equivalent of a REPL
// appending to one chunk pool instead of starting a fresh one per input
// line.
func CompileAppend(existing *Program, prog *ast.Program) (*Program, error) {
	c := New()
	if existing != nil {
		c.instrs = existing.Instructions
		c.consts = existing.Constants
		c.names = existing.Names
		for i, n := range c.names {
			c.nameIdx[n] = i
		}
	}
	c.fs = newFuncScope()

	entryPoint := len(c.instrs)
	for _, stmt := range prog.Statements {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_HALT})
	mainLocals := int(c.fs.maxReg)

	if err := c.compilePending(); err != nil {
		return nil, err
	}

	return &Program{
		Instructions: c.instrs,
		Constants:    c.consts,
		Names:        c.names,
		EntryPoint:   entryPoint,
		MainLocals:   mainLocals,
	}, nil
}

func (c *Compiler) compilePending() error {
	for len(c.pending) > 0 {
		pf := c.pending[0]
		c.pending = c.pending[1:]

		entry := len(c.instrs)
		outerFS := c.fs
		c.fs = newFuncScope()
		for _, p := range pf.lit.Params {
			c.fs.declare(p)
		}
		for _, stmt := range pf.lit.Body.Stmts {
			if err := c.compileStmt(stmt); err != nil {
				return err
			}
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_RETURN, Imm: 0})
		numLocals := int(c.fs.maxReg)
		c.fs = outerFS

		c.instrs[pf.makeIdx].Imm = int32(entry)
		c.instrs[pf.makeIdx].B = uint32(numLocals)
	}
	return nil
}

func (c *Compiler) emit(in opcodes.Instruction) int {
	c.instrs = append(c.instrs, in)
	return len(c.instrs) - 1
}

func (c *Compiler) constIndex(v values.ScriptValue) int32 {
	c.consts = append(c.consts, v)
	return int32(len(c.consts) - 1)
}

func (c *Compiler) nameIndex(name string) int32 {
	if idx, ok := c.nameIdx[name]; ok {
		return int32(idx)
	}
	idx := len(c.names)
	c.names = append(c.names, name)
	c.nameIdx[name] = idx
	return int32(idx)
}

func (c *Compiler) currentLoop() *loopLabels {
	if len(c.fs.loops) == 0 {
		return nil
	}
	return c.fs.loops[len(c.fs.loops)-1]
}
