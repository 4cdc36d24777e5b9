package compiler

import (
	"github.com/wudi/gza/ast"
	"github.com/wudi/gza/opcodes"
	"github.com/wudi/gza/values"
)

func (c *Compiler) compileStmt(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(s)
	case *ast.LocalDecl:
		return c.compileLocalDecl(s)
	case *ast.AssignStmt:
		return c.compileAssign(s)
	case *ast.ExprStmt:
		reg, err := c.compileExpr(s.X)
		if err != nil {
			return err
		}
		_ = reg
		return nil
	case *ast.Block:
		return c.compileBlockStmts(s.Stmts)
	case *ast.IfStmt:
		return c.compileIf(s)
	case *ast.WhileStmt:
		return c.compileWhile(s)
	case *ast.RepeatStmt:
		return c.compileRepeat(s)
	case *ast.NumericForStmt:
		return c.compileNumericFor(s)
	case *ast.ForRangeStmt:
		return c.compileForRange(s)
	case *ast.GenericForStmt:
		return c.compileGenericFor(s)
	case *ast.FunctionDecl:
		return c.compileFunctionDecl(s)
	case *ast.ReturnStmt:
		return c.compileReturn(s)
	case *ast.BreakStmt:
		return c.compileBreak(s)
	case *ast.ContinueStmt:
		return c.compileContinue(s)
	default:
		return &CompileError{Message: "unsupported statement", Line: stmt.Pos().Line}
	}
}

func (c *Compiler) compileBlockStmts(stmts []ast.Statement) error {
	c.fs.push()
	defer c.fs.pop()
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileVarDecl(s *ast.VarDecl) error {
	var reg uint32
	if s.Value != nil {
		r, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		reg = r
	} else {
		reg = c.fs.alloc()
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_CONST, Dest: reg, Const: c.constIndex(values.Nil()), Line: s.Pos().Line})
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_GLOBAL, A: reg, Const: c.nameIndex(s.Name), Line: s.Pos().Line})
	return nil
}

func (c *Compiler) compileLocalDecl(s *ast.LocalDecl) error {
	for i, name := range s.Names {
		var reg uint32
		if i < len(s.Values) {
			r, err := c.compileExpr(s.Values[i])
			if err != nil {
				return err
			}
			reg = r
		} else {
			reg = c.fs.alloc()
			c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_CONST, Dest: reg, Const: c.constIndex(values.Nil()), Line: s.Pos().Line})
		}
		local := c.fs.declare(name)
		if local != reg {
			c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_LOCAL, Dest: local, A: reg, Line: s.Pos().Line})
		}
	}
	return nil
}

func (c *Compiler) compileAssign(s *ast.AssignStmt) error {
	valReg, err := c.compileExpr(s.Value)
	if err != nil {
		return err
	}
	switch t := s.Target.(type) {
	case *ast.Identifier:
		if local, ok := c.fs.resolve(t.Name); ok {
			c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_LOCAL, Dest: local, A: valReg, Line: s.Pos().Line})
			return nil
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_GLOBAL, A: valReg, Const: c.nameIndex(t.Name), Line: s.Pos().Line})
		return nil
	case *ast.FieldExpr:
		baseReg, err := c.compileExpr(t.X)
		if err != nil {
			return err
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_FIELD_SET, A: baseReg, B: valReg, Const: c.nameIndex(t.Name), Line: s.Pos().Line})
		return nil
	case *ast.IndexExpr:
		baseReg, err := c.compileExpr(t.X)
		if err != nil {
			return err
		}
		idxReg, err := c.compileExpr(t.Index)
		if err != nil {
			return err
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_INDEX_SET, A: baseReg, B: idxReg, Dest: valReg, Line: s.Pos().Line})
		return nil
	default:
		return &CompileError{Message: "invalid assignment target", Line: s.Pos().Line}
	}
}

func (c *Compiler) compileIf(s *ast.IfStmt) error {
	condReg, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	jfIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: condReg, Line: s.Pos().Line})
	if err := c.compileBlockStmts(s.Then.Stmts); err != nil {
		return err
	}
	endJumps := []int{c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP})}
	c.instrs[jfIdx].Imm = int32(len(c.instrs))

	for _, ei := range s.ElseIfs {
		eCondReg, err := c.compileExpr(ei.Cond)
		if err != nil {
			return err
		}
		eJfIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: eCondReg})
		if err := c.compileBlockStmts(ei.Then.Stmts); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP}))
		c.instrs[eJfIdx].Imm = int32(len(c.instrs))
	}

	if s.Else != nil {
		if err := c.compileBlockStmts(s.Else.Stmts); err != nil {
			return err
		}
	}

	end := len(c.instrs)
	for _, idx := range endJumps {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) error {
	loop := &loopLabels{continueTarget: len(c.instrs)}
	c.fs.loops = append(c.fs.loops, loop)
	defer func() { c.fs.loops = c.fs.loops[:len(c.fs.loops)-1] }()

	condReg, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	exitIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: condReg})
	if err := c.compileBlockStmts(s.Body.Stmts); err != nil {
		return err
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP, Imm: int32(loop.continueTarget)})
	end := len(c.instrs)
	c.instrs[exitIdx].Imm = int32(end)
	for _, idx := range loop.breakTargets {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

func (c *Compiler) compileRepeat(s *ast.RepeatStmt) error {
	start := len(c.instrs)
	loop := &loopLabels{continueTarget: -1}
	c.fs.loops = append(c.fs.loops, loop)
	defer func() { c.fs.loops = c.fs.loops[:len(c.fs.loops)-1] }()

	// `until`'s condition sees the body's locals, so don't pop the body's
	// scope until after the condition is compiled.
	c.fs.push()
	for _, st := range s.Body.Stmts {
		if err := c.compileStmt(st); err != nil {
			c.fs.pop()
			return err
		}
	}
	contTarget := len(c.instrs)
	loop.continueTarget = contTarget
	for _, idx := range loop.continuePending {
		c.instrs[idx].Imm = int32(contTarget)
	}
	condReg, err := c.compileExpr(s.Cond)
	if err != nil {
		c.fs.pop()
		return err
	}
	c.fs.pop()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: condReg, Imm: int32(start)})
	end := len(c.instrs)
	for _, idx := range loop.breakTargets {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

func (c *Compiler) compileNumericFor(s *ast.NumericForStmt) error {
	c.fs.push()
	defer c.fs.pop()

	startReg, err := c.compileExpr(s.Start)
	if err != nil {
		return err
	}
	stopReg, err := c.compileExpr(s.Stop)
	if err != nil {
		return err
	}
	var stepReg uint32
	if s.Step != nil {
		r, err := c.compileExpr(s.Step)
		if err != nil {
			return err
		}
		stepReg = r
	} else {
		stepReg = c.fs.alloc()
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_CONST, Dest: stepReg, Const: c.constIndex(values.Number(1))})
	}

	loopVar := c.fs.declare(s.Var)
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_LOCAL, Dest: loopVar, A: startReg})

	loop := &loopLabels{}
	c.fs.loops = append(c.fs.loops, loop)
	defer func() { c.fs.loops = c.fs.loops[:len(c.fs.loops)-1] }()

	condStart := len(c.instrs)
	loop.continueTarget = -1 // patched below to the increment point

	condReg := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LE, Dest: condReg, A: loopVar, B: stopReg})
	exitIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: condReg})

	if err := c.compileBlockStmts(s.Body.Stmts); err != nil {
		return err
	}

	incrTarget := len(c.instrs)
	loop.continueTarget = incrTarget
	for _, idx := range loop.continuePending {
		c.instrs[idx].Imm = int32(incrTarget)
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_ADD, Dest: loopVar, A: loopVar, B: stepReg})
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP, Imm: int32(condStart)})

	end := len(c.instrs)
	c.instrs[exitIdx].Imm = int32(end)
	for _, idx := range loop.breakTargets {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

// compileForRange implements `for i in A .. B { ... }`: a half-open integer
// range desugared into the same counter-and-compare shape as a numeric for
// with an implicit step of 1, but comparing strictly-less-than so B itself
// is never visited.
func (c *Compiler) compileForRange(s *ast.ForRangeStmt) error {
	c.fs.push()
	defer c.fs.pop()

	startReg, err := c.compileExpr(s.Start)
	if err != nil {
		return err
	}
	stopReg, err := c.compileExpr(s.Stop)
	if err != nil {
		return err
	}

	loopVar := c.fs.declare(s.Var)
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_LOCAL, Dest: loopVar, A: startReg})

	loop := &loopLabels{}
	c.fs.loops = append(c.fs.loops, loop)
	defer func() { c.fs.loops = c.fs.loops[:len(c.fs.loops)-1] }()

	condStart := len(c.instrs)
	loop.continueTarget = -1 // patched below to the increment point

	condReg := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LT, Dest: condReg, A: loopVar, B: stopReg})
	exitIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: condReg})

	if err := c.compileBlockStmts(s.Body.Stmts); err != nil {
		return err
	}

	incrTarget := len(c.instrs)
	loop.continueTarget = incrTarget
	for _, idx := range loop.continuePending {
		c.instrs[idx].Imm = int32(incrTarget)
	}
	oneReg := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_CONST, Dest: oneReg, Const: c.constIndex(values.Number(1))})
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_ADD, Dest: loopVar, A: loopVar, B: oneReg})
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP, Imm: int32(condStart)})

	end := len(c.instrs)
	c.instrs[exitIdx].Imm = int32(end)
	for _, idx := range loop.breakTargets {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

// compileGenericFor implements the single-iterator-function protocol:
// `iterExpr` is evaluated once, then called each pass, returning
// (key, value, ok) via ITER_NEXT; the loop exits when ok is false.
func (c *Compiler) compileGenericFor(s *ast.GenericForStmt) error {
	c.fs.push()
	defer c.fs.pop()

	iterReg, err := c.compileExpr(s.Iter)
	if err != nil {
		return err
	}
	iterLocal := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_ITER_INIT, Dest: iterLocal, A: iterReg})

	keyVar := c.fs.declare(s.KeyVar)
	var valVar uint32
	if s.ValVar != "" {
		valVar = c.fs.declare(s.ValVar)
	} else {
		valVar = c.fs.alloc()
	}
	okReg := c.fs.alloc()

	loop := &loopLabels{continueTarget: len(c.instrs)}
	c.fs.loops = append(c.fs.loops, loop)
	defer func() { c.fs.loops = c.fs.loops[:len(c.fs.loops)-1] }()

	c.emit(opcodes.Instruction{Opcode: opcodes.OP_ITER_NEXT, A: iterLocal, Dest: keyVar, B: valVar, Imm: int32(okReg)})
	exitIdx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: okReg})

	if err := c.compileBlockStmts(s.Body.Stmts); err != nil {
		return err
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP, Imm: int32(loop.continueTarget)})

	end := len(c.instrs)
	c.instrs[exitIdx].Imm = int32(end)
	for _, idx := range loop.breakTargets {
		c.instrs[idx].Imm = int32(end)
	}
	return nil
}

func (c *Compiler) compileFunctionDecl(s *ast.FunctionDecl) error {
	lit := &ast.FunctionLiteral{Position: s.Position, Params: s.Params, Body: s.Body}
	reg, err := c.compileFunctionLiteral(s.Name, lit)
	if err != nil {
		return err
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_STORE_GLOBAL, A: reg, Const: c.nameIndex(s.Name)})
	return nil
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_RETURN, Imm: 0})
		return nil
	}
	reg, err := c.compileExpr(s.Value)
	if err != nil {
		return err
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_RETURN, A: reg, Imm: 1})
	return nil
}

func (c *Compiler) compileBreak(s *ast.BreakStmt) error {
	loop := c.currentLoop()
	if loop == nil {
		return &CompileError{Message: "break outside of a loop", Line: s.Pos().Line}
	}
	idx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP})
	loop.breakTargets = append(loop.breakTargets, idx)
	return nil
}

func (c *Compiler) compileContinue(s *ast.ContinueStmt) error {
	loop := c.currentLoop()
	if loop == nil {
		return &CompileError{Message: "continue outside of a loop", Line: s.Pos().Line}
	}
	idx := c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP})
	if loop.continueTarget >= 0 {
		c.instrs[idx].Imm = int32(loop.continueTarget)
	} else {
		loop.continuePending = append(loop.continuePending, idx)
	}
	return nil
}
