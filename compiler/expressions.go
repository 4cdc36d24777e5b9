package compiler

import (
	"github.com/wudi/gza/ast"
	"github.com/wudi/gza/opcodes"
	"github.com/wudi/gza/values"
)

// compileExpr compiles an expression, returning the register holding its
// result.
func (c *Compiler) compileExpr(expr ast.Expression) (uint32, error) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return c.loadConst(values.Number(e.Value), e.Pos().Line), nil
	case *ast.StringLiteral:
		return c.loadConst(values.String(e.Value), e.Pos().Line), nil
	case *ast.BoolLiteral:
		return c.loadConst(values.Bool(e.Value), e.Pos().Line), nil
	case *ast.NilLiteral:
		return c.loadConst(values.Nil(), e.Pos().Line), nil
	case *ast.Identifier:
		return c.compileIdentifier(e)
	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(e)
	case *ast.TableLiteral:
		return c.compileTableLiteral(e)
	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral("", e)
	case *ast.UnaryExpr:
		return c.compileUnary(e)
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.CallExpr:
		return c.compileCall(e)
	case *ast.IndexExpr:
		return c.compileIndex(e)
	case *ast.FieldExpr:
		return c.compileFieldGet(e)
	default:
		return 0, &CompileError{Message: "unsupported expression", Line: expr.Pos().Line}
	}
}

func (c *Compiler) loadConst(v values.ScriptValue, line int) uint32 {
	reg := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_CONST, Dest: reg, Const: c.constIndex(v), Line: line})
	return reg
}

func (c *Compiler) compileIdentifier(e *ast.Identifier) (uint32, error) {
	if local, ok := c.fs.resolve(e.Name); ok {
		dest := c.fs.alloc()
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_LOCAL, Dest: dest, A: local, Line: e.Pos().Line})
		return dest, nil
	}
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_GLOBAL, Dest: dest, Const: c.nameIndex(e.Name), Line: e.Pos().Line})
	return dest, nil
}

func (c *Compiler) compileArrayLiteral(e *ast.ArrayLiteral) (uint32, error) {
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_NEW_ARRAY, Dest: dest, Imm: int32(len(e.Elements)), Line: e.Pos().Line})
	for _, el := range e.Elements {
		valReg, err := c.compileExpr(el)
		if err != nil {
			return 0, err
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_ARRAY_PUSH, A: dest, B: valReg, Line: el.Pos().Line})
	}
	return dest, nil
}

func (c *Compiler) compileTableLiteral(e *ast.TableLiteral) (uint32, error) {
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_NEW_TABLE, Dest: dest, Line: e.Pos().Line})
	for i, key := range e.Keys {
		valReg, err := c.compileExpr(e.Values[i])
		if err != nil {
			return 0, err
		}
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_TABLE_SET, A: dest, B: valReg, Const: c.nameIndex(key), Line: e.Pos().Line})
	}
	return dest, nil
}

// compileFunctionLiteral allocates a destination register and emits a
// MAKE_FUNCTION instruction whose Imm (entry point) and B (local count) are
// back-patched once the body is compiled via the pending-function queue,
// letting function bodies appear after all currently-compiling straight-line
// code regardless of where they're declared in source order.
func (c *Compiler) compileFunctionLiteral(name string, lit *ast.FunctionLiteral) (uint32, error) {
	dest := c.fs.alloc()
	nameIdx := int32(-1)
	if name != "" {
		nameIdx = c.nameIndex(name)
	}
	idx := c.emit(opcodes.Instruction{
		Opcode: opcodes.OP_MAKE_FUNCTION,
		Dest:   dest,
		A:      uint32(len(lit.Params)),
		Const:  nameIdx,
		Line:   lit.Pos().Line,
	})
	c.pending = append(c.pending, &pendingFunc{name: name, lit: lit, outReg: dest, makeIdx: idx})
	return dest, nil
}

func (c *Compiler) compileUnary(e *ast.UnaryExpr) (uint32, error) {
	xReg, err := c.compileExpr(e.X)
	if err != nil {
		return 0, err
	}
	dest := c.fs.alloc()
	switch e.Op {
	case "-":
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_NEG, Dest: dest, A: xReg, Line: e.Pos().Line})
	case "not", "!":
		c.emit(opcodes.Instruction{Opcode: opcodes.OP_NOT, Dest: dest, A: xReg, Line: e.Pos().Line})
	default:
		return 0, &CompileError{Message: "unsupported unary operator " + e.Op, Line: e.Pos().Line}
	}
	return dest, nil
}

// compileBinary compiles `and`/`or` with real short-circuit control flow
// (they must not evaluate the right side unnecessarily) and everything else
// as a direct two-operand opcode.
func (c *Compiler) compileBinary(e *ast.BinaryExpr) (uint32, error) {
	switch e.Op {
	case "and", "&&":
		return c.compileShortCircuit(e, false)
	case "or", "||":
		return c.compileShortCircuit(e, true)
	}

	leftReg, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	rightReg, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	dest := c.fs.alloc()
	op, err := binaryOpcode(e.Op)
	if err != nil {
		return 0, &CompileError{Message: err.Error(), Line: e.Pos().Line}
	}
	c.emit(opcodes.Instruction{Opcode: op, Dest: dest, A: leftReg, B: rightReg, Line: e.Pos().Line})
	return dest, nil
}

func binaryOpcode(op string) (opcodes.Opcode, error) {
	switch op {
	case "+":
		return opcodes.OP_ADD, nil
	case "-":
		return opcodes.OP_SUB, nil
	case "*":
		return opcodes.OP_MUL, nil
	case "/":
		return opcodes.OP_DIV, nil
	case "%":
		return opcodes.OP_MOD, nil
	case "..":
		return opcodes.OP_CONCAT, nil
	case "==":
		return opcodes.OP_EQ, nil
	case "!=", "<>":
		return opcodes.OP_NEQ, nil
	case "<":
		return opcodes.OP_LT, nil
	case "<=":
		return opcodes.OP_LE, nil
	case ">":
		return opcodes.OP_GT, nil
	case ">=":
		return opcodes.OP_GE, nil
	default:
		return 0, &CompileError{Message: "unknown binary operator " + op}
	}
}

// compileShortCircuit implements `and` (isOr=false) and `or` (isOr=true):
// the right operand is only evaluated if the left didn't already decide the
// result, both sides' values land in the same result register.
func (c *Compiler) compileShortCircuit(e *ast.BinaryExpr, isOr bool) (uint32, error) {
	leftReg, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	result := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_LOCAL, Dest: result, A: leftReg, Line: e.Pos().Line})

	var skipIdx int
	if isOr {
		skipIdx = c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_TRUE, A: result})
	} else {
		skipIdx = c.emit(opcodes.Instruction{Opcode: opcodes.OP_JUMP_IF_FALSE, A: result})
	}

	rightReg, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_LOAD_LOCAL, Dest: result, A: rightReg, Line: e.Pos().Line})
	c.instrs[skipIdx].Imm = int32(len(c.instrs))
	return result, nil
}

func (c *Compiler) compileCall(e *ast.CallExpr) (uint32, error) {
	calleeReg, err := c.compileExpr(e.Callee)
	if err != nil {
		return 0, err
	}
	var firstArg uint32
	for i, arg := range e.Args {
		r, err := c.compileExpr(arg)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			firstArg = r
		}
	}
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{
		Opcode: opcodes.OP_CALL,
		Dest:   dest,
		A:      calleeReg,
		B:      firstArg,
		Imm:    int32(len(e.Args)),
		Line:   e.Pos().Line,
	})
	return dest, nil
}

func (c *Compiler) compileIndex(e *ast.IndexExpr) (uint32, error) {
	baseReg, err := c.compileExpr(e.X)
	if err != nil {
		return 0, err
	}
	idxReg, err := c.compileExpr(e.Index)
	if err != nil {
		return 0, err
	}
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_INDEX_GET, Dest: dest, A: baseReg, B: idxReg, Line: e.Pos().Line})
	return dest, nil
}

func (c *Compiler) compileFieldGet(e *ast.FieldExpr) (uint32, error) {
	baseReg, err := c.compileExpr(e.X)
	if err != nil {
		return 0, err
	}
	dest := c.fs.alloc()
	c.emit(opcodes.Instruction{Opcode: opcodes.OP_FIELD_GET, Dest: dest, A: baseReg, Const: c.nameIndex(e.Name), Line: e.Pos().Line})
	return dest, nil
}
