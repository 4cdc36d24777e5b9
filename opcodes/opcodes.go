// Package opcodes defines the bytecode instruction set executed by the gza
// virtual machine: the opcode enumeration, the flat Instruction encoding the
// parser emits into, and small helpers for disassembly.
package opcodes

import "fmt"

// Opcode identifies the operation an Instruction performs.
type Opcode byte

const (
	OP_NOP Opcode = iota

	// Loads and stores.
	OP_LOAD_CONST
	OP_LOAD_LOCAL
	OP_LOAD_GLOBAL
	OP_STORE_LOCAL
	OP_STORE_GLOBAL

	// Arithmetic.
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NEG

	// String.
	OP_CONCAT

	// Comparison.
	OP_EQ
	OP_NEQ
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	// Logical.
	OP_AND
	OP_OR
	OP_NOT

	// Aggregates.
	OP_NEW_ARRAY
	OP_ARRAY_PUSH
	OP_NEW_TABLE
	OP_TABLE_SET
	OP_INDEX_GET
	OP_INDEX_SET
	OP_FIELD_GET
	OP_FIELD_SET

	// Calls and returns.
	OP_CALL
	OP_CALL_NATIVE
	OP_RETURN

	// Control flow.
	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_JUMP_IF_TRUE

	// Iteration.
	OP_ITER_INIT
	OP_ITER_NEXT

	// Closures.
	OP_MAKE_FUNCTION

	OP_HALT
)

var opcodeNames = map[Opcode]string{
	OP_NOP:           "NOP",
	OP_LOAD_CONST:    "LOAD_CONST",
	OP_LOAD_LOCAL:    "LOAD_LOCAL",
	OP_LOAD_GLOBAL:   "LOAD_GLOBAL",
	OP_STORE_LOCAL:   "STORE_LOCAL",
	OP_STORE_GLOBAL:  "STORE_GLOBAL",
	OP_ADD:           "ADD",
	OP_SUB:           "SUB",
	OP_MUL:           "MUL",
	OP_DIV:           "DIV",
	OP_MOD:           "MOD",
	OP_NEG:           "NEG",
	OP_CONCAT:        "CONCAT",
	OP_EQ:            "EQ",
	OP_NEQ:           "NEQ",
	OP_LT:            "LT",
	OP_LE:            "LE",
	OP_GT:            "GT",
	OP_GE:            "GE",
	OP_AND:           "AND",
	OP_OR:            "OR",
	OP_NOT:           "NOT",
	OP_NEW_ARRAY:     "NEW_ARRAY",
	OP_ARRAY_PUSH:    "ARRAY_PUSH",
	OP_NEW_TABLE:     "NEW_TABLE",
	OP_TABLE_SET:     "TABLE_SET",
	OP_INDEX_GET:     "INDEX_GET",
	OP_INDEX_SET:     "INDEX_SET",
	OP_FIELD_GET:     "FIELD_GET",
	OP_FIELD_SET:     "FIELD_SET",
	OP_CALL:          "CALL",
	OP_CALL_NATIVE:   "CALL_NATIVE",
	OP_RETURN:        "RETURN",
	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_JUMP_IF_TRUE:  "JUMP_IF_TRUE",
	OP_ITER_INIT:     "ITER_INIT",
	OP_ITER_NEXT:     "ITER_NEXT",
	OP_MAKE_FUNCTION: "MAKE_FUNCTION",
	OP_HALT:          "HALT",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}

// Instruction is the flat, fixed-shape encoding the parser emits. Dest, A and
// B are register indices (into the executing frame's register file); Const
// is a constant-pool index for LOAD_CONST and a name-pool (Program.Names)
// index for the opcodes that take a name (LOAD_GLOBAL/STORE_GLOBAL,
// FIELD_GET/SET, TABLE_SET, MAKE_FUNCTION).
// Imm carries a small inline integer (e.g. NEW_ARRAY's initial capacity,
// JUMP's target, CALL's argument count).
type Instruction struct {
	Opcode Opcode
	Dest   uint32
	A      uint32
	B      uint32
	Const  int32
	Imm    int32
	Line   int // source line, for runtime error messages
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%-14s dest=%d a=%d b=%d const=%d imm=%d", i.Opcode, i.Dest, i.A, i.B, i.Const, i.Imm)
}

// Disassemble renders an instruction stream one instruction per line,
// matching the diagnostic shape instrumentation and profiling tools expect.
func Disassemble(instrs []Instruction) string {
	out := make([]byte, 0, len(instrs)*24)
	for ip, inst := range instrs {
		line := fmt.Sprintf("%04d  %s\n", ip, inst.String())
		out = append(out, line...)
	}
	return string(out)
}
