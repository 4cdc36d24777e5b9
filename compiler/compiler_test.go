package compiler_test

import (
	"testing"

	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/opcodes"
	"github.com/wudi/gza/parser"
)

func mustCompile(t *testing.T, src string) *compiler.Program {
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

func TestCompileEndsInHalt(t *testing.T) {
	cp := mustCompile(t, `var x = 1`)
	last := cp.Instructions[len(cp.Instructions)-1]
	if last.Opcode != opcodes.OP_HALT {
		t.Errorf("expected final instruction to be OP_HALT, got %v", last.Opcode)
	}
}

func TestCompileBinaryEmitsArithmeticOpcode(t *testing.T) {
	cp := mustCompile(t, `return 1 + 2`)
	found := false
	for _, in := range cp.Instructions {
		if in.Opcode == opcodes.OP_ADD {
			found = true
		}
	}
	if !found {
		t.Error("expected an OP_ADD instruction in the compiled stream")
	}
}

func TestCompileArrayLiteralEmitsNewArrayAndPushes(t *testing.T) {
	cp := mustCompile(t, `var a = [1, 2, 3]`)
	newArrays, pushes := 0, 0
	for _, in := range cp.Instructions {
		switch in.Opcode {
		case opcodes.OP_NEW_ARRAY:
			newArrays++
		case opcodes.OP_ARRAY_PUSH:
			pushes++
		}
	}
	if newArrays != 1 {
		t.Errorf("expected exactly one OP_NEW_ARRAY, got %d", newArrays)
	}
	if pushes != 3 {
		t.Errorf("expected 3 OP_ARRAY_PUSH instructions, got %d", pushes)
	}
}

func TestCompileFunctionDeclEmitsMakeFunction(t *testing.T) {
	cp := mustCompile(t, `
function add(a, b) {
	return a + b
}
`)
	found := false
	for _, in := range cp.Instructions {
		if in.Opcode == opcodes.OP_MAKE_FUNCTION {
			found = true
		}
	}
	if !found {
		t.Error("expected an OP_MAKE_FUNCTION instruction for the function declaration")
	}
}

func TestCompileAppendPreservesEarlierInstructions(t *testing.T) {
	prog1, err := parser.ParseProgram(`var counter = 0`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	first, err := compiler.Compile(prog1)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	firstLen := len(first.Instructions)

	prog2, err := parser.ParseProgram(`counter = counter + 1`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	second, err := compiler.CompileAppend(first, prog2)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	if second.EntryPoint != firstLen {
		t.Errorf("EntryPoint = %d, want %d (start of the appended chunk)", second.EntryPoint, firstLen)
	}
	if len(second.Instructions) <= firstLen {
		t.Error("expected the appended program to contain more instructions than the first chunk alone")
	}
	for i := 0; i < firstLen; i++ {
		if second.Instructions[i] != first.Instructions[i] {
			t.Fatalf("instruction %d changed across CompileAppend", i)
		}
	}
}

func TestCompileForRangeEmitsStrictLessThan(t *testing.T) {
	cp := mustCompile(t, `
var t = 0
for i in 0 .. 3 {
	t = t + i
}
`)
	found := false
	for _, in := range cp.Instructions {
		if in.Opcode == opcodes.OP_LT {
			found = true
		}
	}
	if !found {
		t.Error("expected an OP_LT instruction for the half-open range comparison")
	}
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	prog, err := parser.ParseProgram(`break`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = compiler.Compile(prog)
	if err == nil {
		t.Fatal("expected a compile error for break outside a loop")
	}
}
