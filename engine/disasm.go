package engine

import (
	"github.com/wudi/gza/compiler"
	"github.com/wudi/gza/opcodes"
)

func opcodesDisassemble(p *compiler.Program) string {
	return opcodes.Disassemble(p.Instructions)
}
