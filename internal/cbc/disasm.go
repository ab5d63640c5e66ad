package cbc

import (
	"fmt"
	"io"
)

// Disassembler renders a CompiledCode's instruction stream as text,
// grounded on the teacher's internal/bytecode/disasm.go. Used by the
// `compile --disassemble` CLI flag and by tests that assert on emitted
// opcodes without decoding raw bytes by hand.
type Disassembler struct {
	w    io.Writer
	code *CompiledCode
}

// NewDisassembler builds a Disassembler that writes to w.
func NewDisassembler(w io.Writer, code *CompiledCode) *Disassembler {
	return &Disassembler{w: w, code: code}
}

// Disassemble writes every instruction in the code stream, one per line,
// prefixed with its byte offset and source line.
func (d *Disassembler) Disassemble() {
	fmt.Fprintf(d.w, "%s\n", d.code.String())
	for offset := 0; offset < len(d.code.Code); {
		offset = d.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next instruction.
func (d *Disassembler) DisassembleInstruction(offset int) int {
	line := d.code.LineAt(offset)
	op := OpCode(d.code.Code[offset])
	fmt.Fprintf(d.w, "%04d %4d  ", offset, line)

	if op == OpExtOpcode {
		extOp := OpCode(d.code.Code[offset+1])
		name := ExtName(extOp)
		switch extOp {
		case OpExtForInCreateContext:
			disp := int(uint16FromBytes(d.code.Code[offset+2:]))
			fmt.Fprintf(d.w, "%-28s -> %04d\n", name, offset+4+disp)
			return offset + 4
		case OpExtBranchIfForInHasNext:
			disp := int(uint16FromBytes(d.code.Code[offset+2:]))
			fmt.Fprintf(d.w, "%-28s -> %04d\n", name, offset+4-disp)
			return offset + 4
		default:
			fmt.Fprintf(d.w, "%s\n", name)
			return offset + 2
		}
	}

	name := op.String()
	switch Operand(op) {
	case OperandNone:
		fmt.Fprintf(d.w, "%s\n", name)
		return offset + 1
	case OperandByte:
		b := d.code.Code[offset+1]
		fmt.Fprintf(d.w, "%-28s %d\n", name, b)
		return offset + 2
	case OperandLiteralIndex:
		idx := int(uint16FromBytes(d.code.Code[offset+1:]))
		fmt.Fprintf(d.w, "%-28s literal[%d]%s\n", name, idx, d.literalComment(idx))
		return offset + 3
	case OperandBranch:
		disp := int(uint16FromBytes(d.code.Code[offset+1:]))
		target := offset + 3 + disp
		if IsBackwardBranch(op) {
			target = offset + 3 - disp
		}
		fmt.Fprintf(d.w, "%-28s -> %04d\n", name, target)
		return offset + 3
	default:
		fmt.Fprintf(d.w, "%s\n", name)
		return offset + 1
	}
}

func (d *Disassembler) literalComment(idx int) string {
	if idx < 0 || idx >= len(d.code.Literals) {
		return ""
	}
	lit := d.code.Literals[idx]
	switch lit.Type {
	case LiteralString:
		return fmt.Sprintf(" (%q)", lit.String)
	case LiteralNumber:
		return fmt.Sprintf(" (%g)", lit.Number)
	case LiteralFunction:
		return fmt.Sprintf(" (function %s)", lit.Function.Name)
	default:
		return ""
	}
}
