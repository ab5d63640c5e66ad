package cbc

import (
	"strings"
	"testing"
)

func TestDisassembleSimpleOpcode(t *testing.T) {
	e := NewEmitter()
	e.EmitSimple(OpPushThis, 1)
	e.EmitSimple(OpPop, 1)
	literals, identEnd := e.Finalize()
	code := &CompiledCode{
		Name:       "test",
		Code:       e.Code(),
		Literals:   literals,
		Lines:      e.Lines(),
		IdentEnd:   uint16(identEnd),
		LiteralEnd: uint16(len(literals)),
	}

	var sb strings.Builder
	NewDisassembler(&sb, code).Disassemble()
	out := sb.String()

	if !strings.Contains(out, "PUSH_THIS") || !strings.Contains(out, "POP") {
		t.Fatalf("disassembly missing expected mnemonics:\n%s", out)
	}
}

func TestDisassembleForwardBranchShowsTarget(t *testing.T) {
	e := NewEmitter()
	branch := e.EmitForwardBranch(OpJumpForward, 1)
	e.EmitSimple(OpPop, 2)
	if err := e.SetBranchToCurrentPosition(branch); err != nil {
		t.Fatalf("SetBranchToCurrentPosition: %v", err)
	}
	literals, identEnd := e.Finalize()
	code := &CompiledCode{Code: e.Code(), Literals: literals, Lines: e.Lines(), IdentEnd: uint16(identEnd)}

	var sb strings.Builder
	NewDisassembler(&sb, code).Disassemble()
	out := sb.String()
	if !strings.Contains(out, "->") {
		t.Fatalf("expected a branch target arrow in disassembly:\n%s", out)
	}
}

func TestDisassembleExtForInBackwardBranch(t *testing.T) {
	e := NewEmitter()
	start := e.Offset()
	e.EmitExt(OpExtForInGetNext, 1)
	if err := e.EmitExtBackwardBranch(OpExtBranchIfForInHasNext, start, 2); err != nil {
		t.Fatalf("EmitExtBackwardBranch: %v", err)
	}
	literals, identEnd := e.Finalize()
	code := &CompiledCode{Code: e.Code(), Literals: literals, Lines: e.Lines(), IdentEnd: uint16(identEnd)}

	var sb strings.Builder
	NewDisassembler(&sb, code).Disassemble()
	out := sb.String()
	if !strings.Contains(out, "EXT_BRANCH_IF_FOR_IN_HAS_NEXT") {
		t.Fatalf("disassembly missing extended opcode mnemonic:\n%s", out)
	}
	if !strings.Contains(out, "-> 0000") {
		t.Fatalf("expected backward branch to target offset 0000:\n%s", out)
	}
}

func TestDisassembleLiteralComment(t *testing.T) {
	e := NewEmitter()
	idx := e.InternString("hello")
	e.EmitLiteral(OpPushLiteral, idx, 1)
	literals, identEnd := e.Finalize()
	code := &CompiledCode{Code: e.Code(), Literals: literals, Lines: e.Lines(), IdentEnd: uint16(identEnd)}

	var sb strings.Builder
	NewDisassembler(&sb, code).Disassemble()
	out := sb.String()
	if !strings.Contains(out, `"hello"`) {
		t.Fatalf("expected literal comment with string value:\n%s", out)
	}
}
