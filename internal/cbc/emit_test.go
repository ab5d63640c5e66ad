package cbc

import "testing"

func TestEmitSimpleAndFinalize(t *testing.T) {
	e := NewEmitter()
	e.EmitSimple(OpPushThis, 1)
	e.EmitSimple(OpPop, 1)
	literals, identEnd := e.Finalize()

	if identEnd != 0 {
		t.Fatalf("identEnd = %d, want 0 (no identifiers referenced)", identEnd)
	}
	if len(literals) != 0 {
		t.Fatalf("literals = %d, want 0", len(literals))
	}
	code := e.Code()
	if len(code) != 2 {
		t.Fatalf("code length = %d, want 2", len(code))
	}
	if OpCode(code[0]) != OpPushThis || OpCode(code[1]) != OpPop {
		t.Fatalf("unexpected code bytes: %v", code)
	}
}

func TestFuseTablePushIdentAssign(t *testing.T) {
	e := NewEmitter()
	e.EmitIdent(OpPushIdent, "x", 1)
	e.EmitSimple(OpAssign, 1)
	e.Flush()

	code := e.Code()
	if len(code) == 0 || OpCode(code[0]) != OpAssignIdent {
		t.Fatalf("expected a fused ASSIGN_IDENT, got code=%v", code)
	}
}

func TestIdentifiersOccupyLowPoolPrefix(t *testing.T) {
	e := NewEmitter()
	e.EmitIdent(OpPushIdent, "a", 1)
	e.EmitIdent(OpPushIdent, "b", 1)
	numIdx := e.InternNumber(42)
	e.EmitLiteral(OpPushLiteral, numIdx, 1)

	literals, identEnd := e.Finalize()
	if identEnd != 2 {
		t.Fatalf("identEnd = %d, want 2", identEnd)
	}
	if len(literals) != 3 {
		t.Fatalf("literals = %d, want 3", len(literals))
	}
	if literals[0].String != "a" || literals[1].String != "b" {
		t.Fatalf("identifiers not in low prefix: %+v", literals[:2])
	}
	if literals[2].Type != LiteralNumber || literals[2].Number != 42 {
		t.Fatalf("literal[2] = %+v, want number 42", literals[2])
	}

	// The PUSH_LITERAL operand emitted for the number must have been
	// shifted by identEnd so it indexes literals[2], not literals[0].
	code := e.Code()
	// PUSH_IDENT "a" (3 bytes) + PUSH_IDENT "b" (3 bytes) = offset 6 is
	// PUSH_LITERAL's own opcode byte; its operand starts at offset 7.
	gotIdx := int(uint16FromBytes(code[7:]))
	if gotIdx != 2 {
		t.Fatalf("PUSH_LITERAL operand = %d, want 2 (post-fixup)", gotIdx)
	}
}

func TestForwardBranchPatchedToCurrentPosition(t *testing.T) {
	e := NewEmitter()
	branch := e.EmitForwardBranch(OpJumpForward, 1)
	e.EmitSimple(OpPop, 2)
	e.EmitSimple(OpPop, 3)
	if err := e.SetBranchToCurrentPosition(branch); err != nil {
		t.Fatalf("SetBranchToCurrentPosition: %v", err)
	}
	e.Flush()

	code := e.Code()
	disp := int(uint16FromBytes(code[branch:]))
	target := branch + branchOperandWidth + disp
	if target != len(code) {
		t.Fatalf("forward branch target = %d, want %d (end of code)", target, len(code))
	}
}

func TestBackwardBranchComputesDisplacementImmediately(t *testing.T) {
	e := NewEmitter()
	loopStart := e.Offset()
	e.EmitSimple(OpPop, 1)
	if err := e.EmitBackwardBranch(OpJumpBackward, loopStart, 2); err != nil {
		t.Fatalf("EmitBackwardBranch: %v", err)
	}
	e.Flush()

	code := e.Code()
	// The branch instruction is the last thing emitted: opcode byte then
	// a 2-byte displacement.
	site := len(code) - branchOperandWidth
	disp := int(uint16FromBytes(code[site:]))
	target := site + branchOperandWidth - disp
	if target != loopStart {
		t.Fatalf("backward branch target = %d, want %d", target, loopStart)
	}
}

func TestDrainBreakContinueRoutesByMarker(t *testing.T) {
	e := NewEmitter()
	var list *BranchNode
	list = e.EmitForwardBranchItem(OpJumpForward, 1, false, list) // break
	list = e.EmitForwardBranchItem(OpJumpForward, 2, true, list)  // continue
	e.EmitSimple(OpPop, 3)
	breakTarget := 100
	continueTarget := 200
	if err := e.DrainBreakContinue(list, breakTarget, continueTarget); err != nil {
		t.Fatalf("DrainBreakContinue: %v", err)
	}

	// list head is the continue node (pushed last), list.Next is the break node.
	if !list.Continue {
		t.Fatalf("expected head node to be the continue node")
	}
	gotContinue := int(uint16FromBytes(e.Code()[list.Offset:]))
	if list.Offset+branchOperandWidth+gotContinue != continueTarget {
		t.Fatalf("continue node not patched to continueTarget")
	}
	breakNode := list.Next
	gotBreak := int(uint16FromBytes(e.Code()[breakNode.Offset:]))
	if breakNode.Offset+branchOperandWidth+gotBreak != breakTarget {
		t.Fatalf("break node not patched to breakTarget")
	}
}

func TestPeekLastAndCancelLastFoldConstantCondition(t *testing.T) {
	e := NewEmitter()
	e.EmitSimple(OpPushTrue, 1)
	op, ok := e.PeekLast()
	if !ok || op != OpPushTrue {
		t.Fatalf("PeekLast() = %v, %v; want OpPushTrue, true", op, ok)
	}
	e.CancelLast()
	if _, ok := e.PeekLast(); ok {
		t.Fatalf("PeekLast() after CancelLast should report nothing pending")
	}
	e.Flush()
	if len(e.Code()) != 0 {
		t.Fatalf("cancelled instruction should never reach the code stream, got %v", e.Code())
	}
}
