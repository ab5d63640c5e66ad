package compiler

import (
	"strings"
	"testing"

	"github.com/obastemur/cbcc/internal/cbc"
)

func mustCompile(t *testing.T, src string) *cbc.CompiledCode {
	t.Helper()
	code, err := Compile(src, "<test>", UnitGlobal)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return code
}

func disassemble(code *cbc.CompiledCode) string {
	var sb strings.Builder
	cbc.NewDisassembler(&sb, code).Disassemble()
	return sb.String()
}

func TestStrictModeDirectiveDetected(t *testing.T) {
	code := mustCompile(t, `"use strict"; var x = 1;`)
	if !code.StatusFlags.Has(cbc.StatusStrictMode) {
		t.Fatalf("expected strict mode to be detected from the directive prologue")
	}
}

func TestNonDirectiveStringIsNotStrict(t *testing.T) {
	code := mustCompile(t, `"use strict" + "!"; var x = 1;`)
	if code.StatusFlags.Has(cbc.StatusStrictMode) {
		t.Fatalf("a string literal that is part of a larger expression must not set strict mode")
	}
}

func TestWithRejectedInStrictMode(t *testing.T) {
	_, err := Compile(`"use strict"; with (x) { y = 1; }`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error compiling `with` under strict mode")
	}
}

func TestBreakOutsideLoopIsInvalid(t *testing.T) {
	_, err := Compile(`break;`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error for a bare break outside any loop/switch")
	}
}

func TestContinueLabelMustNameAnEnclosingLoop(t *testing.T) {
	_, err := Compile(`outer: { continue outer; }`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error: `outer` labels a block, not a loop, so continue outer is invalid")
	}
}

func TestSwitchMultipleDefaultsRejected(t *testing.T) {
	src := `switch (x) { default: break; default: break; }`
	_, err := Compile(src, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error for more than one default clause")
	}
}

func TestSwitchCompilesWithoutLeakingUnpatchedBranches(t *testing.T) {
	src := `switch (x) {
		case 1: y = 1; break;
		case 2: y = 2;
		default: y = 3;
	}`
	code := mustCompile(t, src)
	out := disassemble(code)
	// Every branch in the listing carries a concrete "-> NNNN" target;
	// an unpatched forward branch would still show its raw, meaningless
	// displacement relative to nothing, but DisassembleInstruction always
	// computes *some* offset, so the real assertion is that Compile
	// returned no error at all (panic/recover would have surfaced an
	// unpatched-branch bug as an out-of-range displacement error instead).
	if !strings.Contains(out, "STRICT_EQUAL") {
		t.Fatalf("expected case dispatch to emit STRICT_EQUAL comparisons:\n%s", out)
	}
}

func TestSwitchDefaultNotLastStillDispatchesFollowingCases(t *testing.T) {
	// default appears before a later case; the later case must still get
	// its own dispatch test rather than being unreachable.
	src := `switch (x) {
		default: y = 0;
		case 1: y = 1; break;
	}`
	code := mustCompile(t, src)
	out := disassemble(code)
	if strings.Count(out, "STRICT_EQUAL") != 1 {
		t.Fatalf("expected exactly one case test (for `case 1`), got:\n%s", out)
	}
}

func TestWhileLoopEmitsBackwardBranch(t *testing.T) {
	code := mustCompile(t, `while (x) { y = y + 1; }`)
	out := disassemble(code)
	if !strings.Contains(out, "BRANCH_IF_TRUE_BACKWARD") && !strings.Contains(out, "BRANCH_IF_FALSE_BACKWARD") {
		t.Fatalf("expected a backward conditional branch closing the loop:\n%s", out)
	}
}

func TestWhileTrueFoldsAwayCondition(t *testing.T) {
	code := mustCompile(t, `while (true) { break; }`)
	out := disassemble(code)
	if strings.Contains(out, "PUSH_TRUE") {
		t.Fatalf("constant-true condition should be folded away, not pushed:\n%s", out)
	}
	if !strings.Contains(out, "JUMP_BACKWARD") {
		t.Fatalf("expected an unconditional backward jump for while(true):\n%s", out)
	}
}

func TestForInEmitsContextOpcodes(t *testing.T) {
	code := mustCompile(t, `for (var k in obj) { use(k); }`)
	out := disassemble(code)
	for _, want := range []string{"EXT_FOR_IN_CREATE_CONTEXT", "EXT_FOR_IN_GET_NEXT", "EXT_BRANCH_IF_FOR_IN_HAS_NEXT"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in for-in disassembly:\n%s", want, out)
		}
	}
}

func TestTryRequiresCatchOrFinally(t *testing.T) {
	_, err := Compile(`try { foo(); }`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error: try with neither catch nor finally")
	}
}

func TestTryCatchFinallyCompiles(t *testing.T) {
	code := mustCompile(t, `try { foo(); } catch (e) { bar(e); } finally { baz(); }`)
	out := disassemble(code)
	for _, want := range []string{"TRY_CREATE_CONTEXT", "EXT_CATCH", "EXT_FINALLY"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in try/catch/finally disassembly:\n%s", want, out)
		}
	}
}

func TestReturnOutsideFunctionIsInvalid(t *testing.T) {
	_, err := Compile(`return 1;`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error: return at top level")
	}
}

func TestNestedFunctionLiteralCompilesIndependently(t *testing.T) {
	code := mustCompile(t, `function outer(a) { function inner(b) { return a + b; } return inner(1); }`)
	out := disassemble(code)
	if !strings.Contains(out, "function outer") {
		t.Fatalf("expected outer function literal in literal pool:\n%s", out)
	}
}

func TestDuplicateLabelRejected(t *testing.T) {
	_, err := Compile(`loop: while (x) { loop: while (y) { break; } }`, "<test>", UnitGlobal)
	if err == nil {
		t.Fatalf("expected an error for re-using a label name in a nested scope")
	}
}

func TestBreakContinueTargetDistinctOffsets(t *testing.T) {
	// Regression test: a `while` loop lays its condition out after the
	// body (test-at-bottom), so a `continue` inside must target the
	// condition's re-entry point, not the earlier branch that skips to
	// it. Draining it to the wrong offset computes a negative forward
	// displacement and Compile panics instead of returning bytecode.
	code := mustCompile(t, `while (x) { if (y) { continue; } z = 1; }`)
	out := disassemble(code)
	if !strings.Contains(out, "JUMP_FORWARD") {
		t.Fatalf("expected continue to compile as a forward branch to the loop's condition:\n%s", out)
	}
}

func TestForInContinueTargetsPreHasNext(t *testing.T) {
	// continue must re-enter right before the has_next test (spec.md §8
	// property 5), not at GET_NEXT, which would re-fetch the current
	// element a second time.
	code := mustCompile(t, `for (var k in obj) { if (k) { continue; } use(k); }`)
	out := disassemble(code)
	if !strings.Contains(out, "EXT_BRANCH_IF_FOR_IN_HAS_NEXT") {
		t.Fatalf("expected a has_next check in for-in disassembly:\n%s", out)
	}
}

func TestSimpleAssignToIdentEmitsAssignIdent(t *testing.T) {
	code := mustCompile(t, `x = 1;`)
	out := disassemble(code)
	if !strings.Contains(out, "ASSIGN_IDENT") {
		t.Fatalf("expected ASSIGN_IDENT for a plain identifier assignment:\n%s", out)
	}
	if strings.Contains(out, "PUSH_IDENT") {
		t.Fatalf("plain assignment should not leave a dangling PUSH_IDENT read on the stack:\n%s", out)
	}
}

func TestMemberAssignEmitsAssignPropKeepingBase(t *testing.T) {
	// obj.prop = 5: PUSH_PROP (which pops the object to produce a value)
	// must never run for the assignment target, or the object is gone
	// and there is nothing left for the write to target.
	code := mustCompile(t, `obj.prop = 5;`)
	out := disassemble(code)
	if !strings.Contains(out, "ASSIGN_PROP") {
		t.Fatalf("expected ASSIGN_PROP for a member assignment:\n%s", out)
	}
	if strings.Contains(out, "PUSH_PROP") {
		t.Fatalf("member assignment must not emit a value-producing PUSH_PROP for its own target:\n%s", out)
	}
}

func TestElementAssignEmitsAssignElementKeepingBase(t *testing.T) {
	code := mustCompile(t, `arr[0] = 5;`)
	out := disassemble(code)
	if !strings.Contains(out, "ASSIGN_ELEMENT") {
		t.Fatalf("expected ASSIGN_ELEMENT for an element assignment:\n%s", out)
	}
	if strings.Contains(out, "PUSH_ELEMENT") {
		t.Fatalf("element assignment must not emit a value-producing PUSH_ELEMENT for its own target:\n%s", out)
	}
}

func TestLogicalAndOrEmitDedicatedOpcodesNotBitwise(t *testing.T) {
	code := mustCompile(t, `a && b; a || b;`)
	out := disassemble(code)
	if !strings.Contains(out, "LOGICAL_AND") || !strings.Contains(out, "LOGICAL_OR") {
		t.Fatalf("expected dedicated LOGICAL_AND/LOGICAL_OR opcodes:\n%s", out)
	}
	if strings.Contains(out, "BIT_AND") || strings.Contains(out, "BIT_OR") {
		t.Fatalf("&&/|| must not reuse the bitwise opcodes (wrong result value for non-boolean operands):\n%s", out)
	}
}
