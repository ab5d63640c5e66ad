package cbc

import "testing"

func buildSampleCode(t *testing.T) *CompiledCode {
	t.Helper()
	e := NewEmitter()
	e.EmitIdent(OpPushIdent, "x", 1)
	numIdx := e.InternNumber(3.5)
	e.EmitLiteral(OpPushLiteral, numIdx, 1)
	e.EmitSimple(OpAdd, 1)
	literals, identEnd := e.Finalize()
	return &CompiledCode{
		Name:        "sample",
		Code:        e.Code(),
		Literals:    literals,
		Lines:       e.Lines(),
		StatusFlags: StatusStrictMode,
		ArgumentEnd: 0,
		RegisterEnd: 0,
		IdentEnd:    uint16(identEnd),
		LiteralEnd:  uint16(len(literals)),
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	original := buildSampleCode(t)
	data := Marshal(original)

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Name != original.Name {
		t.Fatalf("Name = %q, want %q", got.Name, original.Name)
	}
	if string(got.Code) != string(original.Code) {
		t.Fatalf("Code round-trip mismatch: got %v, want %v", got.Code, original.Code)
	}
	if got.StatusFlags != original.StatusFlags {
		t.Fatalf("StatusFlags = %v, want %v", got.StatusFlags, original.StatusFlags)
	}
	if got.IdentEnd != original.IdentEnd {
		t.Fatalf("IdentEnd = %d, want %d", got.IdentEnd, original.IdentEnd)
	}
	if len(got.Literals) != len(original.Literals) {
		t.Fatalf("Literals length = %d, want %d", len(got.Literals), len(original.Literals))
	}
	if got.Literals[0].String != "x" {
		t.Fatalf("Literals[0] = %+v, want identifier \"x\"", got.Literals[0])
	}
	if got.Literals[1].Number != 3.5 {
		t.Fatalf("Literals[1].Number = %v, want 3.5", got.Literals[1].Number)
	}
}

func TestMarshalNestedFunctionLiteral(t *testing.T) {
	inner := buildSampleCode(t)
	e := NewEmitter()
	fnIdx := e.InternFunction(inner)
	e.EmitLiteral(OpPushFunc, fnIdx, 1)
	literals, identEnd := e.Finalize()
	outer := &CompiledCode{Code: e.Code(), Literals: literals, Lines: e.Lines(), IdentEnd: uint16(identEnd)}

	data := Marshal(outer)
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Literals) != 1 || got.Literals[0].Type != LiteralFunction {
		t.Fatalf("expected one function literal, got %+v", got.Literals)
	}
	if got.Literals[0].Function.Name != inner.Name {
		t.Fatalf("nested function name = %q, want %q", got.Literals[0].Function.Name, inner.Name)
	}
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	_, err := Unmarshal([]byte("not a cbc file at all"))
	if err == nil {
		t.Fatalf("expected an error for bad magic number")
	}
}

func TestUnmarshalRejectsIncompatibleVersion(t *testing.T) {
	data := Marshal(buildSampleCode(t))
	data[4] = VersionMajor + 1 // corrupt the major version byte
	_, err := Unmarshal(data)
	if err == nil {
		t.Fatalf("expected an error for an incompatible major version")
	}
}
