// Package cbcc is the public facade over internal/compiler and
// internal/cbc: a single Compile entry point, grounded on the teacher's
// pkg/dwscript wrapper around its own internal parser/bytecode packages.
// A host embedding this compiler imports only this package and internal/cbc
// (for CompiledCode's shape); it never needs internal/compiler directly.
package cbcc

import (
	"strings"

	"github.com/obastemur/cbcc/internal/cbc"
	"github.com/obastemur/cbcc/internal/compiler"
)

// Mode selects what kind of source text is being compiled, mirroring
// compiler.UnitKind without exposing the internal package's type.
type Mode int

const (
	// Global compiles src as a top-level program body.
	Global Mode = iota
	// Eval compiles src as an eval() body (spec.md §6: a distinct status
	// flag from Global, though this module emits the same StatusFlags
	// bit pattern for both, since neither directly affects emission).
	Eval
)

func (m Mode) unitKind() compiler.UnitKind {
	if m == Eval {
		return compiler.UnitEval
	}
	return compiler.UnitGlobal
}

// Compile parses and emits src, returning the finished CompiledCode blob
// or a *ccerrors.CompileError (returned here as a plain error so callers
// outside this module never need to import internal/ccerrors). file is
// used only for error messages and is otherwise cosmetic.
func Compile(src string, file string, mode Mode) (*cbc.CompiledCode, error) {
	return compiler.Compile(src, file, mode.unitKind())
}

// Disassemble renders code's instruction stream as text, for callers that
// want a one-shot string rather than driving cbc.Disassembler themselves.
func Disassemble(code *cbc.CompiledCode) string {
	var sb strings.Builder
	cbc.NewDisassembler(&sb, code).Disassemble()
	return sb.String()
}
