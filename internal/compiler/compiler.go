// Package compiler implements the single-pass statement parser and
// expression parser that together translate ECMAScript 5.1 source into
// CBC bytecode (spec.md §4.3, §4.4). There is one Compiler per function
// or top-level program body; a nested function literal gets its own
// child Compiler sharing only the source text and strict-mode ancestry.
package compiler

import (
	"strconv"
	"strings"

	"github.com/obastemur/cbcc/internal/cbc"
	"github.com/obastemur/cbcc/internal/ccerrors"
	"github.com/obastemur/cbcc/internal/lexer"
	"github.com/obastemur/cbcc/internal/prescan"
)

// Kind of compilation unit being compiled; mirrors spec.md §6's "flag
// indicating global vs eval vs function body".
type UnitKind int

const (
	UnitGlobal UnitKind = iota
	UnitEval
	UnitFunction
)

// Compiler is spec.md's ParserContext: current cursor (via the embedded
// *lexer.Lexer), current token, the statement stack, the emitter, and
// the strict-mode/closure flags. There is exactly one non-local exit
// path out of a compile: a panic carrying a *ccerrors.CompileError,
// caught at Compile's entry point (spec.md §7, "raise_error" + non-local
// return).
type Compiler struct {
	lex     *lexer.Lexer
	tok     lexer.Token
	emitter *cbc.Emitter
	stack   *stack

	source string
	file   string

	strict     bool
	unit       UnitKind
	inFunction bool
	argNames   []string

	// parent is non-nil for a function literal's child Compiler. It is
	// recorded but not read: strict mode reaches a nested literal through
	// newCompiler's inheritStrict argument, so a strict enclosing
	// function's nested literals are strict from their first statement.
	parent *Compiler
}

// New builds a Compiler for a global/eval program over src.
func New(src string, file string) *Compiler {
	return newCompiler(src, file, UnitGlobal, nil, false)
}

func newCompiler(src, file string, unit UnitKind, parent *Compiler, inheritStrict bool) *Compiler {
	c := &Compiler{
		lex:    lexer.New(src),
		emitter: cbc.NewEmitter(),
		stack:   newStack(),
		source:  src,
		file:    file,
		unit:    unit,
		strict:  inheritStrict,
		parent:  parent,
	}
	c.advance()
	return c
}

func (c *Compiler) advance() {
	mode := lexer.ModeOperator
	if c.expectsPrimaryNext() {
		mode = lexer.ModePrimary
	}
	c.tok = c.lex.NextToken(mode)
}

// expectsPrimaryNext is a coarse regex-vs-divide heuristic: after most
// punctuators and keywords a `/` starts a regex; after an identifier,
// literal, or closing bracket it is division. It looks only at the
// previous token, so a `/` right after a statement head's closing `)`
// (as in `if (x) /re/.test(s)`) is scanned as division.
func (c *Compiler) expectsPrimaryNext() bool {
	switch c.tok.Type {
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.REGEX,
		lexer.RPAREN, lexer.RBRACK, lexer.RBRACE,
		lexer.PLUSPLUS, lexer.MINUSMINUS,
		lexer.KEYW_THIS, lexer.KEYW_TRUE, lexer.KEYW_FALSE, lexer.KEYW_NULL:
		return false
	default:
		return true
	}
}

func (c *Compiler) errAt(kind ccerrors.Kind, pos lexer.Position, message string) *ccerrors.CompileError {
	return ccerrors.New(kind, pos, c.source, c.file, message)
}

// Compile is the single entry point into a compile. It installs the
// panic/recover boundary spec.md §5 and §7 describe (non-local error
// exit, no partial recovery) and, on success, finalizes the emitter into
// a CompiledCode blob.
func Compile(src string, file string, unit UnitKind) (code *cbc.CompiledCode, err error) {
	c := newCompiler(src, file, unit, nil, false)
	return c.compileTopLevel()
}

func (c *Compiler) compileTopLevel() (code *cbc.CompiledCode, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ccerrors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	c.parseStatements()

	literals, identEnd := c.emitter.Finalize()
	status := cbc.StatusFlags(0)
	if c.strict {
		status |= cbc.StatusStrictMode
	}
	if c.unit == UnitFunction {
		status |= cbc.StatusFunction
	}

	name := ""
	code = &cbc.CompiledCode{
		Name:        name,
		Code:        c.emitter.Code(),
		Literals:    literals,
		Lines:       c.emitter.Lines(),
		StatusFlags: status,
		ArgumentEnd: uint16(len(c.argNames)),
		RegisterEnd: uint16(len(c.argNames)),
		IdentEnd:    uint16(identEnd),
		LiteralEnd:  uint16(len(literals)),
	}
	return code, nil
}

// compileFunctionLiteral parses `(args) { body }` immediately following
// an already-consumed `function [name]` and returns the finished child
// CompiledCode — "constructs a sub-function compiled-code object
// immediately via the lexer/compiler bridge" (spec.md §4.3).
func (c *Compiler) compileFunctionLiteral() *cbc.CompiledCode {
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	var args []string
	for c.tok.Type != lexer.RPAREN {
		if len(args) > 0 {
			c.expect(lexer.COMMA, ccerrors.UnexpectedToken)
		}
		if c.tok.Type != lexer.IDENT {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, "expected parameter name"))
		}
		args = append(args, c.tok.Literal)
		c.advance()
	}
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)
	if c.tok.Type != lexer.LBRACE {
		panic(c.errAt(ccerrors.ExpectedLBrace, c.tok.Pos, c.tok.Type.String()))
	}
	// Do not advance past '{' normally: the underlying lexer cursor is
	// already positioned right after it (NextToken scans eagerly), which
	// is exactly where the body text starts.
	bodyStart := c.lex.Offset()
	rng, err := (prescan.New(c.lex)).ScanUntil(lexer.RBRACE, lexer.ILLEGAL, prescan.Statement)
	if err != nil {
		panic(c.errAt(ccerrors.UnterminatedLookahead, c.tok.Pos, err.Error()))
	}
	body := c.source[bodyStart:rng.EndOffset]

	child := newCompiler(body, c.file, UnitFunction, c, c.strict)
	child.argNames = args
	hasNonStrictArg := hasDuplicateOrReservedArg(args)

	child.parseStatements()
	if child.strict && hasNonStrictArg {
		panic(c.errAt(ccerrors.NonStrictArgInStrictFunction, c.tok.Pos, strings.Join(args, ", ")))
	}

	literals, identEnd := child.emitter.Finalize()
	status := cbc.StatusFlags(0)
	if child.strict {
		status |= cbc.StatusStrictMode
	}
	status |= cbc.StatusFunction

	code := &cbc.CompiledCode{
		Code:        child.emitter.Code(),
		Literals:    literals,
		Lines:       child.emitter.Lines(),
		StatusFlags: status,
		ArgumentEnd: uint16(len(args)),
		RegisterEnd: uint16(len(args)),
		IdentEnd:    uint16(identEnd),
		LiteralEnd:  uint16(len(literals)),
	}

	// The pre-scanner only ever advances c.lex, leaving it positioned
	// right before the closing '}' it located (its contract: the
	// terminator is never consumed). The child Compiler parsed an
	// independent copy of the body text, so c.lex itself never moved
	// during that nested compile and is still sitting exactly there.
	c.advance()
	c.expect(lexer.RBRACE, ccerrors.ExpectedRBrace)
	return code
}

func hasDuplicateOrReservedArg(args []string) bool {
	seen := map[string]bool{}
	for _, a := range args {
		if seen[a] || a == "eval" || a == "arguments" || lexer.IsStrictReservedWord(a) {
			return true
		}
		seen[a] = true
	}
	return false
}

func parseNumericLiteral(lit string) float64 {
	lit = strings.TrimSpace(lit)
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		v, _ := strconv.ParseUint(lit[2:], 16, 64)
		return float64(v)
	}
	if len(lit) > 1 && lit[0] == '0' && isAllOctalDigits(lit[1:]) {
		v, _ := strconv.ParseUint(lit[1:], 8, 64)
		return float64(v)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0
	}
	return v
}

func isAllOctalDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '7' {
			return false
		}
	}
	return len(s) > 0
}
