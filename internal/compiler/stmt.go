package compiler

import (
	"github.com/obastemur/cbcc/internal/cbc"
	"github.com/obastemur/cbcc/internal/ccerrors"
	"github.com/obastemur/cbcc/internal/lexer"
	"github.com/obastemur/cbcc/internal/prescan"
)

// parseStatements is spec.md §4.3's entry point. It consumes a directive
// prologue, then repeatedly parses one statement at a time until EOF
// (nested blocks are parsed by parseBlock, which stops at their '}').
func (c *Compiler) parseStatements() {
	c.parseDirectivePrologue()
	for c.tok.Type != lexer.EOF {
		c.parseStatement()
	}
}

// parseDirectivePrologue consumes a run of bare string-literal expression
// statements. "use strict" (exact spelling, no escapes) sets IS_STRICT.
// Ends at the first token that is not a string literal immediately
// followed by a statement terminator (spec.md §4.3).
func (c *Compiler) parseDirectivePrologue() {
	for c.tok.Type == lexer.STRING {
		tok := c.tok
		save := c.lex.Save()
		savedTok := c.tok
		// Lexer offsets index the source with any leading BOM removed.
		src := c.source
		if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
			src = src[3:]
		}
		end := c.lex.Offset()
		c.advance()

		isTerminated := c.tok.Type == lexer.SEMICOLON || c.tok.Type == lexer.RBRACE ||
			c.tok.Type == lexer.EOF || c.tok.NewlineBefore
		if !isTerminated {
			// Not a directive after all: this string literal is the start
			// of a larger expression (binary op, call, member access...).
			// Reinject it and fall into ordinary expression-statement
			// parsing (spec.md §4.3, "reinjected as a PUSH_LITERAL primary").
			c.lex.Restore(save)
			c.tok = savedTok
			c.parseStatement()
			return
		}

		// The raw text between the quotes must be exactly the ten
		// characters of the directive: a spelling with any escape does
		// not count.
		exact := end >= 12 && end <= len(src) && src[end-12] == src[end-1] &&
			src[end-11:end-1] == "use strict"
		if tok.Literal == "use strict" && exact {
			c.strict = true
		}

		idx := c.emitter.InternString(tok.Literal)
		c.emitter.EmitLiteral(cbc.OpPushLiteral, idx, tok.Pos.Line)
		c.emitter.EmitSimple(cbc.OpPop, tok.Pos.Line)
		c.consumeStatementTerminator()
	}
}

// consumeStatementTerminator applies automatic semicolon insertion: a
// `;` is consumed; `}`, EOF, or a preceding newline are accepted without
// consuming anything.
func (c *Compiler) consumeStatementTerminator() {
	switch {
	case c.tok.Type == lexer.SEMICOLON:
		c.advance()
	case c.tok.Type == lexer.RBRACE, c.tok.Type == lexer.EOF, c.tok.NewlineBefore:
		// ASI
	default:
		panic(c.errAt(ccerrors.ExpectedSemicolon, c.tok.Pos, c.tok.Type.String()))
	}
}

func (c *Compiler) parseStatement() {
	switch c.tok.Type {
	case lexer.LBRACE:
		c.parseBlock()
	case lexer.KEYW_VAR:
		c.parseVarStatement()
	case lexer.KEYW_FUNCTION:
		c.parseFunctionDeclaration()
	case lexer.KEYW_IF:
		c.parseIf()
	case lexer.KEYW_SWITCH:
		c.parseSwitch()
	case lexer.KEYW_DO:
		c.parseDoWhile()
	case lexer.KEYW_WHILE:
		c.parseWhile()
	case lexer.KEYW_FOR:
		c.parseFor()
	case lexer.KEYW_WITH:
		c.parseWith()
	case lexer.KEYW_TRY:
		c.parseTry()
	case lexer.KEYW_BREAK:
		c.parseBreak()
	case lexer.KEYW_CONTINUE:
		c.parseContinue()
	case lexer.KEYW_THROW:
		c.parseThrow()
	case lexer.KEYW_RETURN:
		c.parseReturn()
	case lexer.KEYW_DEBUGGER:
		c.advance()
		c.consumeStatementTerminator()
	case lexer.SEMICOLON:
		c.advance() // empty statement
	case lexer.KEYW_DEFAULT:
		panic(c.errAt(ccerrors.DefaultOutsideSwitch, c.tok.Pos, ""))
	case lexer.KEYW_CASE:
		panic(c.errAt(ccerrors.CaseOutsideSwitch, c.tok.Pos, ""))
	default:
		c.parseIdentOrExpressionStatement()
	}
}

func (c *Compiler) parseBlock() {
	c.advance() // {
	c.stack.push(Frame{Kind: KindBlock})
	for c.tok.Type != lexer.RBRACE && c.tok.Type != lexer.EOF {
		c.parseStatement()
	}
	c.expect(lexer.RBRACE, ccerrors.ExpectedRBrace)
	c.stack.pop()
}

// parseIdentOrExpressionStatement disambiguates `ident:` (a label) from
// any other expression statement.
func (c *Compiler) parseIdentOrExpressionStatement() {
	if c.tok.Type == lexer.IDENT {
		save := c.lex.Save()
		savedTok := c.tok
		name := c.tok.Literal
		c.advance()
		if c.tok.Type == lexer.COLON {
			c.advance()
			c.parseLabeledStatement(name)
			return
		}
		c.lex.Restore(save)
		c.tok = savedTok
	}
	c.parseExpressionStatement()
}

func (c *Compiler) parseLabeledStatement(name string) {
	if c.stack.findLabel(name) >= 0 {
		panic(c.errAt(ccerrors.DuplicateLabel, c.tok.Pos, name))
	}
	c.stack.push(Frame{Kind: KindLabel, LabelName: name})
	c.parseStatement()
	f := c.stack.pop()
	if err := c.emitter.DrainBreaks(f.BreakList, c.emitter.Offset()); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

func (c *Compiler) parseExpressionStatement() {
	c.parseExpressionFull()
	c.emitter.EmitSimple(cbc.OpPop, c.tok.Pos.Line)
	c.consumeStatementTerminator()
}

// parseVarStatement: `var ident [= expr] (, ident [= expr])* ;`
func (c *Compiler) parseVarStatement() {
	c.advance() // var
	for {
		if c.tok.Type != lexer.IDENT {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, c.tok.Type.String()))
		}
		name := c.tok.Literal
		line := c.tok.Pos.Line
		c.advance()
		if c.tok.Type == lexer.ASSIGN {
			c.advance()
			c.parseNoCommaExpression()
			c.emitter.EmitIdent(cbc.OpAssignIdent, name, line)
			c.emitter.EmitSimple(cbc.OpPop, line)
		} else {
			// Declaration with no initializer still needs the binding to
			// exist in the identifier pool so later references resolve;
			// emitting nothing here is sufficient since EmitIdent on first
			// use interns the name, but an uninitialized var is commonly
			// referenced before any assignment, so intern it eagerly.
			c.emitter.InternIdentOnly(name)
		}
		if c.tok.Type != lexer.COMMA {
			break
		}
		c.advance()
	}
	c.consumeStatementTerminator()
}

// parseFunctionDeclaration: `function ident (args) { body }`. Hoisting
// (spec.md: "sets FLAG_VAR | FLAG_INITIALIZED") is a binding-table
// concern belonging to the out-of-scope runtime's scope object; this
// module emits the equivalent of an immediate ASSIGN_IDENT of the
// function literal, visible at the point of declaration (a simpler
// stand-in for hoisting).
func (c *Compiler) parseFunctionDeclaration() {
	line := c.tok.Pos.Line
	c.advance() // function
	if c.tok.Type != lexer.IDENT {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, "expected function name"))
	}
	name := c.tok.Literal
	c.advance()
	code := c.compileFunctionLiteral()
	code.Name = name
	idx := c.emitter.InternFunction(code)
	c.emitter.EmitLiteral(cbc.OpPushFunc, idx, line)
	c.emitter.EmitIdent(cbc.OpAssignIdent, name, line)
	c.emitter.EmitSimple(cbc.OpPop, line)
}

// --- if / else ------------------------------------------------------

func (c *Compiler) parseIf() {
	line := c.tok.Pos.Line
	c.advance()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	c.parseExpressionFull()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

	branch := c.emitter.EmitForwardBranch(cbc.OpBranchIfFalseForward, line)
	c.stack.push(Frame{Kind: KindIf, BranchToEnd: branch})
	c.parseStatement()
	c.closeIfElse()
}

// closeIfElse runs the statement-terminator handling for IF/ELSE: if the
// next token is `else`, bridge past it with a JUMP_FORWARD and swap the
// frame to ELSE; otherwise patch the branch and pop.
func (c *Compiler) closeIfElse() {
	f := c.stack.top()
	if f.Kind == KindIf && c.tok.Type == lexer.KEYW_ELSE {
		line := c.tok.Pos.Line
		c.advance()
		end := c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)
		c.emitter.SetBranchToCurrentPosition(f.BranchToEnd)
		f.Kind = KindElse
		f.BranchToEnd = end
		c.parseStatement()
		c.closeIfElse()
		return
	}
	c.emitter.SetBranchToCurrentPosition(f.BranchToEnd)
	c.stack.pop()
}

// --- while / do-while -------------------------------------------------

// parseWhile uses the deferred-condition technique (spec.md §4.3): skip
// to the body first via a forward jump, compile the body, then replay
// the condition's source range and emit the backward branch.
func (c *Compiler) parseWhile() {
	line := c.tok.Pos.Line
	c.advance()
	// The condition starts right after '(': record that offset and lexer
	// state before expect reads the condition's first token, then rewind
	// so the pre-scanner covers the whole condition.
	condStart := c.lex.Offset()
	afterParen := c.lex.Save()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	c.lex.Restore(afterParen)
	rng, err := prescan.New(c.lex).ScanUntil(lexer.RPAREN, lexer.ILLEGAL, prescan.PrimaryExpr)
	if err != nil {
		panic(c.errAt(ccerrors.UnterminatedLookahead, c.tok.Pos, err.Error()))
	}
	condSrc := c.source[condStart:rng.EndOffset]
	c.advance()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

	toCond := c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)
	bodyStart := c.emitter.Offset()

	c.stack.push(Frame{Kind: KindWhile, StartOffset: bodyStart, ContinueTarget: toCond})
	c.parseStatement()
	f := c.stack.pop()

	c.emitter.SetBranchToCurrentPosition(toCond)
	condTarget := c.emitter.Offset()
	conditionLine := line
	c.emitConditionFromSource(condSrc, conditionLine, bodyStart)

	if err := c.emitter.DrainBreakContinue(f.LoopList, c.emitter.Offset(), condTarget); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

func (c *Compiler) parseDoWhile() {
	line := c.tok.Pos.Line
	c.advance()
	bodyStart := c.emitter.Offset()
	c.stack.push(Frame{Kind: KindDoWhile, StartOffset: bodyStart})
	c.parseStatement()
	f := c.stack.pop()

	if c.tok.Type != lexer.KEYW_WHILE {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, "expected 'while'"))
	}
	continueTarget := c.emitter.Offset()
	c.advance()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	c.parseExpressionFull()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)
	c.consumeStatementTerminator()

	c.emitLoopBackEdge(line, bodyStart)

	if err := c.emitter.DrainBreakContinue(f.LoopList, c.emitter.Offset(), continueTarget); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

// emitConditionFromSource re-parses condSrc (the while/for condition,
// captured earlier by the pre-scanner) against a throwaway Compiler
// sharing this one's emitter, then emits the loop's backward branch.
func (c *Compiler) emitConditionFromSource(condSrc string, line, target int) {
	sub := &Compiler{lex: lexer.New(condSrc), emitter: c.emitter, stack: newStack(), source: condSrc, file: c.file, strict: c.strict}
	sub.advance()
	sub.parseExpressionFull()
	c.emitLoopBackEdge(line, target)
}

// emitLoopBackEdge applies the PUSH_TRUE / LOGICAL_NOT constant-fold
// peepholes spec.md §4.4 and §4.3 describe, then emits the backward
// branch (or a bare JUMP_BACKWARD if the condition folded away entirely).
func (c *Compiler) emitLoopBackEdge(line, target int) {
	op := cbc.OpBranchIfTrueBackward
	if last, ok := c.emitter.PeekLast(); ok {
		switch last {
		case cbc.OpPushTrue:
			c.emitter.CancelLast()
			op = cbc.OpJumpBackward
		case cbc.OpPushFalse:
			c.emitter.CancelLast()
			return // condition is always false: no back-edge at all
		case cbc.OpNot:
			// The operand of LOGICAL_NOT is still on the emitted stream
			// (only the NOT itself is cached); invert polarity and drop
			// the NOT from the cache.
			c.emitter.CancelLast()
			op = cbc.OpBranchIfFalseBackward
		}
	}
	if err := c.emitter.EmitBackwardBranch(op, target, line); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

// --- for / for-in -------------------------------------------------

func (c *Compiler) parseFor() {
	line := c.tok.Pos.Line
	c.advance()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)

	isForIn, initIsVar, initName := c.peekForInHead()
	if isForIn {
		c.parseForIn(line, initIsVar, initName)
		return
	}
	c.parseClassicFor(line)
}

// peekForInHead runs scan_until(..., KEYW_IN) across the for-head's
// first clause to decide for-in vs classic C-style for, per spec.md
// §4.3: "if the terminator reached was `in`, this is a for-in".
func (c *Compiler) peekForInHead() (isForIn bool, isVar bool, name string) {
	save := c.lex.Save()
	savedTok := c.tok

	isVar = c.tok.Type == lexer.KEYW_VAR
	if isVar {
		c.advance()
	}
	if c.tok.Type == lexer.IDENT {
		name = c.tok.Literal
	}

	_, err := prescan.New(c.lex).ScanUntil(lexer.KEYW_IN, lexer.SEMICOLON, prescan.PrimaryExpr)
	isForIn = err == nil && c.peekedTerminatorWasIn()

	c.lex.Restore(save)
	c.tok = savedTok
	return isForIn, isVar, name
}

// peekedTerminatorWasIn re-reads the token ScanUntil left unconsumed to
// tell `in` apart from `;` (both were valid terminators for the lookahead
// call in peekForInHead).
func (c *Compiler) peekedTerminatorWasIn() bool {
	save := c.lex.Save()
	tok := c.lex.NextToken(lexer.ModeOperator)
	c.lex.Restore(save)
	return tok.Type == lexer.KEYW_IN
}

func (c *Compiler) parseForIn(line int, isVar bool, name string) {
	if isVar {
		c.advance() // var
	}
	if c.tok.Type == lexer.IDENT {
		c.advance()
	} else {
		// Not a bare identifier: the target is compiled as a
		// left-hand-side expression here, ahead of the loop, and each
		// fetched name is stored with a generic ASSIGN below.
		// EXT_PUSH_UNDEFINED_BASE is not emitted, so a target that is not
		// assignable is not reported here or marked for the runtime.
		c.parseLeftHandSide()
	}
	c.expect(lexer.KEYW_IN, ccerrors.UnexpectedToken)
	c.parseExpressionFull()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

	exit := c.emitter.EmitExtForwardBranch(cbc.OpExtForInCreateContext, line)
	start := c.emitter.Offset()

	c.stack.push(Frame{Kind: KindForIn, StartOffset: start})
	c.emitter.EmitExt(cbc.OpExtForInGetNext, line)
	if name != "" {
		c.emitter.EmitIdent(cbc.OpAssignIdent, name, line)
		c.emitter.EmitSimple(cbc.OpPop, line)
	} else {
		c.emitter.EmitSimple(cbc.OpAssign, line)
		c.emitter.EmitSimple(cbc.OpPop, line)
	}

	c.parseStatement()
	f := c.stack.pop()

	// continueTarget is the pre-has_next point (spec.md §8 property 5):
	// a `continue` must re-enter right before the has_next test, not
	// before GET_NEXT, which would re-fetch the current element again.
	continueTarget := c.emitter.Offset()
	if err := c.emitter.EmitExtBackwardBranch(cbc.OpExtBranchIfForInHasNext, start, line); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
	if err := c.emitter.SetBranchToCurrentPosition(exit); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
	c.emitter.EmitSimple(cbc.OpContextEnd, line)

	if err := c.emitter.DrainBreakContinue(f.LoopList, c.emitter.Offset(), continueTarget); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

func (c *Compiler) parseClassicFor(line int) {
	if c.tok.Type == lexer.KEYW_VAR {
		c.parseForVarInit()
	} else if c.tok.Type != lexer.SEMICOLON {
		c.parseExpressionFull()
		c.emitter.EmitSimple(cbc.OpPop, line)
	}
	// As in parseWhile, each clause's source starts right after the
	// preceding ';': record it before expect reads the clause's first
	// token, and rewind there before pre-scanning the clause.
	condStart := c.lex.Offset()
	afterInit := c.lex.Save()
	c.expect(lexer.SEMICOLON, ccerrors.ExpectedSemicolon)

	var condSrc string
	if c.tok.Type != lexer.SEMICOLON {
		c.lex.Restore(afterInit)
		rng, err := prescan.New(c.lex).ScanUntil(lexer.SEMICOLON, lexer.ILLEGAL, prescan.PrimaryExpr)
		if err != nil {
			panic(c.errAt(ccerrors.UnterminatedLookahead, c.tok.Pos, err.Error()))
		}
		condSrc = c.source[condStart:rng.EndOffset]
		c.advance()
	}
	updateStart := c.lex.Offset()
	afterCond := c.lex.Save()
	c.expect(lexer.SEMICOLON, ccerrors.ExpectedSemicolon)

	var updateSrc string
	if c.tok.Type != lexer.RPAREN {
		c.lex.Restore(afterCond)
		rng, err := prescan.New(c.lex).ScanUntil(lexer.RPAREN, lexer.ILLEGAL, prescan.PrimaryExpr)
		if err != nil {
			panic(c.errAt(ccerrors.UnterminatedLookahead, c.tok.Pos, err.Error()))
		}
		updateSrc = c.source[updateStart:rng.EndOffset]
		c.advance()
	}
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

	var toCond int
	hasCond := condSrc != ""
	if hasCond {
		toCond = c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)
	}
	bodyStart := c.emitter.Offset()

	c.stack.push(Frame{Kind: KindFor, StartOffset: bodyStart})
	c.parseStatement()
	f := c.stack.pop()

	continueTarget := c.emitter.Offset()
	if updateSrc != "" {
		c.emitSubExpression(updateSrc, line)
		c.emitter.EmitSimple(cbc.OpPop, line)
	}

	if hasCond {
		c.emitter.SetBranchToCurrentPosition(toCond)
		c.emitConditionFromSource(condSrc, line, bodyStart)
	} else {
		if err := c.emitter.EmitBackwardBranch(cbc.OpJumpBackward, bodyStart, line); err != nil {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
		}
	}

	if err := c.emitter.DrainBreakContinue(f.LoopList, c.emitter.Offset(), continueTarget); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

func (c *Compiler) parseForVarInit() {
	c.advance() // var
	for {
		if c.tok.Type != lexer.IDENT {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, c.tok.Type.String()))
		}
		name := c.tok.Literal
		line := c.tok.Pos.Line
		c.advance()
		if c.tok.Type == lexer.ASSIGN {
			c.advance()
			c.parseNoCommaExpression()
			c.emitter.EmitIdent(cbc.OpAssignIdent, name, line)
			c.emitter.EmitSimple(cbc.OpPop, line)
		} else {
			c.emitter.InternIdentOnly(name)
		}
		if c.tok.Type != lexer.COMMA {
			return
		}
		c.advance()
	}
}

func (c *Compiler) emitSubExpression(src string, line int) {
	sub := &Compiler{lex: lexer.New(src), emitter: c.emitter, stack: newStack(), source: src, file: c.file, strict: c.strict}
	sub.advance()
	sub.parseExpressionFull()
}

// --- with ----------------------------------------------------------

func (c *Compiler) parseWith() {
	line := c.tok.Pos.Line
	if c.strict {
		panic(c.errAt(ccerrors.WithInStrictMode, c.tok.Pos, ""))
	}
	c.advance()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	c.parseExpressionFull()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

	branch := c.emitter.EmitForwardBranch(cbc.OpWithCreateContext, line)
	c.stack.push(Frame{Kind: KindWith, WithBranch: branch})
	c.parseStatement()
	f := c.stack.pop()
	c.emitter.EmitSimple(cbc.OpContextEnd, line)
	c.emitter.SetBranchToCurrentPosition(f.WithBranch)
}

// --- switch ----------------------------------------------------------

// switchClause is one case/default clause found by parseSwitch's first
// pass: its test branch (case only) and a replayable lexer.State pinned
// to its body's first token, so the second pass can re-walk the clause
// bodies in source order once every case's comparison has been emitted.
type switchClause struct {
	isDefault  bool
	testBranch int
	bodyState  lexer.State
	bodyTok    lexer.Token
}

// parseSwitch compiles a two-phase dispatch: first every `case` expression
// is compared against the scrutinee in source order (spec.md's case
// pre-pass, located here via ScanUntilAny instead of a fully separate
// lookahead pass, since the comparisons themselves must already be
// emitted to know their branch targets). Then a small POP+JUMP trampoline
// per clause, and finally the clause bodies themselves, replayed in
// source order so fall-through (no `break`) is simply "no jump between
// bodies" — ordinary straight-line code.
//
// The trampoline exists because the scrutinee sits on the stack for the
// whole dispatch chain (via DUP before each STRICT_EQUAL) and must be
// popped exactly once on whichever single path first enters the body
// region; a bare POP at the top of clause i's body would double-pop when
// reached by fall-through from clause i-1 instead of by a fresh test
// match. Routing every entry through its own tiny POP+JUMP stub, instead
// of inline at the body, keeps the body region itself pop-free and purely
// sequential.
func (c *Compiler) parseSwitch() {
	line := c.tok.Pos.Line
	c.advance()
	c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
	c.parseExpressionFull()
	c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)
	c.expect(lexer.LBRACE, ccerrors.ExpectedLBrace)

	c.stack.push(Frame{Kind: KindSwitch})

	if c.tok.Type == lexer.RBRACE {
		c.emitter.EmitSimple(cbc.OpPop, line)
		c.advance()
		c.stack.pop()
		return
	}

	var clauses []switchClause
	hasDefault := false

	for c.tok.Type != lexer.RBRACE {
		switch c.tok.Type {
		case lexer.KEYW_CASE:
			caseLine := c.tok.Pos.Line
			c.advance()
			c.emitter.EmitSimple(cbc.OpDup, caseLine)
			c.parseExpressionFull()
			c.emitter.EmitSimple(cbc.OpStrictEqual, caseLine)
			branch := c.emitter.EmitForwardBranch(cbc.OpBranchIfTrueForward, caseLine)
			c.expect(lexer.COLON, ccerrors.ExpectedColon)
			state, tok := c.skipClauseBody()
			clauses = append(clauses, switchClause{testBranch: branch, bodyState: state, bodyTok: tok})

		case lexer.KEYW_DEFAULT:
			if hasDefault {
				panic(c.errAt(ccerrors.MultipleDefaultsNotAllowed, c.tok.Pos, ""))
			}
			hasDefault = true
			c.advance()
			c.expect(lexer.COLON, ccerrors.ExpectedColon)
			state, tok := c.skipClauseBody()
			clauses = append(clauses, switchClause{isDefault: true, bodyState: state, bodyTok: tok})

		default:
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, "expected 'case' or 'default'"))
		}
	}
	c.expect(lexer.RBRACE, ccerrors.ExpectedRBrace)

	noMatch := c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)

	bodyTargets := make([]int, len(clauses))
	for i, cl := range clauses {
		var patchErr error
		if cl.isDefault {
			patchErr = c.emitter.SetBranchToCurrentPosition(noMatch)
		} else {
			patchErr = c.emitter.SetBranchToCurrentPosition(cl.testBranch)
		}
		if patchErr != nil {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, patchErr.Error()))
		}
		c.emitter.EmitSimple(cbc.OpPop, line)
		bodyTargets[i] = c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)
	}

	var skipToEnd int
	if !hasDefault {
		if err := c.emitter.SetBranchToCurrentPosition(noMatch); err != nil {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
		}
		c.emitter.EmitSimple(cbc.OpPop, line)
		skipToEnd = c.emitter.EmitForwardBranch(cbc.OpJumpForward, line)
	}

	for i, cl := range clauses {
		if err := c.emitter.SetBranchToCurrentPosition(bodyTargets[i]); err != nil {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
		}
		c.lex.Restore(cl.bodyState)
		c.tok = cl.bodyTok
		for c.tok.Type != lexer.KEYW_CASE && c.tok.Type != lexer.KEYW_DEFAULT && c.tok.Type != lexer.RBRACE {
			c.parseStatement()
		}
	}

	if !hasDefault {
		if err := c.emitter.SetBranchToCurrentPosition(skipToEnd); err != nil {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
		}
	}

	// Re-synchronize the real cursor: the body replay above left it
	// sitting wherever the last clause's statements ended (the switch's
	// own closing '}', already consumed before the replay began), so
	// consume that '}' again to reach the token after the switch.
	c.expect(lexer.RBRACE, ccerrors.ExpectedRBrace)
	frame := c.stack.pop()
	if err := c.emitter.DrainBreaks(frame.LoopList, c.emitter.Offset()); err != nil {
		panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, err.Error()))
	}
}

// skipClauseBody saves a replayable cursor snapshot pinned to this
// clause's first body token, then fast-forwards the real cursor past the
// clause's statement text (without parsing it) to whichever of `case`,
// `default`, or `}` follows, so parseSwitch's first pass can continue
// enumerating clauses. The clause's statements themselves are parsed
// later, from the saved snapshot, once every clause's test has a known
// body target to jump to.
func (c *Compiler) skipClauseBody() (lexer.State, lexer.Token) {
	state := c.lex.Save()
	tok := c.tok

	if tok.Type == lexer.KEYW_CASE || tok.Type == lexer.KEYW_DEFAULT || tok.Type == lexer.RBRACE {
		return state, tok
	}

	_, _, err := prescan.New(c.lex).ScanUntilAny(prescan.Statement, lexer.KEYW_CASE, lexer.KEYW_DEFAULT, lexer.RBRACE)
	if err != nil {
		panic(c.errAt(ccerrors.UnterminatedLookahead, c.tok.Pos, err.Error()))
	}
	c.advance()
	return state, tok
}

// --- try / catch / finally -------------------------------------------

func (c *Compiler) parseTry() {
	line := c.tok.Pos.Line
	c.advance()
	c.expect(lexer.LBRACE, ccerrors.ExpectedLBrace)

	branch := c.emitter.EmitForwardBranch(cbc.OpTryCreateContext, line)
	c.stack.push(Frame{Kind: KindTry, TryPhase: TryPhaseBlock, TryBranch: branch})
	for c.tok.Type != lexer.RBRACE {
		c.parseStatement()
	}
	c.advance() // }

	var sawCatch, sawFinally bool

	if c.tok.Type == lexer.KEYW_CATCH {
		sawCatch = true
		catchLine := c.tok.Pos.Line
		c.advance()
		c.expect(lexer.LPAREN, ccerrors.ExpectedLParen)
		if c.tok.Type != lexer.IDENT {
			panic(c.errAt(ccerrors.UnexpectedToken, c.tok.Pos, "expected catch parameter"))
		}
		name := c.tok.Literal
		c.advance()
		c.expect(lexer.RPAREN, ccerrors.ExpectedRParen)

		f := c.stack.top()
		c.emitter.SetBranchToCurrentPosition(f.TryBranch)
		c.emitter.EmitExt(cbc.OpExtCatch, catchLine)
		c.emitter.EmitIdent(cbc.OpAssignIdent, name, catchLine)
		c.emitter.EmitSimple(cbc.OpPop, catchLine)
		f.TryPhase = TryPhaseCatch
		f.TryBranch = c.emitter.EmitForwardBranch(cbc.OpJumpForwardExitContext, catchLine)

		c.expect(lexer.LBRACE, ccerrors.ExpectedLBrace)
		for c.tok.Type != lexer.RBRACE {
			c.parseStatement()
		}
		c.advance()
	}

	if c.tok.Type == lexer.KEYW_FINALLY {
		sawFinally = true
		finallyLine := c.tok.Pos.Line
		c.advance()

		f := c.stack.top()
		if sawCatch {
			c.emitter.EmitSimple(cbc.OpContextEnd, finallyLine)
		}
		c.emitter.SetBranchToCurrentPosition(f.TryBranch)
		c.emitter.EmitExt(cbc.OpExtFinally, finallyLine)
		f.TryPhase = TryPhaseFinally
		f.TryBranch = c.emitter.EmitForwardBranch(cbc.OpJumpForwardExitContext, finallyLine)

		c.expect(lexer.LBRACE, ccerrors.ExpectedLBrace)
		for c.tok.Type != lexer.RBRACE {
			c.parseStatement()
		}
		c.advance()
	}

	if !sawCatch && !sawFinally {
		panic(c.errAt(ccerrors.MissingCatchOrFinally, c.tok.Pos, ""))
	}

	f := c.stack.pop()
	c.emitter.EmitSimple(cbc.OpContextEnd, line)
	c.emitter.SetBranchToCurrentPosition(f.TryBranch)
}

// --- throw / return --------------------------------------------------

func (c *Compiler) parseThrow() {
	line := c.tok.Pos.Line
	c.advance()
	if c.tok.NewlineBefore {
		panic(c.errAt(ccerrors.InvalidExpression, c.tok.Pos, "illegal newline after throw"))
	}
	c.parseExpressionFull()
	c.emitter.EmitSimple(cbc.OpThrow, line)
	c.consumeStatementTerminator()
}

func (c *Compiler) parseReturn() {
	line := c.tok.Pos.Line
	if c.unit != UnitFunction {
		panic(c.errAt(ccerrors.ReturnOutsideFunction, c.tok.Pos, ""))
	}
	c.advance()
	hasValue := byte(0)
	if !(c.tok.Type == lexer.SEMICOLON || c.tok.Type == lexer.RBRACE || c.tok.Type == lexer.EOF || c.tok.NewlineBefore) {
		c.parseExpressionFull()
		hasValue = 1
	} else {
		c.emitter.EmitSimple(cbc.OpPushUndefined, line)
	}
	c.emitter.EmitByte(cbc.OpReturn, hasValue, line)
	c.consumeStatementTerminator()
}

// --- break / continue --------------------------------------------------

func (c *Compiler) parseBreak() {
	line := c.tok.Pos.Line
	c.advance()
	var label string
	if c.tok.Type == lexer.IDENT && !c.tok.NewlineBefore {
		label = c.tok.Literal
		c.advance()
	}
	c.consumeStatementTerminator()
	c.resolveBreak(label, line)
}

func (c *Compiler) parseContinue() {
	line := c.tok.Pos.Line
	c.advance()
	var label string
	if c.tok.Type == lexer.IDENT && !c.tok.NewlineBefore {
		label = c.tok.Literal
		c.advance()
	}
	c.consumeStatementTerminator()
	c.resolveContinue(label, line)
}

// resolveBreak walks the stack upward for the nearest matching target,
// upgrading JUMP_FORWARD to JUMP_FORWARD_EXIT_CONTEXT across every
// FOR_IN/WITH/TRY frame crossed (spec.md §4.3).
func (c *Compiler) resolveBreak(label string, line int) {
	top := c.stack.depth() - 1
	crossesContext := false
	for i := top; i > 0; i-- {
		f := c.stack.at(i)
		if label == "" {
			if f.Kind.isBreakTarget() {
				c.emitBreakAt(i, crossesContext, line)
				return
			}
		} else if f.Kind == KindLabel && f.LabelName == label {
			c.emitLabelBreakAt(i, crossesContext, line)
			return
		}
		switch f.Kind {
		case KindForIn, KindWith, KindTry:
			crossesContext = true
		}
	}
	panic(c.errAt(ccerrors.InvalidBreak, c.tok.Pos, label))
}

func (c *Compiler) emitBreakAt(depth int, exitContext bool, line int) {
	f := c.stack.at(depth)
	op := cbc.OpJumpForward
	if exitContext {
		op = cbc.OpJumpForwardExitContext
	}
	f.LoopList = c.emitter.EmitForwardBranchItem(op, line, false, f.LoopList)
}

func (c *Compiler) emitLabelBreakAt(depth int, exitContext bool, line int) {
	f := c.stack.at(depth)
	op := cbc.OpJumpForward
	if exitContext {
		op = cbc.OpJumpForwardExitContext
	}
	f.BreakList = c.emitter.EmitForwardBranchItem(op, line, false, f.BreakList)
}

// resolveContinue is resolveBreak's twin: bare continue targets the
// innermost loop; a labeled continue only succeeds if that label
// directly precedes a loop (spec.md §8 property 7). The emitted branch
// node is marked Continue so the loop's drain call routes it to the
// continue point instead of the loop-end point.
func (c *Compiler) resolveContinue(label string, line int) {
	top := c.stack.depth() - 1
	crossesContext := false
	for i := top; i > 0; i-- {
		f := c.stack.at(i)
		if label == "" {
			if f.Kind.isLoop() {
				c.emitContinueAt(i, crossesContext, line)
				return
			}
		} else if f.Kind == KindLabel && f.LabelName == label {
			// The label must directly precede a loop: the very next
			// (inner) frame on the stack, since a LABEL frame's body is
			// exactly the statement it labels.
			if i+1 <= top && c.stack.at(i + 1).Kind.isLoop() {
				c.emitContinueAt(i+1, crossesContext, line)
				return
			}
			panic(c.errAt(ccerrors.InvalidContinueLabel, c.tok.Pos, label))
		}
		switch f.Kind {
		case KindForIn, KindWith, KindTry:
			crossesContext = true
		}
	}
	panic(c.errAt(ccerrors.InvalidContinue, c.tok.Pos, label))
}

func (c *Compiler) emitContinueAt(depth int, exitContext bool, line int) {
	f := c.stack.at(depth)
	op := cbc.OpJumpForward
	if exitContext {
		op = cbc.OpJumpForwardExitContext
	}
	f.LoopList = c.emitter.EmitForwardBranchItem(op, line, true, f.LoopList)
}
