// Package prescan implements the lookahead scanner the statement parser
// uses to locate a delimiter across arbitrary nested expressions without
// emitting any bytecode (spec.md §4.2, "scan_until"). It is how loop
// heads, for-in detection, and switch-body case enumeration work: the
// parser asks "where does this balanced region end", gets a SourceRange
// back, and re-enters itself on that range later.
package prescan

import "github.com/obastemur/cbcc/internal/lexer"

// Mode selects what kind of token the scanner expects next, which in
// turn selects regex-vs-divide disambiguation for the underlying lexer.
type Mode int

const (
	PrimaryExpr Mode = iota
	PrimaryAfterNew
	PostPrimary
	PrimaryEnd
	Statement
	FunctionArgs
	PropertyName
)

// expectsPrimary reports whether mode expects a token that could open a
// primary expression (so `/` starts a regex, not division).
func (m Mode) expectsPrimary() bool {
	switch m {
	case PrimaryExpr, PrimaryAfterNew, Statement, FunctionArgs:
		return true
	default:
		return false
	}
}

// stackSymbol is one entry of the scanner's bracket-nesting stack.
// spec.md §4.2 names these nine plus the Head sentinel.
type stackSymbol int

const (
	symHead stackSymbol = iota
	symParenExpr
	symParenStmt
	symColonExpr
	symColonStmt
	symSquareBracketExpr
	symObjectLiteral
	symBlockStmt
	symBlockExpr
	symBlockProperty
)

// SourceRange pins the start and end of a region the scanner skipped
// over, for the statement parser to re-enter later (the deferred-
// condition technique used by while/for, spec.md §4.3).
type SourceRange struct {
	StartOffset int
	EndOffset   int
	Start       lexer.Position
	End         lexer.Position
}

// Scanner advances an *lexer.Lexer without emitting bytecode, tracking
// bracket nesting with a small pushdown stack.
type Scanner struct {
	lex *lexer.Lexer
}

// New builds a Scanner over lex. The scanner never constructs its own
// lexer: it shares the one the statement parser is already driving, so
// advancing it has the same effect as if the parser had called
// NextToken itself.
func New(lex *lexer.Lexer) *Scanner {
	return &Scanner{lex: lex}
}

// UntilError reports a scan that ran off the end of the source before
// finding its terminator (spec.md §4.2: "EOS before termination is an
// error").
type UntilError struct {
	Pos lexer.Position
}

func (e *UntilError) Error() string {
	return "unexpected end of input while scanning ahead"
}

// ScanUntil advances the lexer until it sees endType or the normalized
// alternate endTypeB at nesting depth zero (the Head stack symbol),
// starting in the given Mode. It returns the skipped range; the
// terminating token itself is left unconsumed so the caller sees it on
// its next NextToken call.
func (s *Scanner) ScanUntil(endType, endTypeB lexer.TokenType, mode Mode) (SourceRange, error) {
	rng, _, err := s.ScanUntilAny(mode, endType, endTypeB)
	return rng, err
}

// ScanUntilAny is ScanUntil generalized to more than two terminators, for
// the switch-body pre-pass (spec.md §4.3), which must stop at whichever
// comes first of `case`, `default`, or `}`. A zero lexer.TokenType in
// types is ignored, so callers can pass a fixed-size list with unused
// trailing slots.
func (s *Scanner) ScanUntilAny(mode Mode, types ...lexer.TokenType) (SourceRange, lexer.TokenType, error) {
	startOffset := s.lex.Offset()
	startPos := s.lex.Pos()

	stack := []stackSymbol{symHead}
	cur := mode

	for {
		saveOffset := s.lex.Offset()
		savePos := s.lex.Pos()
		save := s.lex.Save()
		scanMode := lexer.ModeOperator
		if cur.expectsPrimary() {
			scanMode = lexer.ModePrimary
		}
		tok := s.lex.NextToken(scanMode)

		if tok.Type == lexer.EOF {
			return SourceRange{}, lexer.ILLEGAL, &UntilError{Pos: tok.Pos}
		}

		if stack[len(stack)-1] == symHead {
			for _, t := range types {
				if t != lexer.ILLEGAL && tok.Type == t {
					s.lex.Restore(save)
					return SourceRange{
						StartOffset: startOffset,
						EndOffset:   saveOffset,
						Start:       startPos,
						End:         savePos,
					}, t, nil
				}
			}
		}

		stack, cur = s.transition(stack, cur, tok)
	}
}

// transition applies one token to the bracket stack and returns the next
// scanning mode, per the grammar classes spec.md §4.2 describes: open
// brackets push, close brackets pop and set the follow-up mode, object
// literals alternate PropertyName/PrimaryExpr, and function-argument
// scanning switches to Statement mode once its `{` is seen.
func (s *Scanner) transition(stack []stackSymbol, cur Mode, tok lexer.Token) ([]stackSymbol, Mode) {
	switch tok.Type {
	case lexer.LPAREN:
		if cur == Statement {
			return append(stack, symParenStmt), PrimaryExpr
		}
		return append(stack, symParenExpr), PrimaryExpr

	case lexer.RPAREN:
		stack, top := pop(stack)
		switch top {
		case symParenStmt:
			return stack, Statement
		default:
			return stack, PostPrimary
		}

	case lexer.LBRACK:
		return append(stack, symSquareBracketExpr), PrimaryExpr

	case lexer.RBRACK:
		stack, _ = pop(stack)
		return stack, PostPrimary

	case lexer.LBRACE:
		switch cur {
		case FunctionArgs:
			return append(stack, symBlockStmt), Statement
		case PrimaryExpr, PrimaryAfterNew:
			return append(stack, symObjectLiteral), PropertyName
		default:
			return append(stack, symBlockExpr), PrimaryExpr
		}

	case lexer.RBRACE:
		stack, top := pop(stack)
		switch top {
		case symObjectLiteral, symBlockProperty:
			return stack, PostPrimary
		case symBlockStmt:
			return stack, PostPrimary
		default:
			return stack, PostPrimary
		}

	case lexer.COLON:
		if cur == PropertyName {
			return stack, PrimaryExpr
		}
		return stack, cur

	case lexer.COMMA:
		if top(stack) == symObjectLiteral {
			return stack, PropertyName
		}
		return stack, PrimaryExpr

	case lexer.KEYW_NEW:
		return stack, PrimaryAfterNew

	case lexer.DOT:
		return stack, PropertyNameMode(cur)

	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.REGEX,
		lexer.KEYW_TRUE, lexer.KEYW_FALSE, lexer.KEYW_NULL, lexer.KEYW_THIS,
		lexer.KEYW_FUNCTION:
		return stack, PostPrimary

	default:
		// Any other punctuator/operator/keyword in an expression position
		// (binary/unary operators, `?`, `in`, `instanceof`, etc.) expects
		// another primary next.
		if cur == PostPrimary || cur == PrimaryEnd {
			return stack, PrimaryExpr
		}
		return stack, cur
	}
}

// PropertyNameMode returns the mode that follows a `.`: property names
// accept any identifier, including reserved words, so the lexer's
// scan_identifier behavior is requested by the caller (StatementParser /
// ExpressionParser), not by the pre-scanner itself — here we just need
// to keep expecting a post-primary token afterward.
func PropertyNameMode(cur Mode) Mode {
	return PostPrimary
}

func top(stack []stackSymbol) stackSymbol {
	if len(stack) == 0 {
		return symHead
	}
	return stack[len(stack)-1]
}

func pop(stack []stackSymbol) ([]stackSymbol, stackSymbol) {
	if len(stack) <= 1 {
		return stack, symHead
	}
	t := stack[len(stack)-1]
	return stack[:len(stack)-1], t
}
