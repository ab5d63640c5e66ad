// Package lexer implements lexical analysis for ECMAScript 5.1 source text.
package lexer

import "fmt"

// TokenType identifies the lexical class of a Token.
type TokenType int

// Token type constants, organized by category.
const (
	// Special tokens
	ILLEGAL TokenType = iota // unexpected character
	EOF                      // end of source

	// Synthetic markers used by the statement parser and pre-scanner;
	// never produced directly by NextToken.
	EXPRESSION_START // marks re-entry into expression mode after a reinjected literal
	SCAN_SWITCH      // pre-scanner mode marker for switch-body scanning

	// Identifiers and literals
	IDENT  // identifiers: x, myVar, $func
	NUMBER // numeric literals: 123, 1.5e10, 0xFF
	STRING // string literals: 'hello', "world"
	REGEX  // regex literals: /abc/gi

	// Keywords
	KEYW_BREAK
	KEYW_CASE
	KEYW_CATCH
	KEYW_CONTINUE
	KEYW_DEBUGGER
	KEYW_DEFAULT
	KEYW_DELETE
	KEYW_DO
	KEYW_ELSE
	KEYW_FALSE
	KEYW_FINALLY
	KEYW_FOR
	KEYW_FUNCTION
	KEYW_IF
	KEYW_IN
	KEYW_INSTANCEOF
	KEYW_NEW
	KEYW_NULL
	KEYW_RETURN
	KEYW_SWITCH
	KEYW_THIS
	KEYW_THROW
	KEYW_TRUE
	KEYW_TRY
	KEYW_TYPEOF
	KEYW_VAR
	KEYW_VOID
	KEYW_WHILE
	KEYW_WITH

	// Future-reserved words (ES5.1 Annex), rejected as identifiers
	// wherever reserved-word exclusion applies; extra-reserved in strict mode.
	KEYW_CLASS
	KEYW_CONST
	KEYW_ENUM
	KEYW_EXPORT
	KEYW_EXTENDS
	KEYW_IMPORT
	KEYW_SUPER
	KEYW_IMPLEMENTS
	KEYW_INTERFACE
	KEYW_LET
	KEYW_PACKAGE
	KEYW_PRIVATE
	KEYW_PROTECTED
	KEYW_PUBLIC
	KEYW_STATIC
	KEYW_YIELD

	// Punctuators
	LBRACE    // {
	RBRACE    // }
	LPAREN    // (
	RPAREN    // )
	LBRACK    // [
	RBRACK    // ]
	DOT       // .
	SEMICOLON // ;
	COMMA     // ,

	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
	EQ_EQ      // ==
	NOT_EQ     // !=
	EQ_EQ_EQ   // ===
	NOT_EQ_EQ  // !==

	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	PLUSPLUS // ++
	MINUSMINUS

	SHL    // <<
	SHR    // >>
	USHR   // >>>
	AMP    // &
	PIPE   // |
	CARET  // ^
	BANG   // !
	TILDE  // ~
	AMPAMP // &&
	PIPEPIPE

	QUESTION // ?
	COLON    // :

	ASSIGN        // =
	PLUS_ASSIGN   // +=
	MINUS_ASSIGN  // -=
	STAR_ASSIGN   // *=
	SLASH_ASSIGN  // /=
	PERCENT_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN
	USHR_ASSIGN
	AMP_ASSIGN
	PIPE_ASSIGN
	CARET_ASSIGN
)

var tokenNames = map[TokenType]string{
	ILLEGAL:          "ILLEGAL",
	EOF:              "EOF",
	EXPRESSION_START: "EXPRESSION_START",
	SCAN_SWITCH:      "SCAN_SWITCH",
	IDENT:            "IDENT",
	NUMBER:           "NUMBER",
	STRING:           "STRING",
	REGEX:            "REGEX",

	KEYW_BREAK: "break", KEYW_CASE: "case", KEYW_CATCH: "catch",
	KEYW_CONTINUE: "continue", KEYW_DEBUGGER: "debugger", KEYW_DEFAULT: "default",
	KEYW_DELETE: "delete", KEYW_DO: "do", KEYW_ELSE: "else", KEYW_FALSE: "false",
	KEYW_FINALLY: "finally", KEYW_FOR: "for", KEYW_FUNCTION: "function",
	KEYW_IF: "if", KEYW_IN: "in", KEYW_INSTANCEOF: "instanceof", KEYW_NEW: "new",
	KEYW_NULL: "null", KEYW_RETURN: "return", KEYW_SWITCH: "switch",
	KEYW_THIS: "this", KEYW_THROW: "throw", KEYW_TRUE: "true", KEYW_TRY: "try",
	KEYW_TYPEOF: "typeof", KEYW_VAR: "var", KEYW_VOID: "void", KEYW_WHILE: "while",
	KEYW_WITH: "with",

	KEYW_CLASS: "class", KEYW_CONST: "const", KEYW_ENUM: "enum",
	KEYW_EXPORT: "export", KEYW_EXTENDS: "extends", KEYW_IMPORT: "import",
	KEYW_SUPER: "super", KEYW_IMPLEMENTS: "implements", KEYW_INTERFACE: "interface",
	KEYW_LET: "let", KEYW_PACKAGE: "package", KEYW_PRIVATE: "private",
	KEYW_PROTECTED: "protected", KEYW_PUBLIC: "public", KEYW_STATIC: "static",
	KEYW_YIELD: "yield",

	LBRACE: "{", RBRACE: "}", LPAREN: "(", RPAREN: ")", LBRACK: "[", RBRACK: "]",
	DOT: ".", SEMICOLON: ";", COMMA: ",",
	LESS: "<", GREATER: ">", LESS_EQ: "<=", GREATER_EQ: ">=",
	EQ_EQ: "==", NOT_EQ: "!=", EQ_EQ_EQ: "===", NOT_EQ_EQ: "!==",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	PLUSPLUS: "++", MINUSMINUS: "--",
	SHL: "<<", SHR: ">>", USHR: ">>>", AMP: "&", PIPE: "|", CARET: "^",
	BANG: "!", TILDE: "~", AMPAMP: "&&", PIPEPIPE: "||",
	QUESTION: "?", COLON: ":",
	ASSIGN: "=", PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=",
	SLASH_ASSIGN: "/=", PERCENT_ASSIGN: "%=", SHL_ASSIGN: "<<=", SHR_ASSIGN: ">>=",
	USHR_ASSIGN: ">>>=", AMP_ASSIGN: "&=", PIPE_ASSIGN: "|=", CARET_ASSIGN: "^=",
}

// String returns a human-readable token type name, used by error messages
// and the `lex` CLI subcommand.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// keywords maps reserved-word spelling to its TokenType. Populated once at
// init; ScanIdentifierName bypasses this table entirely and returns every
// word as IDENT.
var keywords map[string]TokenType

func init() {
	keywords = map[string]TokenType{}
	for tt, name := range tokenNames {
		if tt >= KEYW_BREAK && tt <= KEYW_YIELD {
			keywords[name] = tt
		}
	}
}

// LookupIdent classifies word as a keyword TokenType, or IDENT if it is not
// a reserved word.
func LookupIdent(word string) TokenType {
	if tt, ok := keywords[word]; ok {
		return tt
	}
	return IDENT
}

// futureReservedStrict lists the words ES5.1 reserves only in strict code
// (§7.6.1.2). They also have KEYW_ token types, so LookupIdent returns a
// keyword for them in non-strict code as well.
var futureReservedStrict = map[string]bool{
	"implements": true, "interface": true, "let": true, "package": true,
	"private": true, "protected": true, "public": true, "static": true,
	"yield": true,
}

// IsStrictReservedWord reports whether word is only reserved under strict
// mode (used when checking function parameter names).
func IsStrictReservedWord(word string) bool {
	return futureReservedStrict[word]
}

// Position pins a token (or an error) to a location in the source text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical unit together with enough context for automatic
// semicolon insertion and for break/continue/return operand disambiguation.
type Token struct {
	Literal         string
	Type            TokenType
	Pos             Position
	NewlineBefore   bool // at least one LineTerminator appeared before this token
	OctalEscape     bool // string literal contained a legacy octal escape (not rejected in strict mode)
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Type, t.Literal, t.Pos)
}
