// Package ccerrors formats compiler errors with source context, adapted
// from the teacher's internal/errors package. Every parse/compile
// failure raised by internal/compiler funnels through CompileError: there
// is exactly one sink (spec.md §7 "raise_error"), no partial recovery.
package ccerrors

import (
	"fmt"
	"strings"

	"github.com/obastemur/cbcc/internal/lexer"
)

// Kind enumerates the error taxonomy spec.md §7 lists.
type Kind int

const (
	UnexpectedToken Kind = iota
	ExpectedLParen
	ExpectedRParen
	ExpectedLBrace
	ExpectedRBrace
	ExpectedSemicolon
	ExpectedColon
	InvalidExpression
	InvalidBreak
	InvalidContinue
	InvalidContinueLabel
	DuplicateLabel
	MultipleDefaultsNotAllowed
	DefaultOutsideSwitch
	CaseOutsideSwitch
	ReturnOutsideFunction
	WithInStrictMode
	ReservedIdentifierStrict
	NonStrictArgInStrictFunction
	MissingCatchOrFinally
	UnterminatedLookahead
)

var kindNames = map[Kind]string{
	UnexpectedToken:              "unexpected token",
	ExpectedLParen:                "expected '('",
	ExpectedRParen:                "expected ')'",
	ExpectedLBrace:                "expected '{'",
	ExpectedRBrace:                "expected '}'",
	ExpectedSemicolon:             "expected ';'",
	ExpectedColon:                 "expected ':'",
	InvalidExpression:             "invalid expression",
	InvalidBreak:                  "invalid break statement",
	InvalidContinue:               "invalid continue statement",
	InvalidContinueLabel:          "continue label does not label an enclosing loop",
	DuplicateLabel:                "label already declared in this scope",
	MultipleDefaultsNotAllowed:    "more than one default clause in switch statement",
	DefaultOutsideSwitch:          "default not inside a switch statement",
	CaseOutsideSwitch:             "case not inside a switch statement",
	ReturnOutsideFunction:         "return statement outside of a function",
	WithInStrictMode:              "'with' statement is not allowed in strict mode",
	ReservedIdentifierStrict:      "use of reserved word as identifier under strict mode",
	NonStrictArgInStrictFunction:  "non-strict argument name in strict mode function",
	MissingCatchOrFinally:         "missing catch or finally after try",
	UnterminatedLookahead:         "unexpected end of input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// CompileError is the single error type every compile failure produces.
type CompileError struct {
	Kind    Kind
	Message string
	Source  string
	File    string
	Pos     lexer.Position
}

// New builds a CompileError. message, if non-empty, is shown in addition
// to Kind's default text (used to name the offending token or identifier).
func New(kind Kind, pos lexer.Position, source, file, message string) *CompileError {
	return &CompileError{Kind: kind, Message: message, Source: source, File: file, Pos: pos}
}

func (e *CompileError) Error() string { return e.Format(false) }

// Format renders the error with a source line and caret, exactly like
// the teacher's CompilerError.Format, extended with the Kind label.
func (e *CompileError) Format(color bool) string {
	var sb strings.Builder

	if e.File != "" {
		fmt.Fprintf(&sb, "Error in %s:%d:%d: %s\n", e.File, e.Pos.Line, e.Pos.Column, e.Kind)
	} else {
		fmt.Fprintf(&sb, "Error at %d:%d: %s\n", e.Pos.Line, e.Pos.Column, e.Kind)
	}

	if line := e.sourceLine(e.Pos.Line); line != "" {
		lineNumStr := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(line)
		sb.WriteString("\n")

		col := e.Pos.Column
		if col < 1 {
			col = 1
		}
		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+col-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if e.Message != "" {
		if color {
			sb.WriteString("\033[1m")
		}
		sb.WriteString(e.Message)
		if color {
			sb.WriteString("\033[0m")
		}
	}

	return sb.String()
}

func (e *CompileError) sourceLine(lineNum int) string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}
