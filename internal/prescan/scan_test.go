package prescan

import (
	"testing"

	"github.com/obastemur/cbcc/internal/lexer"
)

func scanRange(t *testing.T, src string, endType, endTypeB lexer.TokenType, mode Mode) (SourceRange, *lexer.Lexer) {
	t.Helper()
	lx := lexer.New(src)
	sc := New(lx)
	rng, err := sc.ScanUntil(endType, endTypeB, mode)
	if err != nil {
		t.Fatalf("ScanUntil: %v", err)
	}
	return rng, lx
}

func TestScanUntilBalancesParens(t *testing.T) {
	src := "(a + (b * c)) )"
	lx := lexer.New(src)
	// consume the opening '(' the way the statement parser already would
	// before calling the pre-scanner.
	lx.NextToken(lexer.ModePrimary)
	sc := New(lx)
	rng, err := sc.ScanUntil(lexer.RPAREN, lexer.ILLEGAL, PrimaryExpr)
	if err != nil {
		t.Fatalf("ScanUntil: %v", err)
	}
	skipped := src[rng.StartOffset:rng.EndOffset]
	if skipped != "a + (b * c)" {
		t.Fatalf("skipped = %q, want %q", skipped, "a + (b * c)")
	}
	// the terminating ')' must still be unconsumed
	tok := lx.NextToken(lexer.ModeOperator)
	if tok.Type != lexer.RPAREN {
		t.Fatalf("terminator consumed early: got %s", tok.Type)
	}
}

func TestScanUntilDetectsForIn(t *testing.T) {
	_, lx := scanRange(t, "x in obj) {}", lexer.KEYW_IN, lexer.ILLEGAL, PrimaryExpr)
	tok := lx.NextToken(lexer.ModeOperator)
	if tok.Type != lexer.KEYW_IN {
		t.Fatalf("expected to stop at `in`, got %s", tok.Type)
	}
}

func TestScanUntilClassicForHeadHasNoIn(t *testing.T) {
	// A classic for-head never sees `in` at depth zero, so scanning for
	// KEYW_IN up to the closing paren must instead hit RPAREN when that is
	// supplied as the alternate terminator.
	_, lx := scanRange(t, "i = 0; i < 10; i++) {}", lexer.KEYW_IN, lexer.RPAREN, PrimaryExpr)
	tok := lx.NextToken(lexer.ModeOperator)
	if tok.Type != lexer.RPAREN {
		t.Fatalf("expected closing paren, got %s", tok.Type)
	}
}

func TestScanUntilEOFIsError(t *testing.T) {
	lx := lexer.New("a + b")
	sc := New(lx)
	if _, err := sc.ScanUntil(lexer.RPAREN, lexer.ILLEGAL, PrimaryExpr); err == nil {
		t.Fatal("expected an error scanning past EOF")
	}
}

func TestScanUntilSwitchCaseBoundary(t *testing.T) {
	src := "foo(); case 2: bar(); }"
	_, lx := scanRange(t, src, lexer.KEYW_CASE, lexer.RBRACE, Statement)
	tok := lx.NextToken(lexer.ModePrimary)
	if tok.Type != lexer.KEYW_CASE {
		t.Fatalf("expected to stop at `case`, got %s", tok.Type)
	}
}
