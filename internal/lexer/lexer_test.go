package lexer

import "testing"

func TestNextTokenPunctuatorsAndKeywords(t *testing.T) {
	input := `var x = 5;
	x += x + 10;
	function f(a, b) { return a === b; }
	`

	tests := []struct {
		expectedLiteral string
		expectedType    TokenType
	}{
		{"var", KEYW_VAR},
		{"x", IDENT},
		{"=", ASSIGN},
		{"5", NUMBER},
		{";", SEMICOLON},
		{"x", IDENT},
		{"+=", PLUS_ASSIGN},
		{"x", IDENT},
		{"+", PLUS},
		{"10", NUMBER},
		{";", SEMICOLON},
		{"function", KEYW_FUNCTION},
		{"f", IDENT},
		{"(", LPAREN},
		{"a", IDENT},
		{",", COMMA},
		{"b", IDENT},
		{")", RPAREN},
		{"{", LBRACE},
		{"return", KEYW_RETURN},
		{"a", IDENT},
		{"===", EQ_EQ_EQ},
		{"b", IDENT},
		{";", SEMICOLON},
		{"}", RBRACE},
		{"", EOF},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken(ModeOperator)
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s (literal=%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenStringsAndNumbers(t *testing.T) {
	input := `"hello" 'world' 123 1.5e10 0xFF 0755`

	l := New(input)
	want := []TokenType{STRING, STRING, NUMBER, NUMBER, NUMBER, NUMBER, EOF}
	for i, wt := range want {
		tok := l.NextToken(ModePrimary)
		if tok.Type != wt {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s", i, wt, tok.Type)
		}
	}
}

func TestRegexVsDivideDisambiguation(t *testing.T) {
	// After an identifier (ModeOperator), `/` starts a division; at the
	// start of an expression (ModePrimary), `/` starts a regex literal.
	l1 := New("a / b")
	l1.NextToken(ModePrimary) // `a`
	tok := l1.NextToken(ModeOperator)
	if tok.Type != SLASH {
		t.Fatalf("expected SLASH after identifier, got %s", tok.Type)
	}

	l2 := New("/abc/gi")
	tok2 := l2.NextToken(ModePrimary)
	if tok2.Type != REGEX {
		t.Fatalf("expected REGEX at primary position, got %s", tok2.Type)
	}
	if tok2.Literal != "/abc/gi" {
		t.Fatalf("regex literal = %q, want %q", tok2.Literal, "/abc/gi")
	}
}

func TestNewlineBeforeTracksASI(t *testing.T) {
	input := "a\nb"
	l := New(input)
	first := l.NextToken(ModePrimary)
	if first.NewlineBefore {
		t.Fatalf("first token should not report a newline before it")
	}
	second := l.NextToken(ModeOperator)
	if !second.NewlineBefore {
		t.Fatalf("second token should report the newline preceding it, for ASI")
	}
}

func TestSaveRestoreRewindsCursor(t *testing.T) {
	l := New("a + b")
	save := l.Save()
	first := l.NextToken(ModePrimary)
	if first.Type != IDENT {
		t.Fatalf("expected IDENT, got %s", first.Type)
	}
	l.Restore(save)
	replay := l.NextToken(ModePrimary)
	if replay.Type != IDENT || replay.Literal != "a" {
		t.Fatalf("Restore did not rewind to the same token: got %s %q", replay.Type, replay.Literal)
	}
}

func TestIllegalCharacter(t *testing.T) {
	l := New("@")
	tok := l.NextToken(ModePrimary)
	if tok.Type != ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s", tok.Type)
	}
}

func TestOctalEscapeDetection(t *testing.T) {
	l := New(`"\101"`)
	tok := l.NextToken(ModePrimary)
	if tok.Type != STRING {
		t.Fatalf("expected STRING, got %s", tok.Type)
	}
	if !tok.OctalEscape {
		t.Fatalf("expected OctalEscape to be set for \\101")
	}
}
