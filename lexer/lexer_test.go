package lexer

import "testing"

func collect(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lexer error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return toks
}

func TestNextBasicTokens(t *testing.T) {
	toks := collect(t, `x = 1 + 2.5`)
	want := []TokenType{TOKEN_IDENT, TOKEN_ASSIGN, TOKEN_NUMBER, TOKEN_PLUS, TOKEN_NUMBER, TOKEN_EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestKeywords(t *testing.T) {
	toks := collect(t, `if x then end`)
	want := []TokenType{TOKEN_IF, TOKEN_IDENT, TOKEN_THEN, TOKEN_END, TOKEN_EOF}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestColonToken(t *testing.T) {
	toks := collect(t, `a : b`)
	if toks[1].Type != TOKEN_COLON {
		t.Errorf("token 1: got %s, want COLON", toks[1].Type)
	}
}

func TestStringEscapes(t *testing.T) {
	toks := collect(t, `"a\nb\t\""`)
	if toks[0].Type != TOKEN_STRING {
		t.Fatalf("got %s", toks[0].Type)
	}
	if toks[0].Literal != "a\nb\t\"" {
		t.Errorf("got %q", toks[0].Literal)
	}
}

func TestCommentsAndWhitespaceSkipped(t *testing.T) {
	toks := collect(t, "-- a line comment\nx -- trailing\n/* block */y")
	var kinds []TokenType
	for _, tok := range toks {
		kinds = append(kinds, tok.Type)
	}
	want := []TokenType{TOKEN_NEWLINE, TOKEN_IDENT, TOKEN_NEWLINE, TOKEN_IDENT, TOKEN_EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want shape %v", kinds, want)
	}
}

func TestNumberLiterals(t *testing.T) {
	toks := collect(t, `42 3.14 1e10`)
	for i := 0; i < 3; i++ {
		if toks[i].Type != TOKEN_NUMBER {
			t.Errorf("token %d: got %s, want NUMBER", i, toks[i].Type)
		}
	}
	if toks[1].Literal != "3.14" {
		t.Errorf("got literal %q", toks[1].Literal)
	}
}

func TestDualComparisonOperators(t *testing.T) {
	toks := collect(t, `a <= b >= c <> d != e`)
	var kinds []TokenType
	for _, tok := range toks {
		kinds = append(kinds, tok.Type)
	}
	if kinds[1] != TOKEN_LE || kinds[3] != TOKEN_GE {
		t.Errorf("unexpected comparison token kinds: %v", kinds)
	}
	if kinds[5] != TOKEN_NEQ || kinds[7] != TOKEN_NEQ {
		t.Errorf("expected both <> and != to lex as NEQ: %v", kinds)
	}
}
