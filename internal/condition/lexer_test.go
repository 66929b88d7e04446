package condition

import "testing"

func collectKinds(t *testing.T, expr string) []TokenKind {
	t.Helper()
	lx := NewLexer(expr)
	go lx.Run()
	var kinds []TokenKind
	for tok := range lx.Items() {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func TestLexerBasicTokens(t *testing.T) {
	kinds := collectKinds(t, "selection and not filter")
	want := []TokenKind{TokIdentifier, TokAnd, TokNot, TokIdentifier, TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestLexerStatementKeywords(t *testing.T) {
	kinds := collectKinds(t, "all of selection_* or 1 of them")
	want := []TokenKind{TokStmtAllOf, TokIdentifierWildcard, TokOr, TokStmtOneOf, TokIdentifierAll, TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestLexerParentheses(t *testing.T) {
	kinds := collectKinds(t, "(a or b) and c")
	want := []TokenKind{TokLpar, TokIdentifier, TokOr, TokIdentifier, TokRpar, TokAnd, TokIdentifier, TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
}

func TestLexerPipeIsUnsupported(t *testing.T) {
	kinds := collectKinds(t, "selection | count() > 5")
	if len(kinds) == 0 || kinds[len(kinds)-1] != TokUnsupported {
		t.Fatalf("expected trailing UNSUPPORTED token, got %v", kinds)
	}
}

func TestLexerCaseInsensitiveKeywords(t *testing.T) {
	kinds := collectKinds(t, "a AND NOT b OR c")
	want := []TokenKind{TokIdentifier, TokAnd, TokNot, TokIdentifier, TokOr, TokIdentifier, TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
}
