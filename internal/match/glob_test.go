package match

import "testing"

func TestGlobEscapeSemantics(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		want    bool
	}{
		{`\*`, "*", true},
		{`\*`, "a", false},
		{`\\*`, "*", true},
		{`\\\\`, `\`, true},
		{`ab*`, "abcd", true},
		{`ab*`, "ab", true}, // trailing star matches empty suffix too
	}
	for _, c := range cases {
		g := compileGlob(c.pattern)
		got := g.match(c.input)
		if got != c.want {
			t.Errorf("glob %q against %q = %v, want %v", c.pattern, c.input, got, c.want)
		}
	}
}

func TestGlobQuestionMarkMatchesSingleChar(t *testing.T) {
	g := compileGlob("a?c")
	if !g.match("abc") {
		t.Fatalf("expected a?c to match abc")
	}
	if g.match("ac") {
		t.Fatalf("expected a?c to not match ac (? requires exactly one char)")
	}
}

func TestHasWildcardDetection(t *testing.T) {
	if hasWildcard(`\*`) {
		t.Fatalf("escaped star should not be detected as wildcard")
	}
	if !hasWildcard("a*b") {
		t.Fatalf("unescaped star should be detected as wildcard")
	}
}
