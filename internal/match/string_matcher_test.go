package match

import "testing"

func mods(t *testing.T, parts ...string) ModifierSet {
	t.Helper()
	ms, err := NewModifierSet(parts)
	if err != nil {
		t.Fatalf("unexpected modifier error: %v", err)
	}
	return ms
}

func TestStringMatcherDefaultEqualityCaseInsensitive(t *testing.T) {
	sm, err := NewStringMatcher([]string{"SYSTEM"}, mods(t), false)
	if err != nil {
		t.Fatalf("build matcher: %v", err)
	}
	if !sm.Match("system") {
		t.Fatalf("expected case-insensitive equality match")
	}
	if sm.Match("other") {
		t.Fatalf("did not expect match")
	}
}

func TestStringMatcherWhitespaceCollapse(t *testing.T) {
	sm, err := NewStringMatcher([]string{"a  b"}, mods(t), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !sm.Match("a b") {
		t.Fatalf("expected whitespace-collapsed match")
	}

	smPreserve, err := NewStringMatcher([]string{"a  b"}, mods(t), true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if smPreserve.Match("a b") {
		t.Fatalf("expected no match with preserve_whitespace=true")
	}
	if !smPreserve.Match("a  b") {
		t.Fatalf("expected exact match with preserve_whitespace=true")
	}
}

func TestStringMatcherEndsWith(t *testing.T) {
	sm, err := NewStringMatcher([]string{`\cmd.exe`}, mods(t, "endswith"), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !sm.Match(`C:\Windows\System32\cmd.exe`) {
		t.Fatalf("expected endswith match")
	}
}

func TestStringMatcherContainsAll(t *testing.T) {
	sm, err := NewStringMatcher([]string{"powershell", "-enc"}, mods(t, "contains", "all"), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !sm.Match("powershell.exe -enc SGVsbG8=") {
		t.Fatalf("expected conjunction match")
	}
	if sm.Match("powershell.exe -NoProfile") {
		t.Fatalf("expected no match without -enc")
	}
}

func TestStringMatcherGlobListIsOr(t *testing.T) {
	sm, err := NewStringMatcher([]string{"foo*", "bar*"}, mods(t), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !sm.Match("barbaz") {
		t.Fatalf("expected OR match against second glob")
	}
	if sm.Match("qux") {
		t.Fatalf("did not expect match")
	}
}

func TestStringMatcherRegexImplicitDelimiter(t *testing.T) {
	sm, err := NewStringMatcher([]string{"/^abc[0-9]+$/"}, mods(t), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !sm.Match("abc123") {
		t.Fatalf("expected regex match")
	}
	if sm.Match("abcxyz") {
		t.Fatalf("did not expect match")
	}
}

func TestStringMatcherCasedModifier(t *testing.T) {
	sm, err := NewStringMatcher([]string{"System"}, mods(t, "cased"), false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sm.Match("system") {
		t.Fatalf("expected cased matcher to reject case mismatch")
	}
	if !sm.Match("System") {
		t.Fatalf("expected exact-case match")
	}
}

func TestStringMatcherEmptyPatternListIsError(t *testing.T) {
	if _, err := NewStringMatcher(nil, mods(t), false); err == nil {
		t.Fatalf("expected error for empty pattern list")
	}
}
