package match

import "testing"

func TestNumberMatcherOneOf(t *testing.T) {
	nm, err := NewNumberMatcher([]float64{443, 8443}, mods(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !nm.Match(443) {
		t.Fatalf("expected 443 to match")
	}
	if nm.Match(80) {
		t.Fatalf("did not expect 80 to match")
	}
}

func TestNumberMatcherGte(t *testing.T) {
	nm, err := NewNumberMatcher([]float64{1000}, mods(t, "gte"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !nm.Match(1000) {
		t.Fatalf("expected 1000 >= 1000")
	}
	if nm.Match(999) {
		t.Fatalf("did not expect 999 >= 1000")
	}
}

func TestNumberMatcherLt(t *testing.T) {
	nm, err := NewNumberMatcher([]float64{10}, mods(t, "lt"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !nm.Match(9) {
		t.Fatalf("expected 9 < 10")
	}
	if nm.Match(10) {
		t.Fatalf("did not expect 10 < 10")
	}
}

func TestNumberMatcherAllConjunction(t *testing.T) {
	nm, err := NewNumberMatcher([]float64{1, 2}, mods(t, "all"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if nm.Match(1) {
		t.Fatalf("all-of-list over a single scalar value should never match two distinct thresholds")
	}
}

func TestNumberMatcherEmptyValuesIsError(t *testing.T) {
	if _, err := NewNumberMatcher(nil, mods(t)); err == nil {
		t.Fatalf("expected error for empty value list")
	}
}
