package match

import (
	"strings"
)

// stringPredicate is one compiled alternative of a StringMatcher.
type stringPredicate interface {
	match(candidate string) bool
}

// StringMatcher encodes the leaf string-predicate semantics of §4.2:
// literal/prefix/suffix/contains/glob/regex over strings, selected per
// field modifier chain. Predicates are tried in increasing cost order
// (literal, then glob, then regex); NewStringMatcher sorts them so.
type StringMatcher struct {
	predicates []stringPredicate
	groups     [][]stringPredicate // per raw pattern, its encoding variants
	all        bool                // conjunction instead of disjunction across raw patterns
	cased      bool
	collapseWS bool // collapse whitespace runs (default mode only)
}

// NewStringMatcher builds a StringMatcher from a pattern list and a
// modifier chain. preserveWhitespace is the rule-level flag (or
// `no_collapse_ws`) from §4.2; it only affects the default
// (no-modifier, no-metacharacter) comparison mode.
func NewStringMatcher(patterns []string, mods ModifierSet, preserveWhitespace bool) (*StringMatcher, error) {
	if len(patterns) == 0 {
		return nil, ErrEmptyPatternList
	}

	cased := mods.Has(ModCased)
	sm := &StringMatcher{
		all:        mods.Has(ModAll),
		cased:      cased,
		collapseWS: !preserveWhitespace,
	}

	for _, raw := range patterns {
		var group []stringPredicate
		for _, candidate := range applyEncodingModifiers(raw, mods) {
			pred, err := buildStringPredicate(candidate, mods, cased, sm.collapseWS)
			if err != nil {
				return nil, err
			}
			sm.predicates = append(sm.predicates, pred)
			group = append(group, pred)
		}
		sm.groups = append(sm.groups, group)
	}

	// Ordering-sensitive for performance: literal predicates before
	// globs before regex (§4.2). buildStringPredicate already returns
	// the cheapest shape for each pattern; stable-sort preserves input
	// order within each cost tier.
	sortPredicatesByCost(sm.predicates)

	return sm, nil
}

// ErrEmptyPatternList is the rule-load error for a selection value that
// normalizes to zero patterns (§4.2).
var ErrEmptyPatternList = &PatternError{Msg: "empty pattern list after normalization"}

// PatternError is PatternInvalid (§7).
type PatternError struct{ Msg string }

func (e *PatternError) Error() string { return e.Msg }

func buildStringPredicate(pattern string, mods ModifierSet, cased, collapseWS bool) (stringPredicate, error) {
	if inner, explicit := extractRegexDelimited(pattern); explicit || mods.Has(ModRe) {
		re, err := compileRegexPredicate(inner, cased)
		if err != nil {
			return nil, err
		}
		return &regexCostPredicate{regexPredicate: re, cased: cased}, nil
	}

	switch {
	case mods.Has(ModContains):
		return &containsPredicate{needle: fold(pattern, cased)}, nil
	case mods.Has(ModStartsWith):
		return &prefixPredicate{needle: fold(pattern, cased)}, nil
	case mods.Has(ModEndsWith):
		return &suffixPredicate{needle: fold(pattern, cased)}, nil
	case hasWildcard(pattern):
		g := compileGlob(fold(pattern, cased))
		return &globPredicate{g: g}, nil
	default:
		normalized := compileGlob(pattern).literalValue()
		if collapseWS {
			normalized = collapseWhitespace(normalized)
		}
		return &literalPredicate{value: fold(normalized, cased), collapseWS: collapseWS}, nil
	}
}

func fold(s string, cased bool) string {
	if cased {
		return s
	}
	return strings.ToLower(s)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

type literalPredicate struct {
	value      string
	collapseWS bool
}

func (p *literalPredicate) match(candidate string) bool {
	if p.collapseWS {
		candidate = collapseWhitespace(candidate)
	}
	return candidate == p.value
}

type containsPredicate struct{ needle string }

func (p *containsPredicate) match(candidate string) bool {
	return strings.Contains(candidate, p.needle)
}

type prefixPredicate struct{ needle string }

func (p *prefixPredicate) match(candidate string) bool {
	return strings.HasPrefix(candidate, p.needle)
}

type suffixPredicate struct{ needle string }

func (p *suffixPredicate) match(candidate string) bool {
	return strings.HasSuffix(candidate, p.needle)
}

type globPredicate struct{ g glob }

func (p *globPredicate) match(candidate string) bool {
	return p.g.match(candidate)
}

// regexCostPredicate wraps regexPredicate so it participates in cost
// ordering as the most expensive tier.
type regexCostPredicate struct {
	*regexPredicate
	cased bool
}

func (p *regexCostPredicate) match(candidate string) bool {
	return p.regexPredicate.match(candidate, p.cased)
}

func predicateCost(p stringPredicate) int {
	switch p.(type) {
	case *literalPredicate, *containsPredicate, *prefixPredicate, *suffixPredicate:
		return 0
	case *globPredicate:
		return 1
	case *regexCostPredicate:
		return 2
	default:
		return 3
	}
}

func sortPredicatesByCost(preds []stringPredicate) {
	// Stable insertion sort: predicate lists are short (one per rule
	// field), and this preserves input order within a cost tier.
	for i := 1; i < len(preds); i++ {
		for j := i; j > 0 && predicateCost(preds[j-1]) > predicateCost(preds[j]); j-- {
			preds[j-1], preds[j] = preds[j], preds[j-1]
		}
	}
}

// caseFoldCandidate applies the same fold StringMatcher applied to its
// patterns, so literal/contains/prefix/suffix/glob candidates compare
// like-for-like. Regex predicates fold internally.
func (sm *StringMatcher) caseFoldCandidate(candidate string) string {
	return fold(candidate, sm.cased)
}

// Match reports whether candidate satisfies the matcher: logical OR
// across predicates unless the `all` modifier selected AND across the
// raw patterns, each pattern's encoding variants still OR'd (§4.2).
func (sm *StringMatcher) Match(candidate string) bool {
	folded := sm.caseFoldCandidate(candidate)
	if sm.all {
		for _, group := range sm.groups {
			hit := false
			for _, p := range group {
				if matchPredicate(p, candidate, folded) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
		return len(sm.groups) > 0
	}
	for _, p := range sm.predicates {
		if matchPredicate(p, candidate, folded) {
			return true
		}
	}
	return false
}

// matchPredicate feeds regex predicates the raw candidate (they fold
// internally with their own cased flag) and every other predicate kind
// the pre-folded candidate.
func matchPredicate(p stringPredicate, raw, folded string) bool {
	if _, ok := p.(*regexCostPredicate); ok {
		return p.match(raw)
	}
	return p.match(folded)
}
