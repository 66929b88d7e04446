package match

// compareOp is one of the gt/gte/lt/lte comparator modifiers.
type compareOp int

const (
	cmpNone compareOp = iota
	cmpGt
	cmpGte
	cmpLt
	cmpLte
)

func compareOpFromModifier(mod Modifier) compareOp {
	switch mod {
	case ModGt:
		return cmpGt
	case ModGte:
		return cmpGte
	case ModLt:
		return cmpLt
	case ModLte:
		return cmpLte
	default:
		return cmpNone
	}
}

// NumberMatcher implements §4.2's numeric matcher: one-of semantics over
// a list of integer/float candidates, or a comparator family
// (gt/gte/lt/lte) when the modifier chain names one.
type NumberMatcher struct {
	op        compareOp
	thresholds []float64
	oneOf      []float64
	all        bool
}

// NewNumberMatcher builds a NumberMatcher from a list of numeric values
// (already split from the selection value and parsed) and the field's
// modifier chain.
func NewNumberMatcher(values []float64, mods ModifierSet) (*NumberMatcher, error) {
	if len(values) == 0 {
		return nil, ErrEmptyPatternList
	}
	nm := &NumberMatcher{all: mods.Has(ModAll)}
	if op, ok := mods.comparator(); ok {
		nm.op = compareOpFromModifier(op)
		nm.thresholds = values
		return nm, nil
	}
	nm.oneOf = values
	return nm, nil
}

// Match reports whether v satisfies the matcher.
func (nm *NumberMatcher) Match(v float64) bool {
	if nm.op != cmpNone {
		if nm.all {
			for _, t := range nm.thresholds {
				if !compareMatches(nm.op, v, t) {
					return false
				}
			}
			return len(nm.thresholds) > 0
		}
		for _, t := range nm.thresholds {
			if compareMatches(nm.op, v, t) {
				return true
			}
		}
		return false
	}

	if nm.all {
		for _, t := range nm.oneOf {
			if v != t {
				return false
			}
		}
		return len(nm.oneOf) > 0
	}
	for _, t := range nm.oneOf {
		if v == t {
			return true
		}
	}
	return false
}

func compareMatches(op compareOp, v, threshold float64) bool {
	switch op {
	case cmpGt:
		return v > threshold
	case cmpGte:
		return v >= threshold
	case cmpLt:
		return v < threshold
	case cmpLte:
		return v <= threshold
	default:
		return false
	}
}
