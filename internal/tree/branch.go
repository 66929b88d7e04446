package tree

import (
	"sigmaflow/internal/event"
	"sigmaflow/internal/match"
)

// Branch is one node of a compiled detection tree (§3, §4.6). Built once
// at rule-load time and evaluated read-only, concurrently, against many
// events.
type Branch interface {
	// Evaluate reports (matched, applicable): applicable is false only
	// when a leaf's referenced field was absent from the event.
	Evaluate(ev event.Event) (matched, applicable bool)
}

// notBranch negates its inner branch's matched verdict; applicability
// passes through unchanged (§3).
type notBranch struct {
	inner Branch
}

func (b *notBranch) Evaluate(ev event.Event) (bool, bool) {
	matched, applicable := b.inner.Evaluate(ev)
	return !matched, applicable
}

// andBranch short-circuits on the first non-matching operand. Its
// applicability is the logical AND of every operand visited before the
// short-circuit (§3's "AND propagates applicability by logical AND"),
// see DESIGN.md for the short-circuit/applicability tradeoff.
type andBranch struct {
	operands []Branch
}

func (b *andBranch) Evaluate(ev event.Event) (bool, bool) {
	applicable := true
	for _, op := range b.operands {
		m, a := op.Evaluate(ev)
		applicable = applicable && a
		if !m {
			return false, applicable
		}
	}
	return true, applicable
}

// orBranch short-circuits on the first matching operand. Applicability
// is the logical OR of every operand visited (§3).
type orBranch struct {
	operands []Branch
}

func (b *orBranch) Evaluate(ev event.Event) (bool, bool) {
	applicable := false
	for _, op := range b.operands {
		m, a := op.Evaluate(ev)
		applicable = applicable || a
		if m {
			return true, applicable
		}
	}
	return false, applicable
}

// fieldBranch is a Selection leaf: one `field[|modifiers]` entry from a
// selection mapping, or one value of an `|all`-expanded entry (§4.6
// step 4; see DESIGN.md for why `all` conjunction is built structurally
// in the builder rather than threaded through this leaf). Exactly one
// of str/num is set. Array-valued fields match element-wise: matched
// succeeds if ANY element satisfies the predicate (§4.1).
type fieldBranch struct {
	path string
	str  *match.StringMatcher
	num  *match.NumberMatcher
}

func (b *fieldBranch) Evaluate(ev event.Event) (bool, bool) {
	val, present := ev.Select(b.path)
	if !present {
		return false, false
	}
	elems := val.Elements()
	if len(elems) == 0 {
		return false, true
	}
	for _, e := range elems {
		if b.matchElem(e) {
			return true, true
		}
	}
	return false, true
}

func (b *fieldBranch) matchElem(v event.Value) bool {
	if b.num != nil {
		f, ok := v.AsFloat()
		if !ok {
			return false
		}
		return b.num.Match(f)
	}
	s, ok := v.AsString()
	if !ok {
		return false
	}
	return b.str.Match(s)
}

// keywordsBranch is a Keywords leaf: matched against event.Keywords()
// rather than a field path.
type keywordsBranch struct {
	matcher *match.StringMatcher
}

func (b *keywordsBranch) Evaluate(ev event.Event) (bool, bool) {
	kws, meaningful := ev.Keywords()
	if !meaningful {
		return false, false
	}
	for _, k := range kws {
		if b.matcher.Match(k) {
			return true, true
		}
	}
	return false, true
}
