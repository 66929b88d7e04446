package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sigmaflow/internal/condition"
	"sigmaflow/internal/match"
	"sigmaflow/internal/rule"
)

// Build compiles a loaded rule into a detection tree (§4.6): parse the
// condition, classify and compile each referenced detection identifier
// into a leaf branch, then translate the parsed AST into a Branch tree
// over those leaves.
func Build(r *rule.Rule) (Branch, error) {
	cond, err := r.Condition()
	if err != nil {
		return nil, err
	}

	identifiers := r.Identifiers()
	ast, err := condition.Parse(cond, identifiers)
	if err != nil {
		return nil, &ConditionError{Rule: r.ID, Source: r.SourcePath, Err: err}
	}

	leaves := make(map[string]Branch, len(identifiers))
	for _, name := range identifiers {
		b, err := buildIdentifier(name, r.Detection[name], r.NoCollapseWS)
		if err != nil {
			return nil, &IdentifierError{Rule: r.ID, Source: r.SourcePath, Identifier: name, Err: err}
		}
		leaves[name] = b
	}

	return translate(ast, leaves)
}

func translate(node condition.Node, leaves map[string]Branch) (Branch, error) {
	switch n := node.(type) {
	case condition.Leaf:
		b, ok := leaves[n.Identifier]
		if !ok {
			return nil, &condition.UnknownIdentifierError{Identifier: n.Identifier}
		}
		return b, nil
	case condition.Not:
		child, err := translate(n.Child, leaves)
		if err != nil {
			return nil, err
		}
		return &notBranch{inner: child}, nil
	case condition.And:
		ops, err := translateAll(n.Operands, leaves)
		if err != nil {
			return nil, err
		}
		return &andBranch{operands: ops}, nil
	case condition.Or:
		ops, err := translateAll(n.Operands, leaves)
		if err != nil {
			return nil, err
		}
		return &orBranch{operands: ops}, nil
	default:
		return nil, fmt.Errorf("tree: unhandled AST node %T", node)
	}
}

func translateAll(nodes []condition.Node, leaves map[string]Branch) ([]Branch, error) {
	out := make([]Branch, len(nodes))
	for i, n := range nodes {
		b, err := translate(n, leaves)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// buildIdentifier classifies and compiles one detection-map entry
// (§4.6 step 3): a flat scalar list becomes a Keywords leaf, whose
// values match as case-insensitive substrings of the event's keywords;
// a mapping becomes an AND of per-field Selection leaves. The name
// `keywords` does not select a Keywords leaf by itself: a mapping under
// that name compiles as a selection, and any other non-list value under
// it is rejected.
func buildIdentifier(name string, value interface{}, preserveWS bool) (Branch, error) {
	if list, ok := value.([]interface{}); ok {
		patterns, err := toPatternStrings(list)
		if err != nil {
			return nil, err
		}
		sm, err := match.NewStringMatcher(patterns, match.ModifierSet{match.ModContains: true}, preserveWS)
		if err != nil {
			return nil, err
		}
		return &keywordsBranch{matcher: sm}, nil
	}

	m, ok := value.(map[string]interface{})
	if !ok {
		if name == "keywords" {
			return nil, fmt.Errorf("detection identifier %q: expected a flat list", name)
		}
		return nil, fmt.Errorf("detection identifier %q: unsupported detection value shape %T", name, value)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Branch, 0, len(keys))
	for _, key := range keys {
		fieldName, mods, err := splitFieldKey(key)
		if err != nil {
			return nil, err
		}
		leaf, err := buildFieldLeaf(fieldName, m[key], mods, preserveWS)
		if err != nil {
			return nil, err
		}
		fields = append(fields, leaf)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("detection identifier %q: empty selection", name)
	}
	if len(fields) == 1 {
		return fields[0], nil
	}
	return &andBranch{operands: fields}, nil
}

// splitFieldKey separates a selection key's field path from its
// `|`-separated modifier chain (§4.6 step 3).
func splitFieldKey(key string) (string, match.ModifierSet, error) {
	parts := strings.Split(key, "|")
	fieldName := parts[0]
	mods, err := match.NewModifierSet(parts[1:])
	if err != nil {
		return "", nil, err
	}
	return fieldName, mods, nil
}

// buildFieldLeaf compiles one selection field into a fieldBranch or a
// keywordsBranch (when the `|keyword` modifier redirects it to
// event.Keywords()).
//
// `all` on a multi-value field is NOT threaded into fieldBranch's
// element-wise match (that would require one array element to satisfy
// every pattern at once). Instead it is built structurally here: one
// single-pattern, ANY-element fieldBranch per value, ANDed together, so
// `field|all: [v1, v2]` against an array field requires v1 to match
// some element AND v2 to match some (possibly different) element —
// the conjunction-of-required-values reading Sigma rule authors expect.
func buildFieldLeaf(fieldName string, value interface{}, mods match.ModifierSet, preserveWS bool) (Branch, error) {
	values := normalizeList(value)

	if mods.Has(match.ModKeyword) {
		patterns, err := toPatternStrings(values)
		if err != nil {
			return nil, err
		}
		sm, err := match.NewStringMatcher(patterns, mods, preserveWS)
		if err != nil {
			return nil, err
		}
		return &keywordsBranch{matcher: sm}, nil
	}

	if !mods.Has(match.ModAll) || len(values) <= 1 {
		if hasComparator(mods) {
			numbers, err := toFloats(values)
			if err != nil {
				return nil, err
			}
			nm, err := match.NewNumberMatcher(numbers, mods)
			if err != nil {
				return nil, err
			}
			return &fieldBranch{path: fieldName, num: nm}, nil
		}
		patterns, err := toPatternStrings(values)
		if err != nil {
			return nil, err
		}
		sm, err := match.NewStringMatcher(patterns, mods, preserveWS)
		if err != nil {
			return nil, err
		}
		return &fieldBranch{path: fieldName, str: sm}, nil
	}

	branches := make([]Branch, 0, len(values))
	if hasComparator(mods) {
		numbers, err := toFloats(values)
		if err != nil {
			return nil, err
		}
		for _, n := range numbers {
			nm, err := match.NewNumberMatcher([]float64{n}, mods)
			if err != nil {
				return nil, err
			}
			branches = append(branches, &fieldBranch{path: fieldName, num: nm})
		}
	} else {
		patterns, err := toPatternStrings(values)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			sm, err := match.NewStringMatcher([]string{p}, mods, preserveWS)
			if err != nil {
				return nil, err
			}
			branches = append(branches, &fieldBranch{path: fieldName, str: sm})
		}
	}
	return &andBranch{operands: branches}, nil
}

func hasComparator(mods match.ModifierSet) bool {
	return mods.Has(match.ModGt) || mods.Has(match.ModGte) || mods.Has(match.ModLt) || mods.Has(match.ModLte)
}

func normalizeList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// toPatternStrings renders YAML scalars the way a Sigma string match
// compares against them: numbers and booleans get their canonical
// textual form (§4.1), mirroring event.Value.AsString's coercion so a
// rule's `EventID: 4688` and an event's numeric `EventID` field line up.
func toPatternStrings(values []interface{}) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, err := scalarToPatternString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scalarToPatternString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("null detection value is not a valid pattern")
	default:
		return "", fmt.Errorf("unsupported detection scalar type %T", v)
	}
}

func toFloats(values []interface{}) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case int:
			out = append(out, float64(t))
		case int64:
			out = append(out, float64(t))
		case uint64:
			out = append(out, float64(t))
		case float64:
			out = append(out, t)
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, fmt.Errorf("comparator modifier requires a numeric value, got %q", t)
			}
			out = append(out, f)
		default:
			return nil, fmt.Errorf("comparator modifier requires a numeric value, got %T", v)
		}
	}
	return out, nil
}
