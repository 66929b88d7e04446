package match

// Modifier is one element of a Sigma field modifier chain (the
// `|`-separated suffix on a detection field name).
type Modifier string

const (
	ModContains     Modifier = "contains"
	ModStartsWith   Modifier = "startswith"
	ModEndsWith     Modifier = "endswith"
	ModRe           Modifier = "re"
	ModAll          Modifier = "all"
	ModKeyword      Modifier = "keyword"
	ModBase64       Modifier = "base64"
	ModBase64Offset Modifier = "base64offset"
	ModWide         Modifier = "wide"
	ModUTF16        Modifier = "utf16"
	ModWindash      Modifier = "windash"
	ModCased        Modifier = "cased"
	ModIgnoreCase   Modifier = "ignorecase"
	ModGt           Modifier = "gt"
	ModGte          Modifier = "gte"
	ModLt           Modifier = "lt"
	ModLte          Modifier = "lte"
)

// ModifierSet is the parsed form of a field's `|`-separated modifier
// chain, e.g. `Image|endswith`.
type ModifierSet map[Modifier]bool

// Has reports whether m contains the given modifier.
func (m ModifierSet) Has(mod Modifier) bool { return m[mod] }

// comparator identifies which of gt/gte/lt/lte (if any) is set.
func (m ModifierSet) comparator() (Modifier, bool) {
	for _, c := range []Modifier{ModGt, ModGte, ModLt, ModLte} {
		if m[c] {
			return c, true
		}
	}
	return "", false
}

// NewModifierSet parses a `|`-separated modifier chain (without the
// leading field name) into a ModifierSet, validating that every token is
// a recognized modifier.
func NewModifierSet(parts []string) (ModifierSet, error) {
	set := make(ModifierSet, len(parts))
	for _, p := range parts {
		mod := Modifier(p)
		switch mod {
		case ModContains, ModStartsWith, ModEndsWith, ModRe, ModAll, ModKeyword,
			ModBase64, ModBase64Offset, ModWide, ModUTF16, ModWindash,
			ModCased, ModIgnoreCase, ModGt, ModGte, ModLt, ModLte:
			set[mod] = true
		default:
			return nil, &UnknownModifierError{Modifier: p}
		}
	}
	return set, nil
}

// UnknownModifierError is returned when a modifier chain names a
// modifier outside the recognized set (§4.2).
type UnknownModifierError struct {
	Modifier string
}

func (e *UnknownModifierError) Error() string {
	return "unknown sigma field modifier: " + e.Modifier
}
