package match

import "strings"

// globTokenKind tags one element of a compiled glob pattern.
type globTokenKind int

const (
	globLiteral globTokenKind = iota
	globStar           // matches any run of characters, including empty
	globQuestion       // matches exactly one character
)

type globToken struct {
	kind globTokenKind
	lit  string
}

// glob is a compiled shell-style pattern: `*`/`?` wildcards, with `[` and
// `]` always literal (Sigma does not treat them as a character class,
// §4.2) and the backslash-escape table below applied bit-exactly.
type glob struct {
	tokens  []globToken
	literal bool // true when the whole pattern compiled to a single literal run
}

// compileGlob parses pattern into a sequence of literal runs and
// wildcard tokens, applying Sigma's escape table in priority order:
//
//	\\\\         -> literal \
//	\\*          -> literal *
//	\\?          -> literal ?
//	\*           -> literal *
//	\?           -> literal ?
//	\<anything>  -> literal \ (the trailing-backslash-is-literal rule);
//	                <anything> is then processed normally
//
// This is verified bit-exact against spec.md §8 test property 7.
func compileGlob(pattern string) glob {
	var tokens []globToken
	var lit strings.Builder

	flushLit := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, globToken{kind: globLiteral, lit: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	n := len(pattern)
	for i < n {
		c := pattern[i]
		switch {
		case c == '\\':
			switch {
			case i+3 < n && pattern[i+1] == '\\' && pattern[i+2] == '\\' && pattern[i+3] == '\\':
				lit.WriteByte('\\')
				i += 4
			case i+2 < n && pattern[i+1] == '\\' && pattern[i+2] == '*':
				lit.WriteByte('*')
				i += 3
			case i+2 < n && pattern[i+1] == '\\' && pattern[i+2] == '?':
				lit.WriteByte('?')
				i += 3
			case i+1 < n && pattern[i+1] == '*':
				lit.WriteByte('*')
				i += 2
			case i+1 < n && pattern[i+1] == '?':
				lit.WriteByte('?')
				i += 2
			default:
				lit.WriteByte('\\')
				i++
			}
		case c == '*':
			flushLit()
			tokens = append(tokens, globToken{kind: globStar})
			i++
		case c == '?':
			flushLit()
			tokens = append(tokens, globToken{kind: globQuestion})
			i++
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flushLit()

	literal := true
	for _, t := range tokens {
		if t.kind != globLiteral {
			literal = false
			break
		}
	}
	return glob{tokens: tokens, literal: literal}
}

// hasWildcard reports whether pattern contains an unescaped `*` or `?`,
// the test used to decide whether a value should be treated as a glob
// rather than a plain literal (§4.2).
func hasWildcard(pattern string) bool {
	g := compileGlob(pattern)
	return !g.literal
}

// MatchIdentifierGlob applies Sigma's glob escape table to match a
// detection-map identifier name against a `all of <glob>` / `1 of <glob>`
// condition statement pattern (§4.4).
func MatchIdentifierGlob(pattern, identifier string) bool {
	return compileGlob(pattern).match(identifier)
}

// match reports whether s satisfies the compiled glob pattern, in full
// (anchored at both ends, like filepath.Match).
func (g glob) match(s string) bool {
	return globMatch(g.tokens, s)
}

// literalValue returns the fully-literal string g compiles to, valid
// only when g.literal is true.
func (g glob) literalValue() string {
	var b strings.Builder
	for _, t := range g.tokens {
		b.WriteString(t.lit)
	}
	return b.String()
}

// globMatch is a classic two-pointer wildcard matcher with backtracking
// on `*`, operating over compiled tokens rather than raw characters so
// that `?` always consumes exactly one rune.
func globMatch(tokens []globToken, s string) bool {
	runes := []rune(s)
	return globMatchRunes(tokens, 0, runes, 0)
}

func globMatchRunes(tokens []globToken, ti int, s []rune, si int) bool {
	for ti < len(tokens) {
		tok := tokens[ti]
		switch tok.kind {
		case globLiteral:
			litRunes := []rune(tok.lit)
			if si+len(litRunes) > len(s) {
				return false
			}
			for k, r := range litRunes {
				if s[si+k] != r {
					return false
				}
			}
			si += len(litRunes)
			ti++
		case globQuestion:
			if si >= len(s) {
				return false
			}
			si++
			ti++
		case globStar:
			// Try every possible consumption length for the star,
			// shortest first; recurse on the remaining tokens.
			for k := si; k <= len(s); k++ {
				if globMatchRunes(tokens, ti+1, s, k) {
					return true
				}
			}
			return false
		}
	}
	return si == len(s)
}
