package match

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"
	"github.com/coregx/coregex/meta"
)

// regexConfig caps regex compilation and execution cost, the "10 MiB /
// 2 MiB"-style resource limits spec.md §5 calls for. coregex's
// meta.Config exposes exactly this knob set (DFA state cache, NFA
// determinization limit), which is why it was chosen over stdlib
// regexp for the `re` modifier (see DESIGN.md).
func regexConfig() meta.Config {
	cfg := meta.DefaultConfig()
	cfg.MaxDFAStates = 20000      // DFA state cache cap
	cfg.DeterminizationLimit = 4000 // NFA-states-per-DFA-state cap
	cfg.MaxRecursionDepth = 200
	return cfg
}

// RegexCompileError is the PatternInvalid/RegexCompile error kind: a
// rule whose `re` modifier pattern fails to compile is rejected at load
// time (§4.2, §7).
type RegexCompileError struct {
	Pattern string
	Err     error
}

func (e *RegexCompileError) Error() string {
	return fmt.Sprintf("regex compile %q: %v", e.Pattern, e.Err)
}

func (e *RegexCompileError) Unwrap() error { return e.Err }

// extractRegexDelimited strips an implicit `/.../` regex delimiter and
// reports whether one was present (§4.3's implicit-regex convention).
func extractRegexDelimited(pattern string) (string, bool) {
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return pattern[1 : len(pattern)-1], true
	}
	return pattern, false
}

// rejectCatastrophicShape pre-flight rejects a small set of textbook
// catastrophic-backtracking shapes (nested unbounded quantifiers like
// `(a*)*` or `(a+)+`) before handing the pattern to the regex engine, per
// spec.md §9's "pre-flight-reject obvious shapes" guidance. This is a
// heuristic, not a proof; coregex's own O(m·n) guarantee is the hard
// backstop.
func rejectCatastrophicShape(pattern string) error {
	depth := 0
	sawQuantifierAtDepth := make(map[int]bool)
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++ // skip escaped character
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
			// A quantifier immediately following this group's close,
			// when the group itself contained an unbounded quantifier,
			// is the classic (x*)* / (x+)+ shape.
			if i+1 < len(pattern) && (pattern[i+1] == '*' || pattern[i+1] == '+') && sawQuantifierAtDepth[depth+1] {
				return fmt.Errorf("pattern %q has a nested unbounded quantifier", pattern)
			}
			delete(sawQuantifierAtDepth, depth+1)
		case '*', '+':
			sawQuantifierAtDepth[depth] = true
		}
	}
	return nil
}

type regexPredicate struct {
	re *coregex.Regex
}

func compileRegexPredicate(pattern string, cased bool) (*regexPredicate, error) {
	effective := pattern
	if !cased {
		effective = strings.ToLower(effective)
	}
	if err := rejectCatastrophicShape(effective); err != nil {
		return nil, &RegexCompileError{Pattern: pattern, Err: err}
	}
	re, err := coregex.CompileWithConfig(effective, regexConfig())
	if err != nil {
		return nil, &RegexCompileError{Pattern: pattern, Err: err}
	}
	return &regexPredicate{re: re}, nil
}

func (p *regexPredicate) match(s string, cased bool) bool {
	if !cased {
		s = strings.ToLower(s)
	}
	return p.re.MatchString(s)
}
