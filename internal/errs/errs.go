// Package errs defines the structured error taxonomy used across the
// loading and evaluation paths (§7): a fixed set of kinds, each with a
// fixed policy, rather than ad-hoc error strings.
package errs

import (
	"fmt"

	"sigmaflow/internal/condition"
	"sigmaflow/internal/match"
	"sigmaflow/internal/rule"
	"sigmaflow/internal/tree"
)

// Kind enumerates the error taxonomy from §7.
type Kind string

const (
	YamlParse         Kind = "yaml_parse"
	MissingCondition  Kind = "missing_condition"
	Lex               Kind = "lex"
	Parse             Kind = "parse"
	SequenceInvalid   Kind = "sequence_invalid"
	RegexCompile      Kind = "regex_compile"
	PatternInvalid    Kind = "pattern_invalid"
	TooManyTokens     Kind = "too_many_tokens"
	RuleTooLarge      Kind = "rule_too_large"
	RecursionTooDeep  Kind = "recursion_too_deep"
	EventDecode       Kind = "event_decode"
	SinkWrite         Kind = "sink_write"
	EvaluationTimeout Kind = "evaluation_timeout"
	BrokerTransient   Kind = "broker_transient"
	BrokerFatal       Kind = "broker_fatal"
	Unknown           Kind = "unknown"
)

// Error is a structured load/eval failure carrying its cause, the
// location it happened at, and its taxonomy kind (§7 "Propagation").
type Error struct {
	Kind     Kind
	Location string
	Cause    error
}

func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Location, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause as a structured Error of the given kind and location.
func New(kind Kind, location string, cause error) *Error {
	return &Error{Kind: kind, Location: location, Cause: cause}
}

// Classify maps a rule-load or tree-build failure onto its §7 kind. It
// is the single place that knows how the loader/condition/match/tree
// packages' concrete error types correspond to the taxonomy, so callers
// (the ruleset loader, metrics) don't each re-derive it.
func Classify(err error) Kind {
	switch e := err.(type) {
	case *rule.YAMLParseError:
		return YamlParse
	case *rule.MissingConditionError:
		return MissingCondition
	case *rule.FileTooLargeError:
		return RuleTooLarge
	case *rule.TooManyIdentifiersError:
		return TooManyTokens
	case *tree.ConditionError:
		return Classify(e.Err)
	case *tree.IdentifierError:
		return Classify(e.Err)
	case *condition.SequenceError:
		return SequenceInvalid
	case *condition.TooManyTokensError:
		return TooManyTokens
	case *condition.RecursionTooDeepError:
		return RecursionTooDeep
	case *condition.UnsupportedTokenError, *condition.UnexpectedTokenError, *condition.EmptyExpansionError, *condition.UnknownIdentifierError:
		return Parse
	case *match.RegexCompileError:
		return RegexCompile
	case *match.PatternError, *match.UnknownModifierError:
		return PatternInvalid
	default:
		return Unknown
	}
}
