package ruleset

import (
	"testing"

	"sigmaflow/internal/event"
	"sigmaflow/internal/rule"
)

func decode(t *testing.T, payload string) event.Event {
	t.Helper()
	ev, err := event.DecodeJSON([]byte(payload))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

const procCreateRule = `
id: s1
title: Process creation match
level: high
tags: [attack.execution]
detection:
  selection:
    EventID: 1
    Image|endswith: '\cmd.exe'
  condition: selection
`

func TestRulesetLoadAndEvaluateMatch(t *testing.T) {
	rs := New()
	if err := rs.Load("s1.yml", []byte(procCreateRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("expected 1 loaded rule, got %d", rs.Len())
	}

	ev := decode(t, `{"EventID":1,"Image":"C:\\Windows\\System32\\cmd.exe"}`)
	results := rs.Evaluate(ev)
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	if results[0].RuleID != "s1" || !results[0].Matched || !results[0].Applicable {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestRulesetEvaluateNoMatch(t *testing.T) {
	rs := New()
	if err := rs.Load("s1.yml", []byte(procCreateRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("load: %v", err)
	}
	ev := decode(t, `{"EventID":1,"Image":"C:\\Windows\\System32\\notepad.exe"}`)
	if results := rs.Evaluate(ev); len(results) != 0 {
		t.Fatalf("expected no matches, got %d", len(results))
	}
}

func TestRulesetIdempotentLoad(t *testing.T) {
	rs := New()
	if err := rs.Load("s1.yml", []byte(procCreateRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := rs.Load("s1.yml", []byte(procCreateRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("second load: %v", err)
	}

	if rs.Len() != 1 {
		t.Fatalf("expected a single compiled rule by id after reload, got %d", rs.Len())
	}
	stats := rs.Stats()
	if stats.Total != 1 || stats.OK != 1 {
		t.Fatalf("expected load accounting to count one success despite the replace, got %+v", stats)
	}
}

const badConditionRule = `
id: broken
title: t
detection:
  selection:
    EventID: 1
  condition: selection and and
`

func TestRulesetLoadTracksFailures(t *testing.T) {
	rs := New()
	if err := rs.Load("broken.yml", []byte(badConditionRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("Load should tolerate a per-rule failure, got %v", err)
	}
	if rs.Len() != 0 {
		t.Fatalf("expected the broken rule not to install, got %d loaded", rs.Len())
	}
	stats := rs.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected 1 tracked failure, got %+v", stats)
	}
}

const missingFieldRule = `
id: s6
title: Applicability
detection:
  selection:
    NonExistentField: 'x'
  condition: selection
`

func TestRulesetEvaluateInapplicableSelection(t *testing.T) {
	rs := New()
	if err := rs.Load("s6.yml", []byte(missingFieldRule), rule.DefaultLoaderOptions()); err != nil {
		t.Fatalf("load: %v", err)
	}
	ev := decode(t, `{"EventID":1}`)
	if results := rs.Evaluate(ev); len(results) != 0 {
		t.Fatalf("expected no match for an inapplicable selection, got %d", len(results))
	}
}
