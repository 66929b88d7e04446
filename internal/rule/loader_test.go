package rule

import (
	"strings"
	"testing"
)

const basicRule = `
id: 11111111-1111-1111-1111-111111111111
title: Suspicious PowerShell Encoded Command
level: high
logsource:
  product: windows
  category: process_creation
detection:
  selection:
    Image|endswith: '\powershell.exe'
    CommandLine|contains: '-enc'
  condition: selection
`

func TestLoadFileParsesBasicRule(t *testing.T) {
	rules, err := LoadFile("basic.yml", []byte(basicRule), DefaultLoaderOptions(), 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if r.Title != "Suspicious PowerShell Encoded Command" {
		t.Fatalf("unexpected title %q", r.Title)
	}
	cond, err := r.Condition()
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if cond != "selection" {
		t.Fatalf("unexpected condition %q", cond)
	}
	if r.SourcePath != "basic.yml" {
		t.Fatalf("expected source path to be recorded")
	}
}

func TestLoadFileMissingConditionSurfacesAtUse(t *testing.T) {
	const noCondition = `
id: 22222222-2222-2222-2222-222222222222
title: broken
detection:
  selection:
    Image: foo.exe
`
	rules, err := LoadFile("broken.yml", []byte(noCondition), DefaultLoaderOptions(), 0)
	if err != nil {
		t.Fatalf("load should succeed (no semantic validation at load time): %v", err)
	}
	if _, err := rules[0].Condition(); err == nil {
		t.Fatalf("expected missing-condition error")
	}
}

func TestLoadFileMultiDocumentSharesSourcePath(t *testing.T) {
	multi := basicRule + "---\n" + strings.Replace(basicRule,
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222", 1)

	rules, err := LoadFile("multi.yml", []byte(multi), DefaultLoaderOptions(), 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules from multi-document file, got %d", len(rules))
	}
	for _, r := range rules {
		if r.SourcePath != "multi.yml" {
			t.Fatalf("expected shared source path, got %q", r.SourcePath)
		}
	}
	if rules[0].ID == rules[1].ID {
		t.Fatalf("expected distinct ids")
	}
}

func TestLoadFileRejectsOversizedFile(t *testing.T) {
	opts := LoaderOptions{MaxFileBytes: 10, MaxIdentifiers: DefaultMaxIdentifiers}
	_, err := LoadFile("big.yml", []byte(basicRule), opts, 0)
	if err == nil {
		t.Fatalf("expected file-too-large error")
	}
	if _, ok := err.(*FileTooLargeError); !ok {
		t.Fatalf("expected *FileTooLargeError, got %T", err)
	}
}

func TestLoadFileRejectsTooManyIdentifiers(t *testing.T) {
	opts := LoaderOptions{MaxFileBytes: DefaultMaxFileBytes, MaxIdentifiers: 1}
	_, err := LoadFile("basic.yml", []byte(basicRule), opts, 1)
	if err == nil {
		t.Fatalf("expected too-many-identifiers error")
	}
	if _, ok := err.(*TooManyIdentifiersError); !ok {
		t.Fatalf("expected *TooManyIdentifiersError, got %T", err)
	}
}
