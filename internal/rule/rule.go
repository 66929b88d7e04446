package rule

import "sort"

// Logsource narrows a rule to a product/category/service combination
// (§1 glossary). Every field is optional.
type Logsource struct {
	Product  string `yaml:"product"`
	Category string `yaml:"category"`
	Service  string `yaml:"service"`
}

// Rule is the parsed form of one Sigma YAML document (§1 glossary, §4.5).
type Rule struct {
	ID          string                 `yaml:"id"`
	Title       string                 `yaml:"title"`
	Description string                 `yaml:"description"`
	Author      string                 `yaml:"author"`
	Level       string                 `yaml:"level"`
	Status      string                 `yaml:"status"`
	Tags        []string               `yaml:"tags"`
	References  []string               `yaml:"references"`
	Logsource   Logsource              `yaml:"logsource"`
	Detection   map[string]interface{} `yaml:"detection"`

	// NoCollapseWS is set from the rule-level `no_collapse_ws` marker
	// and propagated to every string matcher the tree builder
	// instantiates for this rule (§4.6).
	NoCollapseWS bool `yaml:"no_collapse_ws"`

	// SourcePath is the file this rule (or, for a multi-document file,
	// this part of it) was loaded from. Not part of the YAML document.
	SourcePath string `yaml:"-"`
}

// Condition returns the rule's `condition:` expression.
func (r *Rule) Condition() (string, error) {
	v, ok := r.Detection["condition"]
	if !ok {
		return "", &MissingConditionError{Rule: r.ID, Source: r.SourcePath}
	}
	s, ok := v.(string)
	if !ok {
		return "", &MissingConditionError{Rule: r.ID, Source: r.SourcePath}
	}
	return s, nil
}

// Identifiers returns every detection-map key other than `condition`,
// sorted by name (§4.4's `them`/glob expansion needs a deterministic
// list).
func (r *Rule) Identifiers() []string {
	names := make([]string, 0, len(r.Detection))
	for k := range r.Detection {
		if k == "condition" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MissingConditionError is the rule-load error for a detection map with
// no (or a non-string) `condition` key (§4.5).
type MissingConditionError struct {
	Rule   string
	Source string
}

func (e *MissingConditionError) Error() string {
	return "rule " + e.Rule + " (" + e.Source + "): missing detection.condition"
}
