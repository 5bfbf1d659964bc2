package standardize

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed reify_rules.yaml
var defaultRulesYAML []byte

// ReifyRule expresses Relation as a Concept node with two role edges
type ReifyRule struct {
	Relations  []string `yaml:"relations"`
	Concept    string   `yaml:"concept"`
	SourceRole string   `yaml:"source"`
	TargetRole string   `yaml:"target"`
}

// RuleTable indexes reification rules by relation and by concept. When
// several rules share a relation or a concept the first one wins.
type RuleTable struct {
	byRelation map[string]ReifyRule
	byConcept  map[string]ReifyRule
	relations  []string
}

type ruleFile struct {
	Reify []ReifyRule `yaml:"reify"`
}

// LoadRules parses a YAML rule table. Labels are lower-cased.
func LoadRules(data []byte) (*RuleTable, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse reification rules: %w", err)
	}

	rt := &RuleTable{
		byRelation: make(map[string]ReifyRule),
		byConcept:  make(map[string]ReifyRule),
	}
	for n, r := range f.Reify {
		if len(r.Relations) == 0 || r.Concept == "" || r.SourceRole == "" || r.TargetRole == "" {
			return nil, fmt.Errorf("reification rule %d is incomplete", n)
		}
		r.Concept = strings.ToLower(r.Concept)
		r.SourceRole = strings.ToLower(r.SourceRole)
		r.TargetRole = strings.ToLower(r.TargetRole)
		for i, rel := range r.Relations {
			r.Relations[i] = strings.ToLower(rel)
		}
		for _, rel := range r.Relations {
			if _, ok := rt.byRelation[rel]; !ok {
				rt.byRelation[rel] = r
				rt.relations = append(rt.relations, rel)
			}
		}
		if _, ok := rt.byConcept[r.Concept]; !ok {
			rt.byConcept[r.Concept] = r
		}
	}
	return rt, nil
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleTable
	defaultRulesErr  error
)

// DefaultRules returns the built-in AMR reification table
func DefaultRules() (*RuleTable, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = LoadRules(defaultRulesYAML)
	})
	return defaultRules, defaultRulesErr
}

// ForRelation returns the rule that reifies rel
func (rt *RuleTable) ForRelation(rel string) (ReifyRule, bool) {
	r, ok := rt.byRelation[rel]
	return r, ok
}

// ForConcept returns the rule that a node with this concept can be collapsed by
func (rt *RuleTable) ForConcept(concept string) (ReifyRule, bool) {
	r, ok := rt.byConcept[concept]
	return r, ok
}

// Relations lists the reifiable relations in table order
func (rt *RuleTable) Relations() []string {
	return append([]string(nil), rt.relations...)
}
