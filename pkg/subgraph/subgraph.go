// Package subgraph cuts a graph into named aspect subgraphs (negation,
// location, time, ...) so that each aspect can be scored on its own.
package subgraph

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-match-service/pkg/models"
	"github.com/gilchrisn/graph-match-service/pkg/standardize"
)

//go:embed aspects.yaml
var defaultAspectsYAML []byte

// Names of the subgraphs that are not defined by the aspect table
const (
	Main         = "main"
	MainNoWiki   = "main without wiki"
	Wiki         = "wiki"
	Instances    = "INSTANCES"
	Predicates   = "PREDICATES"
	Reentrancies = "REENTRANCIES"
	wikiRelation = ":wiki"
)

var senseTag = regexp.MustCompile(`-[0-9]+`)

// Aspect describes how one aspect subgraph is collected
type Aspect struct {
	Name         string   `yaml:"name"`
	Relations    []string `yaml:"relations"`
	ConceptGroup string   `yaml:"concept_group"`
	Depth        int      `yaml:"depth"`
}

type aspectFile struct {
	Aspects       []Aspect            `yaml:"aspects"`
	ConceptGroups map[string][]string `yaml:"concept_groups"`
}

// Named is one extracted subgraph
type Named struct {
	Name  string
	Graph models.Graph
}

// Extractor produces the aspect subgraphs of a graph
type Extractor struct {
	aspects []Aspect
	groups  map[string]map[string]bool
	rules   *standardize.RuleTable

	// AddInstances attaches the instance triple of every variable a subgraph touches
	AddInstances bool
	// AddPredicates attaches the single predicate edge that governs a touched node
	AddPredicates bool
}

// NewExtractor loads the built-in aspect table
func NewExtractor() (*Extractor, error) {
	return Load(defaultAspectsYAML)
}

// Load builds an extractor from a YAML aspect table
func Load(data []byte) (*Extractor, error) {
	var f aspectFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse aspect table: %w", err)
	}
	rules, err := standardize.DefaultRules()
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		aspects:       f.Aspects,
		groups:        make(map[string]map[string]bool, len(f.ConceptGroups)),
		rules:         rules,
		AddInstances:  true,
		AddPredicates: true,
	}
	seen := make(map[string]bool)
	for _, a := range f.Aspects {
		if a.Name == "" {
			return nil, errors.New("aspect without name")
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate aspect %q", a.Name)
		}
		seen[a.Name] = true
		if a.ConceptGroup != "" {
			if _, ok := f.ConceptGroups[a.ConceptGroup]; !ok {
				return nil, fmt.Errorf("aspect %q refers to unknown concept group %q", a.Name, a.ConceptGroup)
			}
		}
	}
	for name, aliases := range f.ConceptGroups {
		set := make(map[string]bool, len(aliases))
		for _, c := range aliases {
			set[c] = true
		}
		e.groups[name] = set
	}
	return e, nil
}

// Names lists the subgraph names in extraction order
func (e *Extractor) Names() []string {
	names := []string{Main, MainNoWiki, Wiki}
	for _, a := range e.aspects {
		names = append(names, a.Name)
	}
	return append(names, Instances, Predicates, Reentrancies)
}

// Extract returns every subgraph of g in the order of Names
func (e *Extractor) Extract(g models.Graph) []Named {
	noWiki := filter(g, func(t models.Triple) bool { return t.Relation != wikiRelation })
	wiki := filter(g, func(t models.Triple) bool { return t.Relation == wikiRelation })

	out := []Named{
		{Main, g.Clone()},
		{MainNoWiki, noWiki},
		{Wiki, e.withInstances(wiki, g)},
	}

	for _, a := range e.aspects {
		sg := e.collect(a, noWiki)
		sg = expand(sg, noWiki, a.Depth)
		out = append(out, Named{a.Name, e.extend(sg, noWiki)})
	}

	out = append(out,
		Named{Instances, filter(noWiki, models.Triple.IsInstance)},
		Named{Predicates, filter(noWiki, func(t models.Triple) bool {
			return t.IsInstance() && senseTag.MatchString(t.Target)
		})},
		Named{Reentrancies, e.extend(reentrancies(noWiki), noWiki)},
	)
	return out
}

// collect gathers the edges of one aspect: its relations, everything around
// nodes of its concept group, and the role edges of reified relation nodes
func (e *Extractor) collect(a Aspect, g models.Graph) models.Graph {
	rels := make(map[string]bool, len(a.Relations))
	for _, r := range a.Relations {
		rels[r] = true
	}
	sg := filter(g, func(t models.Triple) bool { return rels[t.Relation] })

	if group, ok := e.groups[a.ConceptGroup]; ok {
		nodes := make(map[string]bool)
		for _, t := range g {
			if group[t.Target] {
				nodes[t.Source] = true
			}
		}
		sg = append(sg, filter(g, func(t models.Triple) bool { return nodes[t.Source] || nodes[t.Target] })...)
	}

	for _, rel := range a.Relations {
		rule, ok := e.rules.ForRelation(rel)
		if !ok {
			continue
		}
		reified := make(map[string]bool)
		for _, t := range g {
			if t.IsInstance() && t.Target == rule.Concept {
				reified[t.Source] = true
			}
		}
		sg = append(sg, filter(g, func(t models.Triple) bool {
			return !t.IsInstance() && (reified[t.Source] || reified[t.Target])
		})...)
	}
	return sg
}

// extend adds governing predicates and instance triples, then drops duplicates
func (e *Extractor) extend(sg, all models.Graph) models.Graph {
	if e.AddPredicates {
		sg = append(sg, predicates(sg, all)...)
	}
	sg = e.withInstances(sg, all)
	return standardize.RemoveDuplicates(sg)
}

func (e *Extractor) withInstances(sg, all models.Graph) models.Graph {
	if !e.AddInstances {
		return sg
	}
	concepts := all.VarConcepts()
	added := make(map[string]bool)
	out := sg.Clone()
	for _, t := range sg {
		for _, n := range []string{t.Source, t.Target} {
			if c, ok := concepts[n]; ok && !added[n] {
				added[n] = true
				out = append(out, models.NewTriple(n, models.InstanceRelation, c))
			}
		}
	}
	return standardize.RemoveDuplicates(out)
}

// expand follows outgoing edges from the collected targets for depth levels
func expand(sg, all models.Graph, depth int) models.Graph {
	in := make(map[models.Triple]bool, len(sg))
	for _, t := range sg {
		in[t] = true
	}
	out := sg.Clone()
	for level := 0; level < depth; level++ {
		var next models.Graph
		for _, t := range out {
			for _, u := range all {
				if u.IsInstance() || in[u] || u.Source != t.Target {
					continue
				}
				in[u] = true
				next = append(next, u)
			}
		}
		if len(next) == 0 {
			break
		}
		out = append(out, next...)
	}
	return out
}

// predicates returns, for every node of sg, the incoming edges whose source
// is a top-level node with a single outgoing edge
func predicates(sg, all models.Graph) models.Graph {
	edges := filter(all, func(t models.Triple) bool { return !t.IsInstance() })
	var out models.Graph
	for _, t := range sg {
		for _, node := range []string{t.Source, t.Target} {
			for _, u := range edges {
				if u.Target == node && edges.Incoming(u.Source) == 0 && edges.Outgoing(u.Source) == 1 {
					out = append(out, u)
				}
			}
		}
	}
	return out
}

// reentrancies returns the edges into variables that have several parents
func reentrancies(g models.Graph) models.Graph {
	concepts := g.VarConcepts()
	parents := make(map[string]int)
	for _, t := range g {
		if _, ok := concepts[t.Target]; ok {
			parents[t.Target]++
		}
	}
	return filter(g, func(t models.Triple) bool {
		return !t.IsInstance() && parents[t.Target] > 1
	})
}

func filter(g models.Graph, keep func(models.Triple) bool) models.Graph {
	out := models.Graph{}
	for _, t := range g {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
