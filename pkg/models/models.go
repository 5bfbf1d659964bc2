package models

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved relation labels
const (
	InstanceRelation = ":instance"
	RootRelation     = ":root"
	RootSource       = "ROOT_OF_GRAPH"
)

// Triple is a (source, relation, target) edge of a meaning representation graph
type Triple struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// NewTriple is a small constructor used all over the tests
func NewTriple(source, relation, target string) Triple {
	return Triple{Source: source, Relation: relation, Target: target}
}

// IsInstance reports whether the triple binds a variable to a concept
func (t Triple) IsInstance() bool {
	return t.Relation == InstanceRelation
}

func (t Triple) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Source, t.Relation, t.Target)
}

// Graph is a sequence of triples. Order carries no meaning, duplicates do.
type Graph []Triple

// Clone returns a copy that can be modified without touching the original
func (g Graph) Clone() Graph {
	if g == nil {
		return nil
	}
	out := make(Graph, len(g))
	copy(out, g)
	return out
}

// VarConcepts maps every variable to the concept of its instance triple.
// If a variable has more than one instance triple the last one wins.
func (g Graph) VarConcepts() map[string]string {
	vc := make(map[string]string)
	for _, t := range g {
		if t.IsInstance() {
			vc[t.Source] = t.Target
		}
	}
	return vc
}

// Variables returns the set of variables of the graph
func (g Graph) Variables() VarSet {
	vars := make(VarSet)
	for _, t := range g {
		if t.IsInstance() {
			vars[t.Source] = struct{}{}
		}
	}
	return vars
}

// Constants returns all node labels that are not variables, including concepts
func (g Graph) Constants() map[string]struct{} {
	vc := g.VarConcepts()
	constants := make(map[string]struct{})
	for _, t := range g {
		if t.IsInstance() {
			continue
		}
		if _, ok := vc[t.Source]; !ok {
			constants[t.Source] = struct{}{}
		}
		if _, ok := vc[t.Target]; !ok {
			constants[t.Target] = struct{}{}
		}
	}
	for _, c := range vc {
		constants[c] = struct{}{}
	}
	return constants
}

// Incoming counts edges that end in node
func (g Graph) Incoming(node string) int {
	n := 0
	for _, t := range g {
		if t.Target == node {
			n++
		}
	}
	return n
}

// Outgoing counts edges that start in node
func (g Graph) Outgoing(node string) int {
	n := 0
	for _, t := range g {
		if t.Source == node {
			n++
		}
	}
	return n
}

// IsRoot reports whether node is attached to the graph through a :root edge
func (g Graph) IsRoot(node string) bool {
	for _, t := range g {
		if t.Target == node && t.Relation == RootRelation {
			return true
		}
	}
	return false
}

// VarSet is a set of variable identifiers
type VarSet map[string]struct{}

// NewVarSet builds a set from names
func NewVarSet(names ...string) VarSet {
	vs := make(VarSet, len(names))
	for _, n := range names {
		vs[n] = struct{}{}
	}
	return vs
}

// Has reports membership
func (vs VarSet) Has(name string) bool {
	_, ok := vs[name]
	return ok
}

// Sorted returns the members in lexical order
func (vs VarSet) Sorted() []string {
	out := make([]string, 0, len(vs))
	for v := range vs {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Side tells which graph of a pair a variable belongs to
type Side uint8

const (
	SideG1 Side = iota + 1
	SideG2
)

func (s Side) String() string {
	switch s {
	case SideG1:
		return "g1"
	case SideG2:
		return "g2"
	default:
		return "unknown"
	}
}

// VarRef identifies a variable together with the graph it came from, so two
// graphs may use the same variable names without colliding.
type VarRef struct {
	Side Side   `json:"side"`
	Name string `json:"name"`
}

func (r VarRef) String() string {
	return r.Side.String() + ":" + r.Name
}

// MatchStatistic holds the counts that precision, recall and F1 are computed from
type MatchStatistic struct {
	MatchedX float64 `json:"matched_x"` // triples of G1 found in G2
	MatchedY float64 `json:"matched_y"` // triples of G2 found in G1
	SizeX    float64 `json:"size_x"`
	SizeY    float64 `json:"size_y"`
}

// Add returns the element-wise sum
func (m MatchStatistic) Add(other MatchStatistic) MatchStatistic {
	return MatchStatistic{
		MatchedX: m.MatchedX + other.MatchedX,
		MatchedY: m.MatchedY + other.MatchedY,
		SizeX:    m.SizeX + other.SizeX,
		SizeY:    m.SizeY + other.SizeY,
	}
}

// Sum of all four entries, zero only for a pair of empty graphs
func (m MatchStatistic) Sum() float64 {
	return m.MatchedX + m.MatchedY + m.SizeX + m.SizeY
}

// Array returns the statistic in (a, b, c, d) order
func (m MatchStatistic) Array() [4]float64 {
	return [4]float64{m.MatchedX, m.MatchedY, m.SizeX, m.SizeY}
}

// ValidationError represents structured validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("validation error in field '%s': %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	msgs := make([]string, 0, 3)
	for i := 0; i < len(ve) && i < 3; i++ {
		msgs = append(msgs, ve[i].Message)
	}
	return fmt.Sprintf("%d validation errors: %s (first: %s)", len(ve), strings.Join(msgs, "; "), ve[0].Error())
}
