package standardize

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Every transform returns a new graph and leaves its input untouched.

// LowerCase lower-cases every label
func LowerCase(g models.Graph) models.Graph {
	out := make(models.Graph, len(g))
	for i, t := range g {
		out[i] = models.NewTriple(strings.ToLower(t.Source), strings.ToLower(t.Relation), strings.ToLower(t.Target))
	}
	return out
}

var quoteRemover = strings.NewReplacer(`"`, "", "'", "")

// RemoveQuotes strips single and double quotes from every label
func RemoveQuotes(g models.Graph) models.Graph {
	out := make(models.Graph, len(g))
	for i, t := range g {
		out[i] = models.NewTriple(quoteRemover.Replace(t.Source), quoteRemover.Replace(t.Relation), quoteRemover.Replace(t.Target))
	}
	return out
}

// RelabelVariables renames variables after the first letter of their concept
// (d, d1, d2, ...). A new name that equals a constant gets x appended until
// it is unique, so (i / i) becomes (ix / i).
func RelabelVariables(g models.Graph) models.Graph {
	concepts := g.VarConcepts()
	constants := g.Constants()

	var order []string
	seen := make(map[string]bool)
	for _, t := range g {
		if t.IsInstance() && !seen[t.Source] {
			seen[t.Source] = true
			order = append(order, t.Source)
		}
	}

	rename := make(map[string]string, len(order))
	counter := make(map[string]int)
	for _, v := range order {
		prefix := "x"
		if r, _ := utf8.DecodeRuneInString(concepts[v]); r != utf8.RuneError {
			prefix = string(r)
		}
		name := prefix
		if n, ok := counter[prefix]; ok {
			name = prefix + strconv.Itoa(n)
		}
		counter[prefix]++
		for {
			if _, clash := constants[name]; !clash {
				break
			}
			name += "x"
		}
		rename[v] = name
	}

	out := make(models.Graph, len(g))
	for i, t := range g {
		src, tgt := t.Source, t.Target
		if n, ok := rename[src]; ok {
			src = n
		}
		if n, ok := rename[tgt]; ok && !t.IsInstance() {
			tgt = n
		}
		out[i] = models.NewTriple(src, t.Relation, tgt)
	}
	return out
}

// Deinvert rewrites (s, r-of, t) as (t, r, s). Stacked suffixes are peeled
// off one by one and the edge is flipped for an odd count.
func Deinvert(g models.Graph) models.Graph {
	out := make(models.Graph, len(g))
	for i, t := range g {
		rel := t.Relation
		flips := 0
		for strings.HasSuffix(rel, "-of") {
			rel = strings.TrimSuffix(rel, "-of")
			flips++
		}
		if flips%2 == 1 {
			out[i] = models.NewTriple(t.Target, rel, t.Source)
		} else {
			out[i] = models.NewTriple(t.Source, rel, t.Target)
		}
	}
	return out
}

// DomainToMod maps :domain to :mod-of and :domain-of to :mod
func DomainToMod(g models.Graph) models.Graph {
	out := g.Clone()
	for i, t := range out {
		switch t.Relation {
		case ":domain":
			out[i].Relation = ":mod-of"
		case ":domain-of":
			out[i].Relation = ":mod"
		}
	}
	return out
}

// ConceptAsRoot replaces (ROOT_OF_GRAPH, :root, x) by (x, :root, concept of x)
// so that the root concept is what gets scored as the focus.
func ConceptAsRoot(g models.Graph) models.Graph {
	out := g.Clone()
	concepts := g.VarConcepts()
	for i, t := range out {
		if t.Relation != models.RootRelation {
			continue
		}
		if c, ok := concepts[t.Target]; ok {
			out[i] = models.NewTriple(t.Target, models.RootRelation, c)
		}
		break
	}
	return out
}

// NormLogicalOps collapses :op1, :op2, ... of "and" / "or" nodes into :op
// since their order carries no meaning.
func NormLogicalOps(g models.Graph) models.Graph {
	commutative := make(map[string]bool)
	for _, t := range g {
		if t.IsInstance() && (t.Target == "and" || t.Target == "or") {
			commutative[t.Source] = true
		}
	}
	out := g.Clone()
	for i, t := range out {
		if strings.Contains(t.Relation, ":op") && commutative[t.Source] {
			out[i].Relation = ":op"
		}
	}
	return out
}

// ReifyConstants turns every constant leaf into a node of its own, e.g.
// (x, :polarity, -) becomes (x, :polarity, rfattribute_0), (rfattribute_0, :instance, -).
func ReifyConstants(g models.Graph) models.Graph {
	labels := make(map[string]bool)
	for _, t := range g {
		if t.IsInstance() {
			labels[t.Source] = true
			labels[t.Target] = true
		}
	}

	out := make(models.Graph, 0, len(g))
	var added models.Graph
	for _, t := range g {
		if labels[t.Target] {
			out = append(out, t)
			continue
		}
		v := "rfattribute_" + strconv.Itoa(len(added)/2)
		added = append(added,
			models.NewTriple(t.Source, t.Relation, v),
			models.NewTriple(v, models.InstanceRelation, t.Target))
	}
	return append(out, added...)
}

// RemoveDuplicates keeps the first occurrence of every triple
func RemoveDuplicates(g models.Graph) models.Graph {
	seen := make(map[models.Triple]bool, len(g))
	out := make(models.Graph, 0, len(g))
	for _, t := range g {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Reify expands every edge that has a rule into a concept node,
// e.g. (x, :location, y) becomes (ric0, :instance, be-located-at-91),
// (ric0, :arg1, x), (ric0, :arg2, y).
func Reify(g models.Graph, rules *RuleTable) models.Graph {
	out := make(models.Graph, 0, len(g))
	var added models.Graph
	for i, t := range g {
		r, ok := rules.ForRelation(t.Relation)
		if !ok {
			out = append(out, t)
			continue
		}
		v := "ric" + strconv.Itoa(i)
		added = append(added,
			models.NewTriple(v, models.InstanceRelation, r.Concept),
			models.NewTriple(v, r.SourceRole, t.Source),
			models.NewTriple(v, r.TargetRole, t.Target))
	}
	return append(out, added...)
}

// Dereify collapses reified concept nodes back into a single edge. A node
// qualifies only if nothing points into it and its only edges besides the
// instance are exactly one source role and one target role.
func Dereify(g models.Graph, rules *RuleTable) models.Graph {
	drop := make(map[int]bool)
	var added models.Graph
	done := make(map[string]bool)

	for _, t := range g {
		v := t.Source
		if done[v] || g.IsRoot(v) {
			continue
		}
		done[v] = true
		if edge, idx, ok := dereification(g, v, rules); ok {
			for _, i := range idx {
				drop[i] = true
			}
			added = append(added, edge)
		}
	}

	if len(added) == 0 {
		return g.Clone()
	}
	out := make(models.Graph, 0, len(g))
	for i, t := range g {
		if !drop[i] {
			out = append(out, t)
		}
	}
	return append(out, added...)
}

// dereification returns the collapsed edge for v and the indices of the
// triples it replaces
func dereification(g models.Graph, v string, rules *RuleTable) (models.Triple, []int, bool) {
	instance := -1
	for i, t := range g {
		if t.Source == v && t.IsInstance() {
			instance = i
			break
		}
	}
	if instance < 0 {
		return models.Triple{}, nil, false
	}
	rule, ok := rules.ForConcept(g[instance].Target)
	if !ok {
		return models.Triple{}, nil, false
	}
	if g.Incoming(v) > 0 {
		return models.Triple{}, nil, false
	}

	src, tgt := -1, -1
	nSrc, nTgt := 0, 0
	for i, t := range g {
		if t.Source != v || t.IsInstance() {
			continue
		}
		switch t.Relation {
		case rule.SourceRole:
			src = i
			nSrc++
		case rule.TargetRole:
			tgt = i
			nTgt++
		default:
			return models.Triple{}, nil, false
		}
	}
	if nSrc != 1 || nTgt != 1 {
		return models.Triple{}, nil, false
	}

	return models.NewTriple(g[src].Target, rule.Relations[0], g[tgt].Target), []int{src, tgt, instance}, true
}
