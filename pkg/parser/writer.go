package parser

import (
	"errors"
	"sort"
	"strings"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// PenmanWriter serializes triples back into Penman notation. Outgoing edges
// are printed first, sorted by relation. Incoming edges are printed inverted
// with -of when their source has not been printed yet.
type PenmanWriter struct {
	// ShowRoot keeps the :root triple as an ordinary edge
	ShowRoot bool
}

func (w PenmanWriter) Write(g models.Graph) (string, error) {
	vars := g.VarConcepts()
	root := ""
	for _, t := range g {
		if t.Relation != models.RootRelation {
			continue
		}
		if _, ok := vars[t.Source]; ok {
			root = t.Source
		} else if _, ok := vars[t.Target]; ok {
			root = t.Target
		}
		break
	}
	if root == "" {
		for _, t := range g {
			if t.IsInstance() {
				root = t.Source
				break
			}
		}
	}
	if root == "" {
		return "", errors.New("cannot write a graph without variables")
	}

	triples := g
	if !w.ShowRoot {
		triples = make(models.Graph, 0, len(g))
		for _, t := range g {
			if t.Relation != models.RootRelation {
				triples = append(triples, t)
			}
		}
	}

	pw := &penmanWriter{
		triples: triples,
		vars:    triples.VarConcepts(),
		printed: make(map[models.Triple]bool),
	}
	pw.pending = make(map[string]string, len(pw.vars))
	for v, c := range pw.vars {
		pw.pending[v] = c
	}

	pw.b.WriteString("(" + root + " / " + pw.pending[root])
	delete(pw.pending, root)
	pw.gather(root)
	pw.b.WriteString(")")
	return pw.b.String(), nil
}

type penmanWriter struct {
	triples models.Graph
	vars    map[string]string
	pending map[string]string
	printed map[models.Triple]bool
	b       strings.Builder
}

func (pw *penmanWriter) gather(node string) {
	for _, t := range pw.edges(func(t models.Triple) bool { return t.Source == node }) {
		if pw.printed[t] {
			continue
		}
		pw.printed[t] = true
		pw.emit(t.Relation, t.Target)
	}

	for _, t := range pw.edges(func(t models.Triple) bool { return t.Target == node }) {
		if pw.printed[t] {
			continue
		}
		if pw.isPrintedVar(t.Source) {
			continue
		}
		pw.printed[t] = true
		pw.emit(invert(t.Relation), t.Source)
	}
}

func (pw *penmanWriter) emit(rel, target string) {
	if concept, ok := pw.pending[target]; ok {
		delete(pw.pending, target)
		pw.b.WriteString(" " + rel + " (" + target + " / " + concept)
		pw.gather(target)
		pw.b.WriteString(")")
		return
	}
	pw.b.WriteString(" " + rel + " " + target)
	if _, isVar := pw.vars[target]; !isVar {
		pw.gather(target)
	}
}

func (pw *penmanWriter) isPrintedVar(v string) bool {
	_, isVar := pw.vars[v]
	_, pending := pw.pending[v]
	return isVar && !pending
}

// edges returns the non-instance triples accepted by keep, sorted by relation
func (pw *penmanWriter) edges(keep func(models.Triple) bool) models.Graph {
	var out models.Graph
	for _, t := range pw.triples {
		if !t.IsInstance() && keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Relation < out[b].Relation })
	return out
}

func invert(rel string) string {
	if strings.Contains(rel, "-of") {
		return strings.ReplaceAll(rel, "-of", "")
	}
	return rel + "-of"
}
