package align

import (
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Index assigns dense integers to the variables of both graphs. Each side is
// numbered independently from 0 in lexical order, so G1 and G2 indices share
// the range [0, Size()).
type Index struct {
	vars1 []string
	vars2 []string
	pos1  map[string]int
	pos2  map[string]int
}

// NewIndex builds the index for a graph pair
func NewIndex(vars1, vars2 models.VarSet) *Index {
	x := &Index{
		vars1: vars1.Sorted(),
		vars2: vars2.Sorted(),
	}
	x.pos1 = positions(x.vars1)
	x.pos2 = positions(x.vars2)
	return x
}

func positions(vars []string) map[string]int {
	pos := make(map[string]int, len(vars))
	for i, v := range vars {
		pos[v] = i
	}
	return pos
}

// Size is max(|vars1|, |vars2|)
func (x *Index) Size() int {
	if len(x.vars1) > len(x.vars2) {
		return len(x.vars1)
	}
	return len(x.vars2)
}

// Lookup returns the index of a variable
func (x *Index) Lookup(ref models.VarRef) (int, bool) {
	var i int
	var ok bool
	switch ref.Side {
	case models.SideG1:
		i, ok = x.pos1[ref.Name]
	case models.SideG2:
		i, ok = x.pos2[ref.Name]
	}
	return i, ok
}

// Var returns the variable behind an index of one side
func (x *Index) Var(side models.Side, i int) (models.VarRef, bool) {
	vars := x.vars1
	if side == models.SideG2 {
		vars = x.vars2
	}
	if i < 0 || i >= len(vars) {
		return models.VarRef{}, false
	}
	return models.VarRef{Side: side, Name: vars[i]}, true
}

// Positions exposes the name -> index map of one side. It must not be modified.
func (x *Index) Positions(side models.Side) map[string]int {
	if side == models.SideG2 {
		return x.pos2
	}
	return x.pos1
}

// Has reports whether name is a variable of the given side
func (x *Index) Has(side models.Side, name string) bool {
	_, ok := x.Lookup(models.VarRef{Side: side, Name: name})
	return ok
}
