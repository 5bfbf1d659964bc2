package weights

import (
	"fmt"
	"math"
	"sort"
)

// Pair is an (i, j) cell: G1 variable index i aligned to G2 variable index j
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Unary holds the score gained by aligning a single variable pair.
// Missing keys weigh 0.
type Unary map[Pair]float64

// Get returns the weight of a pair, 0 if absent
func (u Unary) Get(i, j int) float64 {
	return u[Pair{I: i, J: j}]
}

// Add accumulates w onto (i, j)
func (u Unary) Add(i, j int, w float64) {
	u[Pair{I: i, J: j}] += w
}

// Binary holds the score gained when two variable pairs are aligned together.
// It is stored as nested adjacency (i,j) -> (k,l) -> w so that all cells
// touching one pair can be visited without scanning the whole table.
type Binary map[Pair]map[Pair]float64

// Get returns the weight of cell (p, q), 0 if absent
func (b Binary) Get(p, q Pair) float64 {
	if row, ok := b[p]; ok {
		return row[q]
	}
	return 0
}

// Add accumulates w onto the (p, q) cell only
func (b Binary) Add(p, q Pair, w float64) {
	row, ok := b[p]
	if !ok {
		row = make(map[Pair]float64)
		b[p] = row
	}
	row[q] += w
}

// AddSymmetric splits w evenly onto (p, q) and (q, p)
func (b Binary) AddSymmetric(p, q Pair, w float64) {
	b.Add(p, q, w/2)
	b.Add(q, p, w/2)
}

// Neighbors returns all cells starting at p. The map must not be modified.
func (b Binary) Neighbors(p Pair) map[Pair]float64 {
	return b[p]
}

// Cells counts the stored (p, q) cells
func (b Binary) Cells() int {
	n := 0
	for _, row := range b {
		n += len(row)
	}
	return n
}

// Problem is the input of every alignment solver. Solvers treat it as read-only.
type Problem struct {
	Unary  Unary  `json:"-"`
	Binary Binary `json:"-"`
	V      int    `json:"v"`
}

// NewProblem creates an empty problem of size v
func NewProblem(v int) *Problem {
	return &Problem{
		Unary:  make(Unary),
		Binary: make(Binary),
		V:      v,
	}
}

// Validate rejects out-of-range indices and negative or non-finite weights
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("problem is nil")
	}
	if p.V < 0 {
		return fmt.Errorf("problem size must be non-negative, got %d", p.V)
	}
	inRange := func(c Pair) bool {
		return c.I >= 0 && c.I < p.V && c.J >= 0 && c.J < p.V
	}
	okWeight := func(w float64) bool {
		return w >= 0 && !math.IsNaN(w) && !math.IsInf(w, 0)
	}
	for c, w := range p.Unary {
		if !inRange(c) {
			return fmt.Errorf("unary cell (%d, %d) out of range [0, %d)", c.I, c.J, p.V)
		}
		if !okWeight(w) {
			return fmt.Errorf("unary cell (%d, %d) has invalid weight %v", c.I, c.J, w)
		}
	}
	for a, row := range p.Binary {
		if !inRange(a) {
			return fmt.Errorf("binary cell (%d, %d, ...) out of range [0, %d)", a.I, a.J, p.V)
		}
		for c, w := range row {
			if !inRange(c) {
				return fmt.Errorf("binary cell (%d, %d, %d, %d) out of range [0, %d)", a.I, a.J, c.I, c.J, p.V)
			}
			if !okWeight(w) {
				return fmt.Errorf("binary cell (%d, %d, %d, %d) has invalid weight %v", a.I, a.J, c.I, c.J, w)
			}
		}
	}
	return nil
}

// Objective scores an alignment:
// sum_i unary[i, a_i] + sum_i sum_k binary[i, a_i, k, a_k].
// Entries outside [0, V) count as unmatched and contribute nothing.
func (p *Problem) Objective(alignment []int) float64 {
	score := 0.0
	for i, j := range alignment {
		if j < 0 {
			continue
		}
		score += p.Unary.Get(i, j)
		for q, w := range p.Binary.Neighbors(Pair{I: i, J: j}) {
			if q.I < len(alignment) && alignment[q.I] == q.J {
				score += w
			}
		}
	}
	return score
}

// RelevantPairs lists every pair that carries weight, sorted by (I, J)
func (p *Problem) RelevantPairs() []Pair {
	seen := make(map[Pair]struct{})
	for c, w := range p.Unary {
		if w > 0 {
			seen[c] = struct{}{}
		}
	}
	for a, row := range p.Binary {
		for c, w := range row {
			if w > 0 {
				seen[a] = struct{}{}
				seen[c] = struct{}{}
			}
		}
	}
	out := make([]Pair, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(x, y int) bool {
		if out[x].I != out[y].I {
			return out[x].I < out[y].I
		}
		return out[x].J < out[y].J
	})
	return out
}
