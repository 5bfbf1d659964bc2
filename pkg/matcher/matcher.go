// Package matcher compares triples and returns a non-negative match weight.
//
// The alignment and scoring code treats any non-negative weight as valid, so
// graded matchers can be plugged in next to the exact identity matcher.
package matcher

import (
	"fmt"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// Placeholders substituted for the endpoint that is being aligned, so that
// pendant edges can be compared independent of the variable's own name.
const (
	WildcardSource = "\x00xtmp"
	WildcardTarget = "\x00ytmp"
)

// TripleMatcher scores how well two triples match. Implementations must be
// free of side effects and safe for concurrent use.
type TripleMatcher interface {
	Match(t1, t2 models.Triple) float64
}

// Exact is implemented by matchers that only ever return 0 or 1 and score 1
// exactly for identical triples. The scorer may then count matches with a
// multiset intersection instead of greedy best-match search.
type Exact interface {
	TripleMatcher
	IsExact() bool
}

// Identity scores 1 for structurally identical triples, 0 otherwise
type Identity struct{}

// NewIdentity creates the default matcher
func NewIdentity() Identity { return Identity{} }

func (Identity) Match(t1, t2 models.Triple) float64 {
	if t1 == t2 {
		return 1
	}
	return 0
}

func (Identity) IsExact() bool { return true }

// ConceptFocus is an identity matcher that weighs concept (:instance) matches
// higher than other triples.
type ConceptFocus struct {
	ConceptWeight float64
}

// NewConceptFocus creates a concept focused matcher; weight <= 0 defaults to 3
func NewConceptFocus(weight float64) ConceptFocus {
	if weight <= 0 {
		weight = 3.0
	}
	return ConceptFocus{ConceptWeight: weight}
}

func (m ConceptFocus) Match(t1, t2 models.Triple) float64 {
	if t1 != t2 {
		return 0
	}
	if t1.IsInstance() {
		return m.ConceptWeight
	}
	return 1
}

// Kind names a matcher implementation
type Kind string

const (
	KindIdentity     Kind = "identity"
	KindConceptFocus Kind = "concept-focus"
)

// New returns a matcher for the given kind
func New(kind Kind) (TripleMatcher, error) {
	switch kind {
	case "", KindIdentity:
		return NewIdentity(), nil
	case KindConceptFocus:
		return NewConceptFocus(0), nil
	default:
		return nil, fmt.Errorf("unknown triple matcher %q (available: %s, %s)", kind, KindIdentity, KindConceptFocus)
	}
}

// IsExact reports whether m advertises exact 0/1 identity semantics
func IsExact(m TripleMatcher) bool {
	e, ok := m.(Exact)
	return ok && e.IsExact()
}
