package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

func TestIdentityMatch(t *testing.T) {
	m := NewIdentity()
	a := models.NewTriple("a", ":arg0", "b")

	assert.Equal(t, 1.0, m.Match(a, a))
	assert.Equal(t, 0.0, m.Match(a, models.NewTriple("a", ":arg1", "b")))
	assert.Equal(t, 0.0, m.Match(a, models.NewTriple("b", ":arg0", "a")))

	wild := models.NewTriple(WildcardSource, ":polarity", "-")
	assert.Equal(t, 1.0, m.Match(wild, wild))
	assert.True(t, IsExact(m))
}

func TestConceptFocusMatch(t *testing.T) {
	m := NewConceptFocus(0)
	inst := models.NewTriple("x", models.InstanceRelation, "dog")
	edge := models.NewTriple("x", ":arg0", "y")

	assert.Equal(t, 3.0, m.Match(inst, inst))
	assert.Equal(t, 1.0, m.Match(edge, edge))
	assert.Equal(t, 0.0, m.Match(inst, edge))
	assert.False(t, IsExact(m))
}

func TestNew(t *testing.T) {
	m, err := New("")
	require.NoError(t, err)
	assert.IsType(t, Identity{}, m)

	m, err = New(KindConceptFocus)
	require.NoError(t, err)
	assert.IsType(t, ConceptFocus{}, m)

	_, err = New("embedding")
	assert.Error(t, err)
}
