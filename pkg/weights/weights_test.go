package weights

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-match-service/pkg/matcher"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

func dogBarks(a, b string) models.Graph {
	return models.Graph{
		models.NewTriple(a, models.InstanceRelation, "dog"),
		models.NewTriple(b, models.InstanceRelation, "bark"),
		models.NewTriple(b, ":arg0", a),
	}
}

func TestBuildDogBarks(t *testing.T) {
	g1 := dogBarks("a", "b")
	g2 := dogBarks("x", "y")
	idx1 := map[string]int{"a": 0, "b": 1}
	idx2 := map[string]int{"x": 0, "y": 1}

	b := NewBuilder(matcher.NewIdentity(), 1, zerolog.Nop())
	p, err := b.Build(context.Background(), g1, g2, idx1, idx2, 2)
	require.NoError(t, err)

	assert.Equal(t, 1.0, p.Unary.Get(0, 0))
	assert.Equal(t, 1.0, p.Unary.Get(1, 1))
	assert.Equal(t, 0.0, p.Unary.Get(0, 1))
	assert.Len(t, p.Unary, 2)

	// b :arg0 a against y :arg0 x, split onto both reflections
	assert.Equal(t, 0.5, p.Binary.Get(Pair{1, 1}, Pair{0, 0}))
	assert.Equal(t, 0.5, p.Binary.Get(Pair{0, 0}, Pair{1, 1}))
	assert.Equal(t, 2, p.Binary.Cells())

	assert.Equal(t, 3.0, p.Objective([]int{0, 1}))
	assert.Equal(t, 0.0, p.Objective([]int{1, 0}))
}

func TestBuildPendantPositions(t *testing.T) {
	// a constant source must not be compared with a constant target
	g1 := models.Graph{
		models.NewTriple("a", models.InstanceRelation, "x"),
		models.NewTriple("c", ":r", "a"),
	}
	g2 := models.Graph{
		models.NewTriple("b", models.InstanceRelation, "x"),
		models.NewTriple("b", ":r", "c"),
	}
	b := NewBuilder(nil, 1, zerolog.Nop())
	p, err := b.Build(context.Background(), g1, g2, map[string]int{"a": 0}, map[string]int{"b": 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Unary.Get(0, 0))
}

func TestBuildRejectsOutOfRangeIndex(t *testing.T) {
	b := NewBuilder(nil, 1, zerolog.Nop())
	_, err := b.Build(context.Background(), nil, nil, map[string]int{"a": 3}, nil, 2)
	assert.Error(t, err)
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	g1, idx1 := chain("a", 150)
	g2, idx2 := chain("z", 150)

	seq, err := NewBuilder(nil, 1, zerolog.Nop()).Build(context.Background(), g1, g2, idx1, idx2, 150)
	require.NoError(t, err)
	par, err := NewBuilder(nil, 4, zerolog.Nop()).Build(context.Background(), g1, g2, idx1, idx2, 150)
	require.NoError(t, err)

	assert.Equal(t, seq.Unary, par.Unary)
	assert.Equal(t, seq.Binary, par.Binary)
}

func TestBuildHonorsCancellation(t *testing.T) {
	g1, idx1 := chain("a", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(nil, 1, zerolog.Nop()).Build(ctx, g1, g1, idx1, idx1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProblemValidate(t *testing.T) {
	p := NewProblem(2)
	p.Unary.Add(0, 1, 1)
	p.Binary.AddSymmetric(Pair{0, 0}, Pair{1, 1}, 1)
	require.NoError(t, p.Validate())

	bad := NewProblem(2)
	bad.Unary.Add(2, 0, 1)
	assert.Error(t, bad.Validate())

	bad = NewProblem(2)
	bad.Unary.Add(0, 0, -1)
	assert.Error(t, bad.Validate())

	bad = NewProblem(2)
	bad.Binary.Add(Pair{0, 0}, Pair{1, 1}, math.NaN())
	assert.Error(t, bad.Validate())

	bad = NewProblem(-1)
	assert.Error(t, bad.Validate())

	var nilProblem *Problem
	assert.Error(t, nilProblem.Validate())
}

func TestRelevantPairs(t *testing.T) {
	p := NewProblem(3)
	p.Unary.Add(2, 1, 1)
	p.Binary.AddSymmetric(Pair{0, 0}, Pair{1, 2}, 1)
	assert.Equal(t, []Pair{{0, 0}, {1, 2}, {2, 1}}, p.RelevantPairs())
}

// chain builds v0 -> v1 -> ... with a concept per node
func chain(prefix string, n int) (models.Graph, map[string]int) {
	g := models.Graph{}
	idx := make(map[string]int, n)
	for i := 0; i < n; i++ {
		v := fmt.Sprintf("%s%d", prefix, i)
		idx[v] = i
		g = append(g, models.NewTriple(v, models.InstanceRelation, fmt.Sprintf("c%d", i%7)))
		if i > 0 {
			g = append(g, models.NewTriple(fmt.Sprintf("%s%d", prefix, i-1), fmt.Sprintf(":r%d", i%3), v))
		}
	}
	return g, idx
}
