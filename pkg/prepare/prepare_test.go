package prepare

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

func tr(s, r, t string) models.Triple { return models.NewTriple(s, r, t) }

func wantGo() models.Graph {
	return models.Graph{
		tr("w", ":instance", "want-01"),
		tr("b", ":instance", "boy"),
		tr("g", ":instance", "go-02"),
		tr("w", ":arg0", "b"),
		tr("w", ":arg1", "g"),
		tr("g", ":arg0", "b"),
	}
}

func TestPrepareWithoutOptions(t *testing.T) {
	g1 := wantGo()
	pair := NewPreparer(Options{}, zerolog.Nop()).Prepare(g1, nil)
	assert.Equal(t, g1, pair.G1)
	assert.Equal(t, models.NewVarSet("w", "b", "g"), pair.Vars1)
	assert.Empty(t, pair.Vars2)
}

func TestAffix(t *testing.T) {
	g := models.Graph{tr("a", ":instance", "a"), tr("a", ":mod", "c")}
	assert.Equal(t, models.Graph{tr("aa_a", ":instance", "a"), tr("aa_a", ":mod", "c")}, Affix(g, AffixG1))

	pair := NewPreparer(Options{AffixVars: true}, zerolog.Nop()).Prepare(g, g)
	assert.Equal(t, models.NewVarSet("aa_a"), pair.Vars1)
	assert.Equal(t, models.NewVarSet("bb_a"), pair.Vars2)
}

func TestCompress(t *testing.T) {
	g1 := wantGo()
	g2 := models.Graph{
		tr("x", ":instance", "want-01"),
		tr("y", ":instance", "girl"),
		tr("z", ":instance", "girl"),
		tr("x", ":arg0", "y"),
		tr("x", ":arg1", "z"),
	}
	c1, c2 := Compress(g1, g2)

	// want-01 once on each side, boy and go-02 once overall
	assert.Equal(t, models.Graph{
		tr("want-01", ":arg0", "boy"),
		tr("want-01", ":arg1", "go-02"),
		tr("go-02", ":arg0", "boy"),
	}, c1)
	// girl is used twice so y and z stay variables
	assert.Equal(t, models.Graph{
		tr("y", ":instance", "girl"),
		tr("z", ":instance", "girl"),
		tr("want-01", ":arg0", "y"),
		tr("want-01", ":arg1", "z"),
	}, c2)
	assert.Equal(t, models.NewVarSet("y", "z"), c2.Variables())
	assert.Equal(t, wantGo(), g1, "input must not change")
}

func TestCompressKeepsGraphNonEmpty(t *testing.T) {
	g1 := models.Graph{tr("a", ":instance", "dog")}
	g2 := models.Graph{tr("b", ":instance", "cat"), tr("b", ":mod", "big")}
	c1, c2 := Compress(g1, g2)
	assert.Equal(t, g1, c1)
	assert.Equal(t, models.Graph{tr("cat", ":mod", "big")}, c2)
}

func TestPrepareCompressionShrinksVariables(t *testing.T) {
	pair := NewPreparer(Options{LosslessCompression: true}, zerolog.Nop()).Prepare(wantGo(), wantGo())
	assert.Empty(t, pair.Vars1)
	assert.Empty(t, pair.Vars2)
	assert.Len(t, pair.G1, 3)
}
