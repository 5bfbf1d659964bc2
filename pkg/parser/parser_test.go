package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

func tr(s, r, t string) models.Triple { return models.NewTriple(s, r, t) }

func TestPenmanReaderSimple(t *testing.T) {
	g, err := PenmanReader{}.Read("(b / bark-01\n   :arg0 (d / dog))")
	require.NoError(t, err)
	assert.Equal(t, models.Graph{
		tr("b", ":instance", "bark-01"),
		tr("ROOT_OF_GRAPH", ":root", "b"),
		tr("d", ":instance", "dog"),
		tr("b", ":arg0", "d"),
	}, g)
}

func TestPenmanReaderReentrancyAndConstants(t *testing.T) {
	g, err := PenmanReader{}.Read(`(w / want-01 :arg0 (b / boy) :arg1 (g / go-02 :arg0 b :polarity -) :quant 5)`)
	require.NoError(t, err)
	assert.Contains(t, g, tr("g", ":arg0", "b"))
	assert.Contains(t, g, tr("g", ":polarity", "-"))
	assert.Contains(t, g, tr("w", ":quant", "5"))
	assert.Contains(t, g, tr("w", ":arg1", "g"))
	assert.Len(t, g, 9)
}

func TestPenmanReaderQuotedStrings(t *testing.T) {
	g, err := PenmanReader{}.Read(`(c / city :name (n / name :op1 "New York" :op2 "City"))`)
	require.NoError(t, err)
	assert.Contains(t, g, tr("n", ":op1", `"New York"`))
	assert.Contains(t, g, tr("n", ":op2", `"City"`))
}

func TestPenmanReaderKeepsInverseRoles(t *testing.T) {
	g, err := PenmanReader{}.Read("(d / dog :arg0-of (b / bark-01))")
	require.NoError(t, err)
	assert.Contains(t, g, tr("d", ":arg0-of", "b"))
}

func TestPenmanReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed", "(a / dog"},
		{"extra closing", "(a / dog))"},
		{"no brackets", "a / dog"},
		{"missing concept", "(a /"},
		{"value without relation", "(a / dog big)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PenmanReader{}.Read(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestPenmanReaderEmpty(t *testing.T) {
	g, err := PenmanReader{}.Read("  \n ")
	require.NoError(t, err)
	assert.Empty(t, g)
}

func TestTSVReader(t *testing.T) {
	g, err := TSVReader{}.Read("a dog :instance\nb bark :instance\n\nb a :arg0\n")
	require.NoError(t, err)
	assert.Equal(t, models.Graph{
		tr("a", ":instance", "dog"),
		tr("b", ":instance", "bark"),
		tr("b", ":arg0", "a"),
	}, g)

	_, err = TSVReader{}.Read("a dog")
	assert.Error(t, err)
}

func TestNewReader(t *testing.T) {
	r, err := NewReader("penman")
	require.NoError(t, err)
	assert.IsType(t, PenmanReader{}, r)

	r, err = NewReader("TSV")
	require.NoError(t, err)
	assert.IsType(t, TSVReader{}, r)

	_, err = NewReader("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, []string{"penman", "tsv"}, Formats())
}

func TestPenmanWriter(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"tree", "(b / bark-01 :arg0 (d / dog))", "(b / bark-01 :arg0 (d / dog))"},
		{"sorted relations", "(w / want-01 :arg1 (g / go-02) :arg0 (b / boy))", "(w / want-01 :arg0 (b / boy) :arg1 (g / go-02))"},
		{"reentrancy", "(w / want-01 :arg0 (b / boy) :arg1 (g / go-02 :arg0 b))", "(w / want-01 :arg0 (b / boy :arg0-of (g / go-02)) :arg1 g)"},
		{"inverse kept", "(d / dog :arg0-of (b / bark-01))", "(d / dog :arg0-of (b / bark-01))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := PenmanReader{}.Read(tt.input)
			require.NoError(t, err)
			out, err := PenmanWriter{}.Write(g)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, out)
		})
	}
}

func TestPenmanWriterInvertsIncomingEdges(t *testing.T) {
	g := models.Graph{
		tr("d", ":instance", "dog"),
		tr("ROOT_OF_GRAPH", ":root", "d"),
		tr("b", ":instance", "bark-01"),
		tr("b", ":arg0", "d"),
	}
	out, err := PenmanWriter{}.Write(g)
	require.NoError(t, err)
	assert.Equal(t, "(d / dog :arg0-of (b / bark-01))", out)

	back, err := PenmanReader{}.Read(out)
	require.NoError(t, err)
	assert.Contains(t, back, tr("d", ":arg0-of", "b"))
}

func TestPenmanWriterRejectsGraphWithoutVariables(t *testing.T) {
	_, err := PenmanWriter{}.Write(models.Graph{tr("x", ":mod", "y")})
	assert.Error(t, err)
}

func TestReadGraphStrings(t *testing.T) {
	content := strings.Join([]string{
		"# ::id 1",
		"# ::snt The dog barks.",
		"(b / bark-01",
		"   :arg0 (d / dog))",
		"",
		"",
		"# ::id 2",
		"(c / cat)",
		"",
	}, "\n")
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	graphs, err := ReadGraphStrings(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"(b / bark-01\n   :arg0 (d / dog))", "(c / cat)"}, graphs)

	_, err = ReadGraphStrings(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
