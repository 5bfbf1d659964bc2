package parser

import (
	"fmt"
	"strings"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// PenmanReader parses bracketed Penman notation. The top node is attached
// through a synthetic (ROOT_OF_GRAPH, :root, top) triple and inverted roles
// such as :arg0-of are kept as written.
type PenmanReader struct{}

type penmanState struct {
	level   int
	src     map[int]string
	rel     map[int]string
	triples models.Graph
}

func (PenmanReader) Read(s string) (models.Graph, error) {
	s = strings.ReplaceAll(s, ")", " )")
	s = strings.ReplaceAll(s, "(", "( ")
	tokens := strings.Fields(s)

	st := &penmanState{
		src: map[int]string{0: models.RootSource},
		rel: map[int]string{0: models.RootRelation},
	}

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		switch {
		case tok == "(":
			st.level++
			delete(st.rel, st.level)
			i++

		case tok == ")":
			st.level--
			if st.level < 0 {
				return nil, fmt.Errorf("unbalanced closing bracket at token %d", i)
			}
			i++

		case strings.HasPrefix(tok, ":"):
			st.rel[st.level] = tok
			i++

		case i+1 < len(tokens) && tokens[i+1] == "/":
			if i+2 >= len(tokens) {
				return nil, fmt.Errorf("missing concept for variable %q", tok)
			}
			if err := st.node(tok, tokens[i+2]); err != nil {
				return nil, err
			}
			i += 3

		case tok[0] == '"' || tok[0] == '\'':
			str, end := collectString(tokens, i, tok[0])
			if err := st.attach(str); err != nil {
				return nil, err
			}
			i = end + 1

		default:
			if err := st.attach(tok); err != nil {
				return nil, err
			}
			i++
		}
	}

	if st.level != 0 {
		return nil, fmt.Errorf("unbalanced brackets: %d left open", st.level)
	}
	return st.triples, nil
}

// node opens a new variable at the current level and links it to its parent
func (st *penmanState) node(v, concept string) error {
	if st.level == 0 {
		return fmt.Errorf("variable %q outside of brackets", v)
	}
	rel, ok := st.rel[st.level-1]
	if !ok {
		return fmt.Errorf("variable %q has no incoming relation", v)
	}
	st.src[st.level] = v
	st.triples = append(st.triples,
		models.NewTriple(v, models.InstanceRelation, concept),
		models.NewTriple(st.src[st.level-1], rel, v))
	return nil
}

// attach adds a constant or a re-entrant variable below the current node
func (st *penmanState) attach(target string) error {
	rel, ok := st.rel[st.level]
	if !ok {
		return fmt.Errorf("value %q has no relation", target)
	}
	st.triples = append(st.triples, models.NewTriple(st.src[st.level], rel, target))
	return nil
}

// collectString joins the tokens of a quoted constant that contains spaces.
// It returns the constant and the index of its last token. An unterminated
// quote yields the first token alone.
func collectString(tokens []string, start int, quote byte) (string, int) {
	first := tokens[start]
	if len(first) > 1 && first[len(first)-1] == quote {
		return first, start
	}
	parts := []string{first}
	for j := start + 1; j < len(tokens); j++ {
		parts = append(parts, tokens[j])
		if t := tokens[j]; t[len(t)-1] == quote {
			return strings.Join(parts, " "), j
		}
	}
	return first, start
}
