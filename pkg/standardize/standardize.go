// Package standardize normalizes graphs before they are compared, so that
// notational variants of the same meaning produce the same triples.
package standardize

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-match-service/pkg/config"
	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// ErrUnknownType is returned for standardizer names that are not registered
var ErrUnknownType = errors.New("unknown standardizer type")

// Standardizer types
const (
	TypeNone    = "none"
	TypeGeneric = "generic"
	TypeAMR     = "amr"
)

// Edge modes
const (
	EdgesKeep    = ""
	EdgesReify   = "reify"
	EdgesDereify = "dereify"
)

// Standardizer rewrites a graph into its canonical form
type Standardizer interface {
	Standardize(g models.Graph) models.Graph
}

// Options selects the standardization steps
type Options struct {
	Type             string
	Edges            string
	RemoveDuplicates bool
	NormLogicalOps   bool
	ReifyConstants   bool
}

// OptionsFromConfig reads the graph.* keys
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Type:             cfg.GraphType(),
		Edges:            cfg.Edges(),
		RemoveDuplicates: cfg.RemoveDuplicates(),
		NormLogicalOps:   cfg.NormLogicalOps(),
		ReifyConstants:   cfg.ReifyConstants(),
	}
}

// Step is one named transform
type Step struct {
	Name  string
	Apply func(models.Graph) models.Graph
}

// Pipeline applies its steps in order
type Pipeline struct {
	steps  []Step
	logger zerolog.Logger
}

// Steps returns the step names in order
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

func (p *Pipeline) Standardize(g models.Graph) models.Graph {
	out := g.Clone()
	for _, s := range p.steps {
		out = s.Apply(out)
		p.logger.Trace().Str("step", s.Name).Int("triples", len(out)).Msg("Standardization step applied")
	}
	return out
}

// New assembles the standardizer for opts.
//
// generic: lower-case, remove quotes, relabel variables, deinvert edges.
// amr: generic plus :domain to :mod-of, concept as root, dereification and
// duplicate removal. The Edges option overrides the amr edge mode.
func New(opts Options, logger zerolog.Logger) (*Pipeline, error) {
	var rules *RuleTable
	if opts.Edges != EdgesKeep || opts.Type == TypeAMR {
		var err error
		if rules, err = DefaultRules(); err != nil {
			return nil, err
		}
	}

	var steps []Step
	edges := opts.Edges
	dedupe := opts.RemoveDuplicates

	switch opts.Type {
	case TypeNone, "":
	case TypeGeneric:
		steps = append(steps,
			Step{"lower-case", LowerCase},
			Step{"remove-quotes", RemoveQuotes},
			Step{"relabel-variables", RelabelVariables},
			Step{"deinvert", Deinvert})
	case TypeAMR:
		steps = append(steps,
			Step{"lower-case", LowerCase},
			Step{"remove-quotes", RemoveQuotes},
			Step{"relabel-variables", RelabelVariables},
			Step{"domain-to-mod", DomainToMod},
			Step{"deinvert", Deinvert},
			Step{"concept-as-root", ConceptAsRoot})
		if edges == EdgesKeep {
			edges = EdgesDereify
		}
		dedupe = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, opts.Type)
	}

	if opts.NormLogicalOps {
		steps = append(steps, Step{"norm-logical-ops", NormLogicalOps})
	}

	switch edges {
	case EdgesKeep:
	case EdgesReify:
		steps = append(steps, Step{"reify", func(g models.Graph) models.Graph { return Reify(g, rules) }})
	case EdgesDereify:
		steps = append(steps, Step{"dereify", func(g models.Graph) models.Graph { return Dereify(g, rules) }})
	default:
		return nil, fmt.Errorf("unknown edge mode %q (use %q or %q)", edges, EdgesReify, EdgesDereify)
	}

	if opts.ReifyConstants {
		steps = append(steps, Step{"reify-constants", ReifyConstants})
	}
	if dedupe {
		steps = append(steps, Step{"remove-duplicates", RemoveDuplicates})
	}

	return &Pipeline{steps: steps, logger: logger}, nil
}
