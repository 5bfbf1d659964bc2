package validation

import (
	"fmt"
	"os"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// ValidateFile checks that an input file exists and is a regular file
func ValidateFile(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("failed to stat input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory: %s", filePath)
	}
	return nil
}

// ValidateGraph rejects triples with empty components
func ValidateGraph(graph models.Graph, field string) error {
	var errors models.ValidationErrors
	for n, t := range graph {
		if t.Source == "" || t.Relation == "" || t.Target == "" {
			errors = append(errors, models.ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, n),
				Message: "triple source, relation and target must be non-empty",
				Value:   t.String(),
			})
		}
	}
	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateVariables checks that every variable is bound by an :instance
// triple of the graph
func ValidateVariables(graph models.Graph, vars models.VarSet, field string) error {
	bound := graph.Variables()
	var errors models.ValidationErrors
	for _, v := range vars.Sorted() {
		if v == "" {
			errors = append(errors, models.ValidationError{
				Field:   field,
				Message: "variable name cannot be empty",
			})
			continue
		}
		if !bound.Has(v) {
			errors = append(errors, models.ValidationError{
				Field:   field,
				Message: "variable has no :instance triple",
				Value:   v,
			})
		}
	}
	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidatePair validates both graphs of a comparison and their variables
func ValidatePair(triples1, triples2 models.Graph, vars1, vars2 models.VarSet) error {
	var errors models.ValidationErrors
	collect := func(err error) {
		if err == nil {
			return
		}
		if ve, ok := err.(models.ValidationErrors); ok {
			errors = append(errors, ve...)
			return
		}
		errors = append(errors, models.ValidationError{Field: "pair", Message: err.Error()})
	}
	collect(ValidateGraph(triples1, "graph1"))
	collect(ValidateGraph(triples2, "graph2"))
	collect(ValidateVariables(triples1, vars1, "vars1"))
	collect(ValidateVariables(triples2, vars2, "vars2"))
	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateCorpora checks that two corpora can be compared pair by pair
func ValidateCorpora(n1, n2 int) error {
	if n1 != n2 {
		return models.ValidationError{
			Field:   "corpus",
			Message: "both corpora must contain the same number of graphs",
			Value:   fmt.Sprintf("%d != %d", n1, n2),
		}
	}
	return nil
}
