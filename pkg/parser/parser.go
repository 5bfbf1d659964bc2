// Package parser reads meaning representation graphs from text and writes
// them back out.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gilchrisn/graph-match-service/pkg/models"
)

// ErrUnknownFormat is returned for reader names that are not registered
var ErrUnknownFormat = errors.New("unknown graph format")

// Supported input formats
const (
	FormatPenman = "penman"
	FormatTSV    = "tsv"
)

// Reader turns one serialized graph into triples
type Reader interface {
	Read(s string) (models.Graph, error)
}

// NewReader returns the reader registered under format
func NewReader(format string) (Reader, error) {
	switch strings.ToLower(format) {
	case FormatPenman, "":
		return PenmanReader{}, nil
	case FormatTSV:
		return TSVReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

// Formats lists the registered reader names
func Formats() []string {
	out := []string{FormatPenman, FormatTSV}
	sort.Strings(out)
	return out
}

// TSVReader reads one triple per line in "source target relation" order
type TSVReader struct{}

func (TSVReader) Read(s string) (models.Graph, error) {
	var g models.Graph
	scanner := bufio.NewScanner(strings.NewReader(s))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		g = append(g, models.NewTriple(fields[0], fields[2], fields[1]))
	}
	return g, scanner.Err()
}

// ReadGraphStrings loads a corpus file: graphs are separated by blank lines
// and "# ::" metadata lines are dropped.
func ReadGraphStrings(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	graphs, err := SplitGraphStrings(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return graphs, nil
}

// SplitGraphStrings is ReadGraphStrings for an arbitrary stream
func SplitGraphStrings(r io.Reader) ([]string, error) {
	var graphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			graphs = append(graphs, strings.Join(current, "\n"))
			current = current[:0]
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "# ::") {
			continue
		}
		current = append(current, line)
	}
	flush()
	return graphs, scanner.Err()
}
