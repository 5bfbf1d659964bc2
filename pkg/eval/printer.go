package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

const mainLabel = `===> MAIN ("Smatch") <===`

// MarshalJSON writes the report as an object keyed by dimension, keeping
// the dimension order.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object written by MarshalJSON in key order
func (r *Report) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*r = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("report must be a JSON object, got %v", tok)
	}

	out := Report{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var res Result
		if err := dec.Decode(&res); err != nil {
			return fmt.Errorf("dimension %q: %w", name, err)
		}
		out = append(out, Dimension{Name: name, Result: res})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Printer renders reports
type Printer struct {
	Format string
	Out    io.Writer
}

// Print writes one report
func (p Printer) Print(r Report) error {
	switch p.Format {
	case FormatJSON:
		return p.printJSON(r)
	case FormatText, "":
		_, err := io.WriteString(p.Out, FormatReport(r)+"\n")
		return err
	default:
		return fmt.Errorf("unknown output format %q", p.Format)
	}
}

// PrintAll writes one report per graph pair
func (p Printer) PrintAll(reports []Report) error {
	if p.Format == FormatJSON {
		return p.printJSON(reports)
	}
	for i, r := range reports {
		if _, err := fmt.Fprintf(p.Out, "---- pair %d ----\n", i+1); err != nil {
			return err
		}
		if err := p.Print(r); err != nil {
			return err
		}
	}
	return nil
}

func (p Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// FormatReport renders the text layout: one line of point estimates per
// dimension followed by the confidence intervals.
func FormatReport(r Report) string {
	labels := make([]string, len(r))
	width := 0
	for i, d := range r {
		labels[i] = d.Name
		if d.Name == MainDimension {
			labels[i] = mainLabel
		}
		if len(labels[i]) > width {
			width = len(labels[i])
		}
	}

	var lines []string
	for i, d := range r {
		lines = append(lines, fmt.Sprintf("%-*s ---->   F1: %.2f    Precision: %.2f    Recall: %.2f",
			width, labels[i], d.Result.F1.Result, d.Result.Precision.Result, d.Result.Recall.Result))
	}
	lines = append(lines,
		"----------------------------",
		"--95-confidence intervals:--",
		"----------------------------")
	for i, d := range r {
		lines = append(lines, fmt.Sprintf("%-*s ---->   F1: %s    Precision: %s    Recall: %s",
			width, labels[i], ci(d.Result.F1), ci(d.Result.Precision), ci(d.Result.Recall)))
	}
	return strings.Join(lines, "\n")
}

func ci(m Metric) string {
	bound := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return "[" + bound(m.CI[0]) + "," + bound(m.CI[1]) + "]"
}

// Status is the pair of bounds a solver reported for one graph pair
type Status struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Optimality summarizes solver bounds over a corpus
type Optimality struct {
	LowerSum   float64 `json:"lower_sum"`
	UpperSum   float64 `json:"upper_sum"`
	Pairs      int     `json:"pairs"`
	NonOptimal int     `json:"non_optimal"`
}

// Summarize sums the bounds and counts pairs whose gap exceeds one triple
func Summarize(status []Status) Optimality {
	o := Optimality{Pairs: len(status)}
	for _, s := range status {
		o.LowerSum += s.Lower
		o.UpperSum += s.Upper
		if s.Upper-s.Lower > 1 {
			o.NonOptimal++
		}
	}
	return o
}
