package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/convergefm/converge/pkg/evaluator"
)

// jsonRecord is the structured-sink shape for one dispatch record, fields
// ordered to match spec.md §4.12's tuple (bundle, subtype, promiser,
// outcome, detail, origin).
type jsonRecord struct {
	Bundle   string `json:"bundle"`
	Subtype  string `json:"subtype"`
	Promiser string `json:"promiser"`
	Outcome  string `json:"outcome"`
	Detail   string `json:"detail,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// JSONSink writes one JSON object per line to w (a structured sink, §4.12).
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w, enc: json.NewEncoder(w)}
}

func (s *JSONSink) Report(rec evaluator.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(jsonRecord{
		Bundle:   rec.Bundle,
		Subtype:  rec.Subtype,
		Promiser: rec.Promiser,
		Outcome:  string(rec.Outcome),
		Detail:   rec.Detail,
		File:     rec.Origin.File,
		Line:     rec.Origin.Line,
	})
}

// TextSink writes one aligned line per record to w (the human-readable
// textual sink, §4.12), columns padded so outcome and promiser line up
// across a run's worth of records.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Report(rec evaluator.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%-10s %-10s %-8s %-30s %s\n", rec.Bundle, rec.Subtype, rec.Outcome, rec.Promiser, rec.Detail)
}

// MultiReporter fans one record out to several sinks, in the order given.
type MultiReporter struct {
	Sinks []evaluator.Reporter
}

func (m MultiReporter) Report(rec evaluator.Record) {
	for _, s := range m.Sinks {
		s.Report(rec)
	}
}

// Totals accumulates per-(bundle,subtype) outcome counts. Nothing is
// totalised at bundle exit: callers read the counts through Snapshot
// (cf-agent does so once, after the whole bundle sequence).
type Totals struct {
	mu      sync.Mutex
	counts  map[totalsKey]int
}

type totalsKey struct {
	bundle, subtype, outcome string
}

func NewTotals() *Totals {
	return &Totals{counts: make(map[totalsKey]int)}
}

func (t *Totals) Report(rec evaluator.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[totalsKey{rec.Bundle, rec.Subtype, string(rec.Outcome)}]++
}

// Summary is one aggregated line of the bundle-exit totals.
type Summary struct {
	Bundle, Subtype, Outcome string
	Count                    int
}

// Snapshot returns the current totals, sorted for deterministic output.
func (t *Totals) Snapshot() []Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Summary, 0, len(t.counts))
	for k, c := range t.counts {
		out = append(out, Summary{Bundle: k.bundle, Subtype: k.subtype, Outcome: k.outcome, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bundle != out[j].Bundle {
			return out[i].Bundle < out[j].Bundle
		}
		if out[i].Subtype != out[j].Subtype {
			return out[i].Subtype < out[j].Subtype
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}
