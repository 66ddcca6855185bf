package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Meta    meta           `json:"meta" yaml:"meta"`
	Rows    []Row          `json:"rows" yaml:"rows"`
	Summary *types.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type meta struct {
	Title     string   `json:"title" yaml:"title"`
	Kind      string   `json:"kind" yaml:"kind"`
	Root      string   `json:"root" yaml:"root"`
	Rows      int      `json:"rows" yaml:"rows"`
	TotalRows int      `json:"total_rows" yaml:"total_rows"`
	TotalSize int64    `json:"total_size" yaml:"total_size"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func buildDocument(r *Result) document {
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	doc := document{
		Meta: meta{
			Title:     r.Title,
			Kind:      r.Kind,
			Root:      r.Root,
			Rows:      len(r.Rows),
			TotalRows: r.TotalRows,
			TotalSize: r.TotalSize(),
			Warnings:  r.Warnings,
		},
		Rows:    rows,
		Summary: r.Summary,
	}
	return doc
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per row, for streaming into
// tools like jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, row := range r.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)
