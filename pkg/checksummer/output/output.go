// Package output renders report results in the formats the CLI offers
// (plain, pretty, json, yaml, csv, ...).
//
// Formatters are looked up by name in a registry:
//
//	formatter, err := output.Get("plain")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/checksummer/pkg/checksummer/types"
)

// Row is one displayed record.
type Row struct {
	// Path is relative to the tracked root.
	Path string `json:"path" yaml:"path"`

	// AbsPath is Path joined to the root, or Path when no root is known.
	AbsPath string `json:"abs_path" yaml:"abs_path"`

	// Size is the recorded size; SizeKnown is false when never stated.
	Size      int64 `json:"size" yaml:"size"`
	SizeKnown bool  `json:"-" yaml:"-"`

	// SizeHuman is the size in 1024-scaled units, or empty when unknown.
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// ModTime is the recorded modification time, zero when unknown.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`

	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Found    string `json:"found" yaml:"found"`
	Verified string `json:"verified" yaml:"verified"`

	// Group numbers duplicate sets from 1; zero means the row is not grouped.
	Group int `json:"group,omitempty" yaml:"group,omitempty"`
}

// NewRow builds a display row for rec under root.
func NewRow(root string, rec types.FileRecord) Row {
	row := Row{
		Path:     rec.Path,
		AbsPath:  rec.Path,
		ModTime:  rec.ModTime(),
		Checksum: rec.Checksum,
		Found:    rec.Found.String(),
		Verified: rec.Verified.String(),
	}
	if root != "" {
		row.AbsPath = filepath.Join(root, rec.Path)
	}
	if rec.Size != nil {
		row.Size = *rec.Size
		row.SizeKnown = true
		row.SizeHuman = types.FormatSize(*rec.Size)
	}
	return row
}

// ModTimeString renders the modification time in local time.
func (r Row) ModTimeString() string {
	return types.FormatTime(r.ModTime)
}

// Result is a complete report ready for formatting.
type Result struct {
	// Title is a human heading such as "Largest files".
	Title string `json:"title" yaml:"title"`

	// Kind is the report kind, e.g. "size" or "duplicates".
	Kind string `json:"kind" yaml:"kind"`

	// Root is the tracked root the rows are relative to.
	Root string `json:"root" yaml:"root"`

	Rows []Row `json:"rows" yaml:"rows"`

	// TotalRows is the number of rows before any limit was applied.
	TotalRows int `json:"total_rows" yaml:"total_rows"`

	// Summary describes the whole inventory, when known.
	Summary *types.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TotalSize returns the sum of the known row sizes.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.Size
	}
	return total
}

// Grouped reports whether any row belongs to a duplicate group.
func (r *Result) Grouped() bool {
	for _, row := range r.Rows {
		if row.Group > 0 {
			return true
		}
	}
	return false
}

// column is one field of the tabular formats.
type column struct {
	header string
	value  func(Row) string
}

// columns returns the fields shared by plain, tsv, csv and markdown output.
func columns(r *Result) []column {
	var cols []column
	if r.Grouped() {
		cols = append(cols, column{"GROUP", func(row Row) string { return fmt.Sprintf("%d", row.Group) }})
	}
	return append(cols,
		column{"SIZE", func(row Row) string { return row.SizeHuman }},
		column{"MODIFIED", Row.ModTimeString},
		column{"PATH", func(row Row) string { return row.Path }},
	)
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the formatters in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
