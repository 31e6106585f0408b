package selector

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultReportPath is where the selection report goes unless configured.
const DefaultReportPath = "fi-targets.yaml"

// Target is one selected instruction.
type Target struct {
	Module   string `yaml:"module,omitempty"`
	Function string `yaml:"function"`
	ID       int64  `yaml:"id"`
	Opcode   string `yaml:"opcode"`
	Callee   string `yaml:"callee,omitempty"`
	Category string `yaml:"category"`
}

// Report lists the targets of one selector run.
type Report struct {
	Selector string   `yaml:"selector"`
	Targets  []Target `yaml:"targets"`
}

// Merge appends the targets of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	if r.Selector == "" {
		r.Selector = other.Selector
	}
	r.Targets = append(r.Targets, other.Targets...)
}

// Sort orders targets by module, then ID.
func (r *Report) Sort() {
	slices.SortStableFunc(r.Targets, func(a, b Target) int {
		if c := strings.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// IDs returns the set of selected IDs, optionally limited to one module.
func (r *Report) IDs(module string) map[int64]struct{} {
	out := make(map[int64]struct{}, len(r.Targets))
	for _, t := range r.Targets {
		if module == "" || t.Module == "" || t.Module == module {
			out[t.ID] = struct{}{}
		}
	}
	return out
}

// Categories returns distinct categories in first-seen order.
func (r *Report) Categories() []string {
	var out []string
	for _, t := range r.Targets {
		if !slices.Contains(out, t.Category) {
			out = append(out, t.Category)
		}
	}
	return out
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteReportFile writes the report to path.
func WriteReportFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteYAML(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// ReadReportFile loads a report written by WriteReportFile.
func ReadReportFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}
	return &r, nil
}
