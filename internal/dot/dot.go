// Package dot renders the indexed instructions of a module as a Graphviz
// data-dependence graph. Node names follow the llfiID_<N> convention used
// by fault-injection report tooling; selected targets get a red border
// and the values they can reach a yellow fill.
package dot

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"faultline/internal/ir"
)

// Options control decoration of the graph.
type Options struct {
	Targets  map[int64]struct{} // bordered red
	Affected map[int64]struct{} // filled yellow
	// Raw keeps mangled function names in cluster labels.
	Raw bool
}

// NodeName returns the graph node of an instruction ID.
func NodeName(id int64) string {
	return "llfiID_" + strconv.FormatInt(id, 10)
}

// Write renders m.
func Write(w io.Writer, m *ir.Module, opts Options) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", quote(m.Name))
	sb.WriteString("  node [fontname=\"monospace\"];\n")
	for i, f := range m.Definitions() {
		fmt.Fprintf(&sb, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&sb, "    label=%s;\n", quote("@"+funcLabel(f.Name, opts.Raw)))
		for _, in := range f.Instructions() {
			if !in.Meta.Indexed {
				continue
			}
			id := in.Meta.Index
			attrs := []string{"shape=record", "label=" + quote(nodeLabel(m, in))}
			if _, ok := opts.Targets[id]; ok {
				attrs = append(attrs, `color="red"`)
			}
			if _, ok := opts.Affected[id]; ok {
				attrs = append(attrs, `style="filled"`, `fillcolor="yellow"`)
			}
			fmt.Fprintf(&sb, "    %s [%s];\n", NodeName(id), strings.Join(attrs, ", "))
		}
		sb.WriteString("  }\n")
	}
	for _, e := range Edges(m) {
		fmt.Fprintf(&sb, "  %s -> %s;\n", NodeName(e.From), NodeName(e.To))
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func funcLabel(name string, raw bool) string {
	if raw {
		return name
	}
	return demangle.Filter(name, demangle.NoParams)
}

func nodeLabel(m *ir.Module, in *ir.Instr) string {
	text := in.Op.String()
	if !m.Types.IsVoid(in.Type) {
		text += " " + m.Types.String(in.Type)
	}
	if name, ok := in.Call.CalledName(); ok && in.Kind() == ir.InstrCall {
		text += " @" + name
	}
	return strconv.FormatInt(in.Meta.Index, 10) + ": " + text
}

// quote renders s as a DOT string; record labels also need their
// structural characters escaped.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`)
	return `"` + r.Replace(s) + `"`
}

// Edge is a def-use link between two indexed instructions.
type Edge struct {
	From, To int64
}

// Edges lists def-use edges between indexed instructions, ordered by
// user then operand position.
func Edges(m *ir.Module) []Edge {
	var out []Edge
	for _, f := range m.Definitions() {
		for _, use := range f.Instructions() {
			if !use.Meta.Indexed {
				continue
			}
			for _, op := range use.Operands() {
				def := op.Instr
				if op.Kind != ir.OperandInstr || def == nil || !def.Meta.Indexed {
					continue
				}
				e := Edge{From: def.Meta.Index, To: use.Meta.Index}
				if !slices.Contains(out, e) {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// Affected returns every ID reachable from targets along def-use edges,
// the targets themselves excluded.
func Affected(m *ir.Module, targets map[int64]struct{}) map[int64]struct{} {
	succ := make(map[int64][]int64)
	for _, e := range Edges(m) {
		succ[e.From] = append(succ[e.From], e.To)
	}
	out := make(map[int64]struct{})
	work := make([]int64, 0, len(targets))
	for id := range targets {
		work = append(work, id)
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, next := range succ[id] {
			if _, seen := out[next]; seen {
				continue
			}
			if _, isTarget := targets[next]; isTarget {
				continue
			}
			out[next] = struct{}{}
			work = append(work, next)
		}
	}
	return out
}
