package dot

import (
	"bufio"
	"fmt"
	"io"

	"faultline/internal/ir"
)

// WriteUses writes the fault-index listing: one line per indexed
// instruction naming the indexed instructions that use its value.
//
//	llfiID_4	[ 'llfiID_5', 'llfiID_7', None ]
func WriteUses(w io.Writer, m *ir.Module) error {
	users := make(map[int64][]int64)
	for _, e := range Edges(m) {
		users[e.From] = append(users[e.From], e.To)
	}
	bw := bufio.NewWriter(w)
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if !in.Meta.Indexed {
				continue
			}
			id := in.Meta.Index
			fmt.Fprintf(bw, "%s\t[ ", NodeName(id))
			for _, u := range users[id] {
				fmt.Fprintf(bw, "'%s', ", NodeName(u))
			}
			bw.WriteString("None ]\n")
		}
	}
	return bw.Flush()
}
