package cfg

import (
	"fmt"
	"strings"
)

// maxInstrShown caps the instructions listed in one DOT node.
const maxInstrShown = 20

// ToDot returns a Graphviz DOT representation of the graph.
func (g *Graph) ToDot() string {
	var sb strings.Builder
	name := "CFG"
	if g.Method != nil && g.Method.Name != "" {
		name = g.Method.Name
	}
	fmt.Fprintf(&sb, "digraph %q {\n", name)
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, fontname=\"Courier\"];\n")

	for _, b := range g.Blocks {
		label := fmt.Sprintf("Block %d (%s)\\noffsets %d..%d", b.ID, b.Type, b.Start, b.Last())
		if g.Method != nil {
			for i, off := 0, b.Start; off < b.End; i, off = i+1, off+1 {
				if i >= maxInstrShown {
					label += "\\n..."
					break
				}
				label += fmt.Sprintf("\\n%d: %s", off, dotEscape(g.Method.Instructions[off].String()))
			}
		}
		fmt.Fprintf(&sb, "  %d [label=\"%s\"];\n", b.ID, label)
	}

	for _, e := range g.Edges() {
		attrs := []string{fmt.Sprintf("label=\"%s\"", edgeLabel(e))}
		if e.Type == EdgeTypeException {
			attrs = append(attrs, "style=dashed", "color=red")
		}
		fmt.Fprintf(&sb, "  %d -> %d [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func edgeLabel(e Edge) string {
	switch e.Type {
	case EdgeTypeSwitchCase:
		return fmt.Sprintf("case %d", e.Key)
	case EdgeTypeSwitchDefault:
		return "default"
	case EdgeTypeException:
		if e.Try != nil {
			return "catch " + dotEscape(e.Try.Type)
		}
	}
	return string(e.Type)
}

func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
