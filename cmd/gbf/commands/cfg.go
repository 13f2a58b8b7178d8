package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bytecode-flow/pkg/cfg"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Print the control flow graph of one method file",
	Long: `Builds the Control Flow Graph (CFG) of a YAML or JSON method file.
Prints blocks, edges and cyclomatic complexity, or JSON or Graphviz DOT.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		dotOutput, _ := cmd.Flags().GetBool("dot")
		if jsonOutput && dotOutput {
			return fmt.Errorf("--json and --dot are mutually exclusive")
		}
		format := "text"
		switch {
		case jsonOutput:
			format = "json"
		case dotOutput:
			format = "dot"
		}
		return runCFG(cmd.OutOrStdout(), args[0], format)
	},
}

func runCFG(w io.Writer, path, format string) error {
	m, err := loadMethodFile(path)
	if err != nil {
		return err
	}
	g, err := cfg.Build(m)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	switch format {
	case "json":
		return writeJSON(w, g)
	case "dot":
		_, err := fmt.Fprint(w, g.ToDot())
		return err
	default:
		printGraph(w, g)
		return nil
	}
}

// printGraph prints a graph in human-readable format.
func printGraph(w io.Writer, g *cfg.Graph) {
	m := g.Method
	fmt.Fprintf(w, "=== CFG for %s.%s%s ===\n", m.Owner, m.Name, m.Descriptor)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", g.CyclomaticComplexity())
	fmt.Fprintf(w, "\nBlocks (%d):\n", len(g.Blocks))
	for _, b := range g.Blocks {
		fmt.Fprintf(w, "  %d [%d-%d) %s\n", b.ID, b.Start, b.End, b.Type)
		for off := b.Start; off < b.End; off++ {
			fmt.Fprintf(w, "    %4d  %s\n", off, m.Instructions[off])
		}
	}

	edges := g.Edges()
	fmt.Fprintf(w, "\nEdges (%d):\n", len(edges))
	for _, e := range edges {
		label := string(e.Type)
		if e.Type == cfg.EdgeTypeSwitchCase {
			label = fmt.Sprintf("%s %d", e.Type, e.Key)
		}
		if e.Try != nil {
			label = fmt.Sprintf("%s %s", e.Type, e.Try.Type)
		}
		fmt.Fprintf(w, "  %d --%s--> %d\n", e.From, label, e.To)
	}

	if len(g.TryRanges) > 0 {
		fmt.Fprintf(w, "\nTry ranges (%d):\n", len(g.TryRanges))
		for _, tr := range g.TryRanges {
			fmt.Fprintf(w, "  [%d-%d) -> %d catch %s\n", tr.Start, tr.End, tr.Handler, tr.Type)
		}
	}
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cfgCmd.Flags().Bool("dot", false, "Output as Graphviz DOT")
	RootCmd.AddCommand(cfgCmd)
}
