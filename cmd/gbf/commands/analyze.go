package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-bytecode-flow/pkg/dfg"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Print the frames of one method file",
	Long: `Runs the dataflow analysis over a YAML or JSON method file and prints, for
every basic block, its entry state and the stack and locals after each
instruction. Frames with inconsistent merges are flagged as wonky.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(filepath.Dir(args[0]))
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return runAnalyze(cmd.OutOrStdout(), e, args[0], jsonOutput)
	},
}

func runAnalyze(w io.Writer, e *env, path string, jsonOutput bool) error {
	m, err := loadMethodFile(path)
	if err != nil {
		return err
	}
	a, err := e.analyzer.Analyze(m)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	report := a.Report()
	if jsonOutput {
		return writeJSON(w, report)
	}
	printReport(w, report)
	return nil
}

// printReport prints a report in human-readable format.
func printReport(w io.Writer, r dfg.Report) {
	s := r.Summary
	fmt.Fprintf(w, "=== %s ===\n", r.Method)
	fmt.Fprintf(w, "Instructions: %d (%d reachable)\n", s.Instructions, s.Reachable)
	fmt.Fprintf(w, "Blocks: %d, Edges: %d, Cyclomatic Complexity: %d\n", s.Blocks, s.Edges, s.Complexity)
	fmt.Fprintf(w, "Max Stack: %d, Max Locals: %d\n", s.MaxStack, s.MaxLocals)

	for _, b := range r.Blocks {
		fmt.Fprintf(w, "\nBlock %d [%d-%d) %s\n", b.ID, b.Start, b.End, b.Type)
		if b.Entry == nil {
			fmt.Fprintln(w, "  entry: unreachable")
		} else {
			fmt.Fprintf(w, "  entry: %s %s\n", formatStack(b.Entry.Stack), formatLocals(b.Entry.Locals))
		}
		for _, f := range b.Frames {
			for _, l := range f.Labels {
				fmt.Fprintf(w, "  %s:\n", l)
			}
			state := "unreachable"
			if !f.Unreachable {
				state = formatStack(f.Stack) + " " + formatLocals(f.Locals)
			}
			fmt.Fprintf(w, "  %4d  %-28s %s\n", f.Offset, f.Instruction, state)
			if f.Wonky {
				fmt.Fprintf(w, "        ! wonky: %s\n", f.Reason)
			}
		}
		for _, edge := range b.Edges {
			fmt.Fprintf(w, "  -> %d (%s)\n", edge.To, edge.Type)
		}
	}

	if len(s.Wonky) > 0 {
		fmt.Fprintf(w, "\nWonky frames (%d):\n", len(s.Wonky))
		for _, d := range s.Wonky {
			fmt.Fprintf(w, "  offset %d line %d %s: %s\n", d.Offset, d.Line, d.Instruction, d.Reason)
		}
	}
}

func init() {
	analyzeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(analyzeCmd)
}
