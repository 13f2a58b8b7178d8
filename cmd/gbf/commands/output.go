package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// loadMethodFile checks that path is a regular file and decodes it.
func loadMethodFile(path string) (*types.Method, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a method file: %s", path)
	}
	return types.LoadMethod(path)
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatStack renders a stack bottom to top.
func formatStack(stack []string) string {
	return "[" + strings.Join(stack, ", ") + "]"
}

// formatLocals renders the set local slots in slot order.
func formatLocals(locals map[int]string) string {
	slots := make([]int, 0, len(locals))
	for s := range locals {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = fmt.Sprintf("%d: %s", s, locals[s])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
