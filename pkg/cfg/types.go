// Package cfg defines the control flow graph of a method body: basic blocks
// over instruction offsets joined by typed edges.
package cfg

import (
	"sort"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// BlockType classifies a block by its role or by how it ends.
type BlockType string

const (
	BlockTypeEntry   BlockType = "entry"   // Method entry point
	BlockTypeHandler BlockType = "handler" // Exception handler entry
	BlockTypeBranch  BlockType = "branch"  // Ends in a conditional jump or switch
	BlockTypeJump    BlockType = "jump"    // Ends in goto
	BlockTypeReturn  BlockType = "return"  // Ends in a return
	BlockTypeThrow   BlockType = "throw"   // Ends in athrow
	BlockTypePlain   BlockType = "plain"   // Falls through
)

// EdgeType represents the cause of a control transfer.
type EdgeType string

const (
	EdgeTypeFallthrough   EdgeType = "fallthrough"    // Next block in offset order
	EdgeTypeJump          EdgeType = "jump"           // Jump instruction target
	EdgeTypeSwitchCase    EdgeType = "switch_case"    // Switch case target
	EdgeTypeSwitchDefault EdgeType = "switch_default" // Switch default target
	EdgeTypeException     EdgeType = "exception"      // Try range to handler
)

// TryRange is a try-catch entry with its labels resolved to offsets.
type TryRange struct {
	Index   int    `json:"index"`   // position in the method's try-catch list
	Start   int    `json:"start"`   // first covered offset
	End     int    `json:"end"`     // offset after the last covered instruction
	Handler int    `json:"handler"` // handler offset
	Type    string `json:"type"`    // caught type internal name
}

// Covers reports whether offset lies inside the range.
func (r *TryRange) Covers(offset int) bool { return offset >= r.Start && offset < r.End }

// Edge is a directed control transfer between two blocks.
type Edge struct {
	From int       `json:"from"`          // source block ID
	To   int       `json:"to"`            // target block ID
	Type EdgeType  `json:"type"`          // cause of the transfer
	Key  int32     `json:"key,omitempty"` // switch_case match value
	Try  *TryRange `json:"try,omitempty"` // exception edges only
}

// Block is a maximal straight-line run of instructions [Start, End).
type Block struct {
	ID    int       `json:"id"`    // ordinal by start offset
	Start int       `json:"start"` // first instruction offset
	End   int       `json:"end"`   // offset after the last instruction
	Type  BlockType `json:"type"`
	Edges []Edge    `json:"edges"` // outgoing, exception edges first
}

// Len returns the number of instructions in the block.
func (b *Block) Len() int { return b.End - b.Start }

// Contains reports whether offset belongs to the block.
func (b *Block) Contains(offset int) bool { return offset >= b.Start && offset < b.End }

// Last returns the offset of the block's final instruction.
func (b *Block) Last() int { return b.End - 1 }

// Successors returns the distinct target block IDs in edge order.
func (b *Block) Successors() []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range b.Edges {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}

// Graph is the immutable block graph of one method.
type Graph struct {
	Method    *types.Method `json:"-"`
	Blocks    []*Block      `json:"blocks"`
	TryRanges []TryRange    `json:"try_ranges,omitempty"` // non-empty ranges in declaration order

	blockOf []int // instruction offset to block ID
}

// Block returns the block starting at offset.
func (g *Graph) Block(start int) (*Block, bool) {
	b, ok := g.BlockAt(start)
	if !ok || b.Start != start {
		return nil, false
	}
	return b, true
}

// BlockAt returns the block containing offset.
func (g *Graph) BlockAt(offset int) (*Block, bool) {
	if offset < 0 || offset >= len(g.blockOf) {
		return nil, false
	}
	return g.Blocks[g.blockOf[offset]], true
}

// Edges returns every edge of the graph, grouped by source block.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, b := range g.Blocks {
		out = append(out, b.Edges...)
	}
	return out
}

// EdgesBetween returns the edges from block from to block to, keeping
// duplicates.
func (g *Graph) EdgesBetween(from, to int) []Edge {
	if from < 0 || from >= len(g.Blocks) {
		return nil
	}
	var out []Edge
	for _, e := range g.Blocks[from].Edges {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}

// Predecessors returns the sorted distinct IDs of blocks with an edge to id.
func (g *Graph) Predecessors(id int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, b := range g.Blocks {
		for _, e := range b.Edges {
			if e.To == id && !seen[b.ID] {
				seen[b.ID] = true
				out = append(out, b.ID)
			}
		}
	}
	sort.Ints(out)
	return out
}

// CyclomaticComplexity returns E - N + 2 over the block graph, or 0 for an
// empty method.
func (g *Graph) CyclomaticComplexity() int {
	if len(g.Blocks) == 0 {
		return 0
	}
	return len(g.Edges()) - len(g.Blocks) + 2
}
