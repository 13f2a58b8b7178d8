package dfg

import (
	"github.com/l3aro/go-bytecode-flow/pkg/cfg"
	"github.com/l3aro/go-bytecode-flow/pkg/frame"
	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// Analysis is the read-only result of analyzing one method. Frames are the
// state after each instruction and are nil for unreachable instructions.
type Analysis struct {
	method  *types.Method
	graph   *cfg.Graph
	frames  []*frame.Frame // by instruction offset
	entries []*frame.Frame // by block ID
}

// Method returns the analyzed method.
func (a *Analysis) Method() *types.Method { return a.method }

// Graph returns the control flow graph the frames were computed over.
func (a *Analysis) Graph() *cfg.Graph { return a.graph }

// Blocks returns the blocks ordered by ID.
func (a *Analysis) Blocks() []*cfg.Block { return a.graph.Blocks }

// Block returns the block starting at offset.
func (a *Analysis) Block(start int) (*cfg.Block, bool) { return a.graph.Block(start) }

// BlockAt returns the block containing offset.
func (a *Analysis) BlockAt(offset int) (*cfg.Block, bool) { return a.graph.BlockAt(offset) }

// BlockFrames returns the frames after each instruction of b.
func (a *Analysis) BlockFrames(b *cfg.Block) []*frame.Frame {
	return a.frames[b.Start:b.End:b.End]
}

// BlockInstructions returns the instructions of b.
func (a *Analysis) BlockInstructions(b *cfg.Block) []types.Instruction {
	return a.method.Instructions[b.Start:b.End:b.End]
}

// EntryFrame returns the merged frame on entry to block id, nil when the
// block is unreachable.
func (a *Analysis) EntryFrame(id int) *frame.Frame {
	if id < 0 || id >= len(a.entries) {
		return nil
	}
	return a.entries[id]
}

// Frames returns every frame in instruction order.
func (a *Analysis) Frames() []*frame.Frame {
	return append([]*frame.Frame(nil), a.frames...)
}

// Frame returns the frame after the instruction at offset.
func (a *Analysis) Frame(offset int) *frame.Frame {
	if offset < 0 || offset >= len(a.frames) {
		return nil
	}
	return a.frames[offset]
}

// LastFrame returns the frame after the final instruction, nil for an empty
// method or an unreachable final instruction.
func (a *Analysis) LastFrame() *frame.Frame {
	return a.Frame(len(a.frames) - 1)
}

// Edges returns the edges from block from to block to.
func (a *Analysis) Edges(from, to int) []cfg.Edge { return a.graph.EdgesBetween(from, to) }

// WonkyFrames returns the offsets of wonky frames in ascending order.
func (a *Analysis) WonkyFrames() []int {
	var out []int
	for off, f := range a.frames {
		if f != nil && f.Wonky {
			out = append(out, off)
		}
	}
	return out
}

// IsWonky reports whether any frame is wonky.
func (a *Analysis) IsWonky() bool {
	for _, f := range a.frames {
		if f != nil && f.Wonky {
			return true
		}
	}
	return false
}

// Reachable returns the number of instructions with a frame.
func (a *Analysis) Reachable() int {
	n := 0
	for _, f := range a.frames {
		if f != nil {
			n++
		}
	}
	return n
}

// Diagnostic describes one wonky frame.
type Diagnostic struct {
	Offset      int    `json:"offset" msgpack:"offset"`                 // instruction offset
	Line        int    `json:"line,omitempty" msgpack:"line,omitempty"` // source line, 0 if unknown
	Instruction string `json:"instruction" msgpack:"instruction"`       // rendered instruction
	Reason      string `json:"reason" msgpack:"reason"`                 // first wonky reason
}

// Summary condenses an Analysis into counts and diagnostics. It carries no
// frames and is what the check command caches.
type Summary struct {
	Owner        string       `json:"owner" msgpack:"owner"`
	Name         string       `json:"name" msgpack:"name"`
	Descriptor   string       `json:"descriptor" msgpack:"descriptor"`
	Instructions int          `json:"instructions" msgpack:"instructions"` // instruction count
	Reachable    int          `json:"reachable" msgpack:"reachable"`       // instructions with a frame
	Blocks       int          `json:"blocks" msgpack:"blocks"`             // basic block count
	Edges        int          `json:"edges" msgpack:"edges"`               // edge count, duplicates included
	Complexity   int          `json:"complexity" msgpack:"complexity"`     // cyclomatic complexity
	MaxStack     int          `json:"max_stack" msgpack:"max_stack"`       // deepest stack in values
	MaxLocals    int          `json:"max_locals" msgpack:"max_locals"`     // highest used slot + 1
	Wonky        []Diagnostic `json:"wonky,omitempty" msgpack:"wonky,omitempty"`
}

// Summary computes the summary of a.
func (a *Analysis) Summary() Summary {
	m := a.method
	s := Summary{
		Owner:        m.Owner,
		Name:         m.Name,
		Descriptor:   m.Descriptor,
		Instructions: len(m.Instructions),
		Blocks:       len(a.graph.Blocks),
		Edges:        len(a.graph.Edges()),
		Complexity:   a.graph.CyclomaticComplexity(),
	}
	for off, f := range a.frames {
		if f == nil {
			continue
		}
		s.Reachable++
		s.MaxStack = max(s.MaxStack, f.Depth())
		for slot := len(f.Locals) - 1; slot >= s.MaxLocals; slot-- {
			if !f.Locals[slot].IsTop() {
				s.MaxLocals = slot + 1
				break
			}
		}
		if f.Wonky {
			s.Wonky = append(s.Wonky, a.diagnostic(off, f))
		}
	}
	return s
}

func (a *Analysis) diagnostic(off int, f *frame.Frame) Diagnostic {
	ins := a.method.Instructions[off]
	return Diagnostic{Offset: off, Line: ins.Line, Instruction: ins.String(), Reason: f.Reason}
}

// FrameReport is the printable state after one instruction.
type FrameReport struct {
	Offset      int            `json:"offset"`
	Line        int            `json:"line,omitempty"`
	Labels      []string       `json:"labels,omitempty"` // labels placed at this offset
	Instruction string         `json:"instruction"`
	Unreachable bool           `json:"unreachable,omitempty"`
	Stack       []string       `json:"stack"`  // bottom to top
	Locals      map[int]string `json:"locals"` // set slots only
	Wonky       bool           `json:"wonky,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// BlockReport is one block with its entry state and frames.
type BlockReport struct {
	ID     int           `json:"id"`
	Start  int           `json:"start"`
	End    int           `json:"end"`
	Type   cfg.BlockType `json:"type"`
	Entry  *FrameReport  `json:"entry,omitempty"` // nil when unreachable
	Edges  []cfg.Edge    `json:"edges"`
	Frames []FrameReport `json:"frames"`
}

// Report is the full printable view of an Analysis.
type Report struct {
	Method  string        `json:"method"` // owner.name descriptor
	Summary Summary       `json:"summary"`
	Blocks  []BlockReport `json:"blocks"`
}

// Report renders a for display or JSON output.
func (a *Analysis) Report() Report {
	m := a.method
	r := Report{
		Method:  m.Owner + "." + m.Name + m.Descriptor,
		Summary: a.Summary(),
		Blocks:  make([]BlockReport, 0, len(a.graph.Blocks)),
	}
	for _, b := range a.graph.Blocks {
		br := BlockReport{
			ID:     b.ID,
			Start:  b.Start,
			End:    b.End,
			Type:   b.Type,
			Edges:  b.Edges,
			Frames: make([]FrameReport, 0, b.Len()),
		}
		if br.Edges == nil {
			br.Edges = []cfg.Edge{}
		}
		if e := a.entries[b.ID]; e != nil {
			entry := frameReport(e)
			entry.Offset = b.Start
			br.Entry = &entry
		}
		for off := b.Start; off < b.End; off++ {
			ins := m.Instructions[off]
			fr := FrameReport{Unreachable: true, Stack: []string{}, Locals: map[int]string{}}
			if f := a.frames[off]; f != nil {
				fr = frameReport(f)
			}
			fr.Offset = off
			fr.Line = ins.Line
			fr.Labels = m.LabelsAt(off)
			fr.Instruction = ins.String()
			br.Frames = append(br.Frames, fr)
		}
		r.Blocks = append(r.Blocks, br)
	}
	return r
}

func frameReport(f *frame.Frame) FrameReport {
	return FrameReport{
		Stack:  f.StackStrings(),
		Locals: f.LocalStrings(),
		Wonky:  f.Wonky,
		Reason: f.Reason,
	}
}
