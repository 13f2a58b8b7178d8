package cfg

import (
	"sort"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// Build partitions a method body into basic blocks and derives their edges.
//
// A block starts at offset 0, at every label referenced by a jump, switch
// or try-catch entry, at every try range end and after every branch,
// switch, return or throw. Labels nobody references do not split blocks.
func Build(m *types.Method) (*Graph, error) {
	n := len(m.Instructions)
	for name, off := range m.Labels {
		if off < 0 || off > n {
			return nil, types.MethodErrorf("label %q at offset %d is outside the method (%d instructions)", name, off, n)
		}
	}

	b := &builder{m: m, n: n, starts: make(map[int]bool)}
	if n > 0 {
		b.starts[0] = true
	}
	if err := b.scanInstructions(); err != nil {
		return nil, err
	}
	if err := b.scanTryCatches(); err != nil {
		return nil, err
	}

	g := &Graph{Method: m, TryRanges: b.ranges}
	b.slice(g)
	if err := b.link(g); err != nil {
		return nil, err
	}
	return g, nil
}

type builder struct {
	m      *types.Method
	n      int
	starts map[int]bool
	ranges []TryRange
}

func (b *builder) label(name string) (int, bool) {
	off, ok := b.m.Labels[name]
	return off, ok
}

// target resolves a branch label of the instruction at offset. Branching to
// the end of the method is an error.
func (b *builder) target(offset int, name string) (int, error) {
	ins := b.m.Instructions[offset]
	off, ok := b.label(name)
	if !ok {
		return 0, types.Errorf(offset, ins, "unknown label %q", name)
	}
	if off >= b.n {
		return 0, types.Errorf(offset, ins, "label %q points past the last instruction", name)
	}
	return off, nil
}

func (b *builder) scanInstructions() error {
	for i, ins := range b.m.Instructions {
		switch {
		case ins.Op.IsJump():
			t, err := b.target(i, ins.Target)
			if err != nil {
				return err
			}
			b.starts[t] = true
		case ins.Op.IsSwitch():
			if ins.Switch == nil {
				return types.Errorf(i, ins, "missing switch operands")
			}
			for _, c := range append(append([]string(nil), ins.Switch.Cases...), ins.Switch.Default) {
				t, err := b.target(i, c)
				if err != nil {
					return err
				}
				b.starts[t] = true
			}
		}
		if ins.Op.EndsBlock() && i+1 < b.n {
			b.starts[i+1] = true
		}
	}
	return nil
}

func (b *builder) scanTryCatches() error {
	for i, tc := range b.m.TryCatches {
		start, ok1 := b.label(tc.Start)
		end, ok2 := b.label(tc.End)
		handler, ok3 := b.label(tc.Handler)
		switch {
		case !ok1 || !ok2 || !ok3:
			return types.MethodErrorf("try-catch %d references an unknown label (%s, %s, %s)", i, tc.Start, tc.End, tc.Handler)
		case start > end:
			return types.MethodErrorf("try-catch %d has start %q after end %q", i, tc.Start, tc.End)
		case handler >= b.n:
			return types.MethodErrorf("try-catch %d handler %q points past the last instruction", i, tc.Handler)
		case start == end:
			continue
		}
		b.starts[start] = true
		b.starts[handler] = true
		if end < b.n {
			b.starts[end] = true
		}
		b.ranges = append(b.ranges, TryRange{
			Index:   i,
			Start:   start,
			End:     end,
			Handler: handler,
			Type:    tc.CatchType(),
		})
	}
	return nil
}

// slice cuts the instruction stream at the sorted block starts.
func (b *builder) slice(g *Graph) {
	offsets := make([]int, 0, len(b.starts))
	for off := range b.starts {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	handlers := make(map[int]bool)
	for _, r := range b.ranges {
		handlers[r.Handler] = true
	}

	g.blockOf = make([]int, b.n)
	for id, start := range offsets {
		end := b.n
		if id+1 < len(offsets) {
			end = offsets[id+1]
		}
		blk := &Block{ID: id, Start: start, End: end}
		switch {
		case start == 0:
			blk.Type = BlockTypeEntry
		case handlers[start]:
			blk.Type = BlockTypeHandler
		default:
			blk.Type = blockType(b.m.Instructions[end-1].Op)
		}
		for off := start; off < end; off++ {
			g.blockOf[off] = id
		}
		g.Blocks = append(g.Blocks, blk)
	}
}

func blockType(op types.Opcode) BlockType {
	switch {
	case op.IsConditionalJump() || op.IsSwitch():
		return BlockTypeBranch
	case op == types.GOTO:
		return BlockTypeJump
	case op.IsReturn():
		return BlockTypeReturn
	case op == types.ATHROW:
		return BlockTypeThrow
	default:
		return BlockTypePlain
	}
}

// link adds exception edges first, then the edges of each block's final
// instruction.
func (b *builder) link(g *Graph) error {
	for _, blk := range g.Blocks {
		for i := range b.ranges {
			r := &g.TryRanges[i]
			if blk.Start < r.End && r.Start < blk.End {
				blk.Edges = append(blk.Edges, Edge{
					From: blk.ID,
					To:   g.blockOf[r.Handler],
					Type: EdgeTypeException,
					Try:  r,
				})
			}
		}

		last := blk.Last()
		ins := b.m.Instructions[last]
		edge := func(label string, typ EdgeType, key int32) error {
			t, err := b.target(last, label)
			if err != nil {
				return err
			}
			blk.Edges = append(blk.Edges, Edge{From: blk.ID, To: g.blockOf[t], Type: typ, Key: key})
			return nil
		}

		switch {
		case ins.Op.IsJump():
			if err := edge(ins.Target, EdgeTypeJump, 0); err != nil {
				return err
			}
		case ins.Op.IsSwitch():
			for i, c := range ins.Switch.Cases {
				if err := edge(c, EdgeTypeSwitchCase, ins.Switch.Key(i)); err != nil {
					return err
				}
			}
			if err := edge(ins.Switch.Default, EdgeTypeSwitchDefault, 0); err != nil {
				return err
			}
		}
		if !ins.Op.IsTerminal() && blk.End < b.n {
			blk.Edges = append(blk.Edges, Edge{From: blk.ID, To: blk.ID + 1, Type: EdgeTypeFallthrough})
		}
	}
	return nil
}
