// Package dfg runs the fixed-point dataflow pass over a method's control
// flow graph and exposes the resulting per-instruction frames.
package dfg

import (
	"container/list"

	"github.com/l3aro/go-bytecode-flow/internal/log"
	"github.com/l3aro/go-bytecode-flow/pkg/cfg"
	"github.com/l3aro/go-bytecode-flow/pkg/effect"
	"github.com/l3aro/go-bytecode-flow/pkg/frame"
	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// DefaultVisitsPerBlock scales the visit budget with the number of blocks.
const DefaultVisitsPerBlock = 64

// visitSlack is added to every visit budget so tiny methods are never cut short.
const visitSlack = 1024

// blockState tracks a block through the worklist.
type blockState uint8

const (
	stateUnreached  blockState = iota // no entry frame yet
	statePending                      // queued for processing
	stateProcessing                   // frames being computed
	stateSettled                      // no change since last visit
)

// Analyzer computes Analysis values. It holds only configuration and may be
// shared between goroutines as long as its oracle is safe for concurrent use.
type Analyzer struct {
	oracle         value.Oracle
	logger         log.Logger
	visitsPerBlock int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithOracle sets the inheritance oracle used for object merges.
func WithOracle(o value.Oracle) Option {
	return func(a *Analyzer) { a.oracle = o }
}

// WithLogger sets the logger for block visits and wonky merges.
func WithLogger(l log.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxVisits sets the per-block visit factor of the convergence budget.
// Values below 1 restore the default.
func WithMaxVisits(perBlock int) Option {
	return func(a *Analyzer) {
		if perBlock < 1 {
			perBlock = DefaultVisitsPerBlock
		}
		a.visitsPerBlock = perBlock
	}
}

// NewAnalyzer creates an Analyzer. Without WithOracle every object merge of
// distinct classes yields java/lang/Object.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:         log.Nop(),
		visitsPerBlock: DefaultVisitsPerBlock,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the analyzer with the given oracle and default settings.
func Analyze(m *types.Method, oracle value.Oracle) (*Analysis, error) {
	return NewAnalyzer(WithOracle(oracle)).Analyze(m)
}

// Analyze builds the control flow graph of m and computes the frame after
// every reachable instruction. The first structural problem is returned as
// a *types.AnalysisError and no partial result is produced.
func (a *Analyzer) Analyze(m *types.Method) (*Analysis, error) {
	params, ret, err := types.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return nil, types.MethodErrorf("%s%s: %v", m.Name, m.Descriptor, err)
	}
	entry, err := entryFrame(m, params)
	if err != nil {
		return nil, err
	}
	g, err := cfg.Build(m)
	if err != nil {
		return nil, err
	}

	r := &run{
		a:       a,
		m:       m,
		g:       g,
		ip:      &effect.Interpreter{Oracle: a.oracle, Return: ret},
		frames:  make([]*frame.Frame, len(m.Instructions)),
		entries: make([]*frame.Frame, len(g.Blocks)),
		states:  make([]blockState, len(g.Blocks)),
		queue:   list.New(),
		budget:  a.visitsPerBlock*len(g.Blocks) + visitSlack,
	}
	if len(g.Blocks) > 0 {
		r.entries[0] = entry
		r.enqueue(0)
	}
	if err := r.loop(); err != nil {
		return nil, err
	}

	a.logger.Debug("analyzed method",
		"method", m.Owner+"."+m.Name+m.Descriptor,
		"blocks", len(g.Blocks),
		"visits", r.visits)
	return &Analysis{method: m, graph: g, frames: r.frames, entries: r.entries}, nil
}

// entryFrame seeds the locals from the receiver and the declared parameters.
func entryFrame(m *types.Method, params []string) (*frame.Frame, error) {
	var locals []value.Value
	if !m.IsStatic() {
		recv, err := value.FromType(m.Owner)
		if err != nil {
			return nil, types.MethodErrorf("receiver type %q: %v", m.Owner, err)
		}
		locals = append(locals, recv)
	}
	for i, p := range params {
		v, err := value.FromDescriptor(p)
		if err != nil {
			return nil, types.MethodErrorf("parameter %d: %v", i, err)
		}
		locals = append(locals, v)
		if v.Category() == 2 {
			locals = append(locals, value.Top())
		}
	}
	return frame.New(locals), nil
}

// run is the mutable state of one Analyze call.
type run struct {
	a       *Analyzer
	m       *types.Method
	g       *cfg.Graph
	ip      *effect.Interpreter
	frames  []*frame.Frame
	entries []*frame.Frame
	states  []blockState
	queue   *list.List
	visits  int
	budget  int
}

func (r *run) enqueue(id int) {
	if r.states[id] == statePending {
		return
	}
	r.states[id] = statePending
	r.queue.PushBack(id)
}

func (r *run) loop() error {
	for r.queue.Len() > 0 {
		id := r.queue.Remove(r.queue.Front()).(int)
		r.visits++
		if r.visits > r.budget {
			return types.MethodErrorf("no fixed point after %d block visits", r.budget)
		}

		r.states[id] = stateProcessing
		blk := r.g.Blocks[id]
		r.a.logger.Debug("visit block", "block", id, "start", blk.Start, "visit", r.visits)
		if err := r.process(blk); err != nil {
			return err
		}
		r.states[id] = stateSettled
		r.propagate(blk)
	}
	return nil
}

// process computes the frame after each instruction of blk. Only the first
// instruction sees the entry frame's wonky flag.
func (r *run) process(blk *cfg.Block) error {
	in := r.entries[blk.ID]
	for off := blk.Start; off < blk.End; off++ {
		out, err := r.ip.Apply(off, r.m.Instructions[off], in)
		if err != nil {
			return err
		}
		r.frames[off] = out
		in = clean(out)
	}
	return nil
}

// propagate merges candidate frames into the successors of blk and queues
// every successor whose entry frame changed.
func (r *run) propagate(blk *cfg.Block) {
	exit := clean(r.frames[blk.Last()])
	for _, e := range blk.Edges {
		cand := exit
		if e.Type == cfg.EdgeTypeException {
			cand = r.handlerFrame(blk, e.Try)
		}

		old := r.entries[e.To]
		if old == nil {
			r.entries[e.To] = cand
			r.enqueue(e.To)
			continue
		}
		merged := frame.Merge(old, cand, r.a.oracle)
		if merged.Equal(old) {
			continue
		}
		if merged.Wonky && !old.Wonky {
			r.a.logger.Debug("wonky merge", "from", blk.ID, "to", e.To, "reason", merged.Reason)
		}
		r.entries[e.To] = merged
		r.enqueue(e.To)
	}
}

// handlerFrame merges the locals in effect before every instruction of blk
// covered by the try range. The stack holds only the caught exception.
func (r *run) handlerFrame(blk *cfg.Block, tr *cfg.TryRange) *frame.Frame {
	caught := value.Object(tr.Type)
	var out *frame.Frame
	for off := blk.Start; off < blk.End; off++ {
		if !tr.Covers(off) {
			continue
		}
		pre := r.entries[blk.ID]
		if off > blk.Start {
			pre = r.frames[off-1]
		}
		f := &frame.Frame{Locals: pre.Locals, Stack: []value.Value{caught}}
		if out == nil {
			out = f.Clone()
			continue
		}
		out = frame.Merge(out, f, r.a.oracle)
	}
	if out == nil {
		out = &frame.Frame{Locals: r.entries[blk.ID].Locals, Stack: []value.Value{caught}}
		out = out.Clone()
	}
	return clean(out)
}

// clean returns f without its wonky mark. Slices are shared.
func clean(f *frame.Frame) *frame.Frame {
	if !f.Wonky {
		return f
	}
	c := *f
	c.Wonky, c.Reason = false, ""
	return &c
}
