// Package frame models the abstract machine state around a single
// instruction: the operand stack, the local variable slots and whether the
// state is wonky (locally inconsistent but still usable).
package frame

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// Frame is an operand stack (top last) plus local variable slots. A Frame
// is treated as immutable once handed out; transitions work on a Clone.
type Frame struct {
	Stack  []value.Value `json:"-"`
	Locals []value.Value `json:"-"`
	Wonky  bool          `json:"wonky"`
	Reason string        `json:"reason,omitempty"` // first wonky reason
}

// New returns a frame with the given locals and an empty stack.
func New(locals []value.Value) *Frame {
	f := &Frame{Locals: make([]value.Value, len(locals))}
	copy(f.Locals, locals)
	return f
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Stack:  make([]value.Value, len(f.Stack)),
		Locals: make([]value.Value, len(f.Locals)),
		Wonky:  f.Wonky,
		Reason: f.Reason,
	}
	copy(c.Stack, f.Stack)
	copy(c.Locals, f.Locals)
	return c
}

// Depth returns the number of values on the stack.
func (f *Frame) Depth() int { return len(f.Stack) }

// Push pushes values in order.
func (f *Frame) Push(vs ...value.Value) {
	f.Stack = append(f.Stack, vs...)
}

// Pop removes and returns the top of the stack.
func (f *Frame) Pop() (value.Value, bool) {
	if len(f.Stack) == 0 {
		return value.Value{}, false
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, true
}

// Peek returns the value n entries below the top (0 is the top).
func (f *Frame) Peek(n int) (value.Value, bool) {
	if n < 0 || n >= len(f.Stack) {
		return value.Value{}, false
	}
	return f.Stack[len(f.Stack)-1-n], true
}

// Local returns the value in slot, Top when unset.
func (f *Frame) Local(slot int) value.Value {
	if slot < 0 || slot >= len(f.Locals) {
		return value.Top()
	}
	return f.Locals[slot]
}

// SetLocal writes slot, growing the locals as needed.
func (f *Frame) SetLocal(slot int, v value.Value) {
	for len(f.Locals) <= slot {
		f.Locals = append(f.Locals, value.Top())
	}
	f.Locals[slot] = v
}

// MarkWonky flags the frame. Only the first reason is kept.
func (f *Frame) MarkWonky(reason string) {
	if !f.Wonky {
		f.Wonky = true
		f.Reason = reason
	}
}

// Equal reports whether two frames hold the same values and wonky flag.
// Reasons are not compared and trailing Top locals are ignored.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.Wonky != o.Wonky || len(f.Stack) != len(o.Stack) {
		return false
	}
	for i := range f.Stack {
		if f.Stack[i] != o.Stack[i] {
			return false
		}
	}
	n := max(len(f.Locals), len(o.Locals))
	for i := 0; i < n; i++ {
		if f.Local(i) != o.Local(i) {
			return false
		}
	}
	return true
}

// StackStrings renders the stack bottom to top.
func (f *Frame) StackStrings() []string {
	out := make([]string, len(f.Stack))
	for i, v := range f.Stack {
		out[i] = v.String()
	}
	return out
}

// LocalStrings renders the set locals keyed by slot.
func (f *Frame) LocalStrings() map[int]string {
	out := make(map[int]string)
	for i, v := range f.Locals {
		if !v.IsTop() {
			out[i] = v.String()
		}
	}
	return out
}

func (f *Frame) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.Join(f.StackStrings(), ", "))
	sb.WriteString("] {")
	first := true
	for i, v := range f.Locals {
		if v.IsTop() {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%d: %s", i, v)
	}
	sb.WriteString("}")
	if f.Wonky {
		sb.WriteString(" wonky: " + f.Reason)
	}
	return sb.String()
}
