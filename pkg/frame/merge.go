package frame

import (
	"fmt"

	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// Merge joins two frames arriving at the same point. Stack entries merge
// by the value lattice and any conflict marks the result wonky. A stack
// depth mismatch keeps a's stack and marks the result wonky.
//
// Locals that cannot meet keep a's value without marking the frame. A load
// of such a slot is checked against the loading opcode instead.
func Merge(a, b *Frame, oracle value.Oracle) *Frame {
	out := &Frame{}
	if a.Wonky {
		out.MarkWonky(a.Reason)
	}
	if b.Wonky {
		out.MarkWonky(b.Reason)
	}

	if len(a.Stack) != len(b.Stack) {
		out.Stack = append([]value.Value(nil), a.Stack...)
		out.MarkWonky(fmt.Sprintf("stack depth mismatch: %d vs %d", len(a.Stack), len(b.Stack)))
	} else {
		out.Stack = make([]value.Value, len(a.Stack))
		for i := range a.Stack {
			v, wonky, reason := value.Merge(a.Stack[i], b.Stack[i], oracle)
			if wonky {
				out.MarkWonky(fmt.Sprintf("stack[%d]: %s", i, reason))
			}
			out.Stack[i] = v
		}
	}

	n := max(len(a.Locals), len(b.Locals))
	out.Locals = make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, wonky, _ := value.Merge(a.Local(i), b.Local(i), oracle)
		if wonky {
			v = a.Local(i)
		}
		out.Locals[i] = v
	}
	return out
}
