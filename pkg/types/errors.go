package types

import (
	"errors"
	"fmt"
)

// AnalysisError is a structural failure that stops analysis of a method:
// stack underflow, an operand of the wrong fundamental category, an
// unresolvable type reference, or malformed control flow metadata.
type AnalysisError struct {
	Offset int    // instruction offset, -1 when not tied to an instruction
	Line   int    // source line, 0 if unknown
	Op     Opcode // opcode at Offset
	Msg    string
}

func (e *AnalysisError) Error() string {
	if e.Offset < 0 {
		return "analysis error: " + e.Msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("analysis error at offset %d (line %d, %s): %s", e.Offset, e.Line, e.Op, e.Msg)
	}
	return fmt.Sprintf("analysis error at offset %d (%s): %s", e.Offset, e.Op, e.Msg)
}

// Errorf builds an AnalysisError for the instruction at offset.
func Errorf(offset int, in Instruction, format string, args ...any) *AnalysisError {
	return &AnalysisError{
		Offset: offset,
		Line:   in.Line,
		Op:     in.Op,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// MethodErrorf builds an AnalysisError not tied to an instruction.
func MethodErrorf(format string, args ...any) *AnalysisError {
	return &AnalysisError{Offset: -1, Msg: fmt.Sprintf(format, args...)}
}

// AsAnalysisError unwraps err to an AnalysisError.
func AsAnalysisError(err error) (*AnalysisError, bool) {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
