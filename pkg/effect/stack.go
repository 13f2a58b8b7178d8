package effect

import (
	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// stackOp handles pop, dup and swap forms. Operands are counted in stack
// words so long and double values are moved as a unit.
func (s *state) stackOp() error {
	switch s.ins.Op {
	case types.POP:
		_, err := s.popWords(1)
		return err
	case types.POP2:
		_, err := s.popWords(2)
		return err
	case types.DUP:
		v1, err := s.popWords(1)
		if err != nil {
			return err
		}
		s.pushAll(v1, v1)
	case types.DUP_X1:
		v1, err := s.popWords(1)
		if err != nil {
			return err
		}
		v2, err := s.popWords(1)
		if err != nil {
			return err
		}
		s.pushAll(v1, v2, v1)
	case types.DUP_X2:
		v1, err := s.popWords(1)
		if err != nil {
			return err
		}
		v2, err := s.popWords(2)
		if err != nil {
			return err
		}
		s.pushAll(v1, v2, v1)
	case types.DUP2:
		v1, err := s.popWords(2)
		if err != nil {
			return err
		}
		s.pushAll(v1, v1)
	case types.DUP2_X1:
		v1, err := s.popWords(2)
		if err != nil {
			return err
		}
		v2, err := s.popWords(1)
		if err != nil {
			return err
		}
		s.pushAll(v1, v2, v1)
	case types.DUP2_X2:
		v1, err := s.popWords(2)
		if err != nil {
			return err
		}
		v2, err := s.popWords(2)
		if err != nil {
			return err
		}
		s.pushAll(v1, v2, v1)
	case types.SWAP:
		v1, err := s.popWords(1)
		if err != nil {
			return err
		}
		v2, err := s.popWords(1)
		if err != nil {
			return err
		}
		s.pushAll(v1, v2)
	}
	return nil
}

func (s *state) pushAll(groups ...[]value.Value) {
	for _, g := range groups {
		s.push(g...)
	}
}
