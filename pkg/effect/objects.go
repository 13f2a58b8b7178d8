package effect

import (
	"strings"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// arrayElementDesc returns the element descriptor an array opcode works on.
// aaload and aastore return "" (any reference).
func arrayElementDesc(op types.Opcode) string {
	switch op {
	case types.IALOAD, types.IASTORE:
		return "I"
	case types.LALOAD, types.LASTORE:
		return "J"
	case types.FALOAD, types.FASTORE:
		return "F"
	case types.DALOAD, types.DASTORE:
		return "D"
	case types.BALOAD, types.BASTORE:
		return "B"
	case types.CALOAD, types.CASTORE:
		return "C"
	case types.SALOAD, types.SASTORE:
		return "S"
	default:
		return ""
	}
}

// checkArray validates the array operand of an array instruction and
// returns the descriptor of its elements, or "" when unknown.
func (s *state) checkArray(arr value.Value, want string) string {
	switch arr.Kind {
	case value.KindNull:
		s.wonky("array access on null")
		return ""
	case value.KindObject:
		s.wonky("array access on %s", arr)
		return ""
	case value.KindArray:
		elem := arr.Type
		if arr.Dims > 1 {
			elem = strings.Repeat("[", arr.Dims-1) + arr.Type
		}
		switch {
		case want == "" && types.IsPrimitiveDescriptor(elem):
			s.wonky("reference access on %s", arr)
		case want == "B" && elem == "Z":
			// baload and bastore serve boolean arrays too
		case want != "" && elem != want:
			s.wonky("%s access on %s", want, arr)
		}
		return elem
	}
	return ""
}

func (s *state) arrayLoad() error {
	if _, err := s.popNumeric(value.KindInt); err != nil {
		return err
	}
	arr, err := s.popRef()
	if err != nil {
		return err
	}
	want := arrayElementDesc(s.ins.Op)
	elem := s.checkArray(arr, want)

	switch {
	case want != "":
		v, _ := value.FromDescriptor(want)
		s.push(v)
	case elem != "" && !types.IsPrimitiveDescriptor(elem):
		v, err := value.FromDescriptor(elem)
		if err != nil {
			return s.fail("invalid array element type %q", elem)
		}
		s.push(v)
	default:
		s.push(value.Object(types.ObjectType).OrNull())
	}
	return nil
}

func (s *state) arrayStore() error {
	v, err := s.pop()
	if err != nil {
		return err
	}
	if _, err := s.popNumeric(value.KindInt); err != nil {
		return err
	}
	arr, err := s.popRef()
	if err != nil {
		return err
	}
	want := arrayElementDesc(s.ins.Op)
	elem := s.checkArray(arr, want)

	dest := want
	if dest == "" {
		dest = "Ljava/lang/Object;"
		if elem != "" && !types.IsPrimitiveDescriptor(elem) {
			dest = elem
		}
	}
	return s.assign(v, dest, "array element")
}

func (s *state) arrayLength() error {
	arr, err := s.popRef()
	if err != nil {
		return err
	}
	switch arr.Kind {
	case value.KindNull:
		s.wonky("arraylength on null")
	case value.KindObject:
		s.wonky("arraylength on %s", arr)
	case value.KindArray:
		if n, ok := arr.Length(); ok {
			s.push(value.Int(int32(n)))
			return nil
		}
	}
	s.push(value.Unknown(value.KindInt))
	return nil
}

// maxDims is the deepest array type a descriptor can name.
const maxDims = 255

func (s *state) newArray() error {
	op := s.ins.Op
	dims := 1
	if op == types.MULTIANEWARRAY {
		dims = int(s.ins.Int)
	}
	if dims < 1 || dims > maxDims {
		return s.fail("invalid dimension count %d", dims)
	}
	if dims > s.f.Depth() {
		return s.fail("stack underflow: %d dimensions, depth %d", dims, s.f.Depth())
	}

	counts := make([]value.Value, dims)
	for i := dims - 1; i >= 0; i-- {
		c, err := s.popNumeric(value.KindInt)
		if err != nil {
			return err
		}
		counts[i] = c
	}

	var arr value.Value
	switch op {
	case types.NEWARRAY:
		if !types.IsPrimitiveDescriptor(s.ins.Type) {
			return s.fail("invalid newarray element type %q", s.ins.Type)
		}
		arr = value.Array(s.ins.Type, 1)
	case types.ANEWARRAY:
		elem, err := value.FromType(s.ins.Type)
		if err != nil {
			return s.fail("invalid anewarray element type %q", s.ins.Type)
		}
		arr = value.Array(elemDescriptor(elem), 1)
		if elem.Kind == value.KindArray {
			arr = value.Array(elem.Type, elem.Dims+1)
		}
	default:
		t, err := value.FromType(s.ins.Type)
		if err != nil || t.Kind != value.KindArray || t.Dims < dims {
			return s.fail("invalid multianewarray type %q for %d dimensions", s.ins.Type, dims)
		}
		arr = t
	}

	if counts[0].HasLiteral() {
		if n := counts[0].Int32(); n >= 0 {
			arr = value.ArrayOfLength(arr.Type, arr.Dims, int64(n))
		}
	}
	s.push(arr)
	return nil
}

func elemDescriptor(v value.Value) string {
	if v.Kind == value.KindArray {
		return v.Descriptor()
	}
	return types.ClassDescriptor(v.Type)
}

func (s *state) checkcast() error {
	v, err := s.popRef()
	if err != nil {
		return err
	}
	if v.Kind == value.KindNull {
		s.push(v)
		return nil
	}
	t, err := value.FromType(s.ins.Type)
	if err != nil {
		return s.fail("cannot resolve type %q", s.ins.Type)
	}
	if v.IsTop() || v.Nullable {
		t = t.OrNull()
	}
	s.push(t)
	return nil
}

func (s *state) member() (*types.MemberRef, error) {
	m := s.ins.Member
	if m == nil || m.Desc == "" {
		return nil, s.fail("missing member reference")
	}
	return m, nil
}

func (s *state) field() error {
	m, err := s.member()
	if err != nil {
		return err
	}
	fieldValue, err := value.FromDescriptor(m.Desc)
	if err != nil {
		return s.fail("cannot resolve field type of %s: %v", m, err)
	}

	switch s.ins.Op {
	case types.GETSTATIC:
		s.push(fieldValue)
	case types.PUTSTATIC:
		v, err := s.pop()
		if err != nil {
			return err
		}
		return s.assign(v, m.Desc, "field "+m.Name)
	case types.GETFIELD:
		recv, err := s.receiver("getfield")
		if err != nil {
			return err
		}
		if recv.Kind == value.KindNull {
			s.push(value.Top())
			return nil
		}
		s.push(fieldValue)
	case types.PUTFIELD:
		v, err := s.pop()
		if err != nil {
			return err
		}
		if _, err := s.receiver("putfield"); err != nil {
			return err
		}
		return s.assign(v, m.Desc, "field "+m.Name)
	}
	return nil
}

// receiver pops the object an instance field or method is applied to.
func (s *state) receiver(what string) (value.Value, error) {
	v, err := s.pop()
	if err != nil {
		return v, err
	}
	switch {
	case v.IsNumeric():
		return v, s.fail("%s on %s requires an object", what, v)
	case v.Kind == value.KindNull:
		s.wonky("%s on null", what)
	}
	return v, nil
}

func (s *state) invoke() error {
	m, err := s.member()
	if err != nil {
		return err
	}
	params, ret, err := types.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return s.fail("cannot resolve %s: %v", m, err)
	}

	args := make([]value.Value, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		if args[i], err = s.pop(); err != nil {
			return err
		}
	}
	if s.ins.Op != types.INVOKESTATIC && s.ins.Op != types.INVOKEDYNAMIC {
		if _, err := s.receiver(s.ins.Op.String()); err != nil {
			return err
		}
	}
	for i, p := range params {
		if err := s.assign(args[i], p, "argument of "+m.Name); err != nil {
			return err
		}
	}

	if ret != "V" {
		v, err := value.FromDescriptor(ret)
		if err != nil {
			return s.fail("cannot resolve return type of %s: %v", m, err)
		}
		s.push(v)
	}
	return nil
}

func (s *state) ret() error {
	op := s.ins.Op
	declared := s.ip.Return
	if op == types.RETURN {
		if declared != "" && declared != "V" {
			s.wonky("void return from method returning %s", declared)
		}
		return nil
	}

	v, err := s.pop()
	if err != nil {
		return err
	}
	if declared == "" {
		if op == types.ARETURN {
			declared = "Ljava/lang/Object;"
		} else {
			declared = [...]string{"I", "J", "F", "D"}[op-types.IRETURN]
		}
	}
	if declared == "V" {
		s.wonky("value return from void method")
		return nil
	}
	return s.assign(v, declared, "return value")
}
