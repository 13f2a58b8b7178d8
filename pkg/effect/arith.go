package effect

import (
	"math"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

var numericKinds = [4]value.Kind{value.KindInt, value.KindLong, value.KindFloat, value.KindDouble}

// binaryKind returns the operand kind of a two-operand arithmetic or
// bitwise opcode.
func binaryKind(op types.Opcode) value.Kind {
	if op >= types.IAND {
		return numericKinds[(op-types.IAND)%2]
	}
	return numericKinds[(op-types.IADD)%4]
}

// operands pops the two operands of a binary instruction on kind k and
// reports whether both are usable literals.
func (s *state) operands(k value.Kind) (a, b value.Value, ok bool, err error) {
	if b, err = s.pop(); err != nil {
		return
	}
	if a, err = s.pop(); err != nil {
		return
	}
	for _, v := range []value.Value{a, b} {
		if v.IsReference() {
			err = s.fail("arithmetic on %s", v)
			return
		}
	}
	if a.IsNumeric() && b.IsNumeric() && a.Kind != b.Kind {
		err = s.fail("operands of different kinds: %s and %s", a.Kind, b.Kind)
		return
	}
	if (a.IsNumeric() && a.Kind != k) || (b.IsNumeric() && b.Kind != k) {
		s.wonky("%s operands for %s operation", a.Kind, k)
		return a, b, false, nil
	}
	return a, b, a.HasLiteral() && b.HasLiteral(), nil
}

func (s *state) binary() error {
	op := s.ins.Op
	k := binaryKind(op)
	a, b, ok, err := s.operands(k)
	if err != nil {
		return err
	}
	result := value.Unknown(k)
	if ok {
		if v, folded := foldBinary(op, k, a, b); folded {
			result = v
		}
	}
	s.push(result)
	return nil
}

func foldBinary(op types.Opcode, k value.Kind, a, b value.Value) (value.Value, bool) {
	switch k {
	case value.KindInt:
		x, y := a.Int32(), b.Int32()
		switch op {
		case types.IADD:
			return value.Int(x + y), true
		case types.ISUB:
			return value.Int(x - y), true
		case types.IMUL:
			return value.Int(x * y), true
		case types.IDIV:
			if y == 0 {
				return value.Value{}, false
			}
			return value.Int(x / y), true
		case types.IREM:
			if y == 0 {
				return value.Value{}, false
			}
			return value.Int(x % y), true
		case types.IAND:
			return value.Int(x & y), true
		case types.IOR:
			return value.Int(x | y), true
		case types.IXOR:
			return value.Int(x ^ y), true
		}
	case value.KindLong:
		x, y := a.I, b.I
		switch op {
		case types.LADD:
			return value.Long(x + y), true
		case types.LSUB:
			return value.Long(x - y), true
		case types.LMUL:
			return value.Long(x * y), true
		case types.LDIV:
			if y == 0 {
				return value.Value{}, false
			}
			return value.Long(x / y), true
		case types.LREM:
			if y == 0 {
				return value.Value{}, false
			}
			return value.Long(x % y), true
		case types.LAND:
			return value.Long(x & y), true
		case types.LOR:
			return value.Long(x | y), true
		case types.LXOR:
			return value.Long(x ^ y), true
		}
	case value.KindFloat:
		x, y := a.Float32(), b.Float32()
		switch op {
		case types.FADD:
			return value.Float(x + y), true
		case types.FSUB:
			return value.Float(x - y), true
		case types.FMUL:
			return value.Float(x * y), true
		case types.FDIV:
			return value.Float(x / y), true
		case types.FREM:
			return value.Float(float32(math.Mod(float64(x), float64(y)))), true
		}
	case value.KindDouble:
		x, y := a.F, b.F
		switch op {
		case types.DADD:
			return value.Double(x + y), true
		case types.DSUB:
			return value.Double(x - y), true
		case types.DMUL:
			return value.Double(x * y), true
		case types.DDIV:
			return value.Double(x / y), true
		case types.DREM:
			return value.Double(math.Mod(x, y)), true
		}
	}
	return value.Value{}, false
}

// shift handles the int and long shifts. The shift distance is always an
// int and is masked to the width of the shifted value.
func (s *state) shift() error {
	op := s.ins.Op
	k := numericKinds[(op-types.ISHL)%2]
	dist, err := s.popNumeric(value.KindInt)
	if err != nil {
		return err
	}
	v, err := s.popNumeric(k)
	if err != nil {
		return err
	}
	if !v.HasLiteral() || !dist.HasLiteral() {
		s.push(value.Unknown(k))
		return nil
	}
	if k == value.KindInt {
		x, n := v.Int32(), uint(dist.Int32()&31)
		switch op {
		case types.ISHL:
			s.push(value.Int(x << n))
		case types.ISHR:
			s.push(value.Int(x >> n))
		default:
			s.push(value.Int(int32(uint32(x) >> n)))
		}
		return nil
	}
	x, n := v.I, uint(dist.Int32()&63)
	switch op {
	case types.LSHL:
		s.push(value.Long(x << n))
	case types.LSHR:
		s.push(value.Long(x >> n))
	default:
		s.push(value.Long(int64(uint64(x) >> n)))
	}
	return nil
}

func (s *state) negate() error {
	k := numericKinds[s.ins.Op-types.INEG]
	v, err := s.popNumeric(k)
	if err != nil {
		return err
	}
	if !v.HasLiteral() {
		s.push(value.Unknown(k))
		return nil
	}
	switch k {
	case value.KindInt:
		s.push(value.Int(-v.Int32()))
	case value.KindLong:
		s.push(value.Long(-v.I))
	case value.KindFloat:
		s.push(value.Float(-v.Float32()))
	default:
		s.push(value.Double(-v.F))
	}
	return nil
}

var conversions = map[types.Opcode][2]value.Kind{
	types.I2L: {value.KindInt, value.KindLong},
	types.I2F: {value.KindInt, value.KindFloat},
	types.I2D: {value.KindInt, value.KindDouble},
	types.L2I: {value.KindLong, value.KindInt},
	types.L2F: {value.KindLong, value.KindFloat},
	types.L2D: {value.KindLong, value.KindDouble},
	types.F2I: {value.KindFloat, value.KindInt},
	types.F2L: {value.KindFloat, value.KindLong},
	types.F2D: {value.KindFloat, value.KindDouble},
	types.D2I: {value.KindDouble, value.KindInt},
	types.D2L: {value.KindDouble, value.KindLong},
	types.D2F: {value.KindDouble, value.KindFloat},
	types.I2B: {value.KindInt, value.KindInt},
	types.I2C: {value.KindInt, value.KindInt},
	types.I2S: {value.KindInt, value.KindInt},
}

func (s *state) convert() error {
	kinds := conversions[s.ins.Op]
	v, err := s.popNumeric(kinds[0])
	if err != nil {
		return err
	}
	if !v.HasLiteral() {
		s.push(value.Unknown(kinds[1]))
		return nil
	}
	s.push(convertLiteral(s.ins.Op, v))
	return nil
}

func convertLiteral(op types.Opcode, v value.Value) value.Value {
	switch op {
	case types.I2L:
		return value.Long(int64(v.Int32()))
	case types.I2F:
		return value.Float(float32(v.Int32()))
	case types.I2D:
		return value.Double(float64(v.Int32()))
	case types.L2I:
		return value.Int(int32(v.I))
	case types.L2F:
		return value.Float(float32(v.I))
	case types.L2D:
		return value.Double(float64(v.I))
	case types.F2I:
		return value.Int(toInt32(float64(v.Float32())))
	case types.F2L:
		return value.Long(toInt64(float64(v.Float32())))
	case types.F2D:
		return value.Double(float64(v.Float32()))
	case types.D2I:
		return value.Int(toInt32(v.F))
	case types.D2L:
		return value.Long(toInt64(v.F))
	case types.D2F:
		return value.Float(float32(v.F))
	case types.I2B:
		return value.Int(int32(int8(v.Int32())))
	case types.I2C:
		return value.Int(int32(uint16(v.Int32())))
	default: // I2S
		return value.Int(int32(int16(v.Int32())))
	}
}

// toInt32 converts with saturation, NaN becoming zero.
func toInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// toInt64 converts with saturation, NaN becoming zero.
func toInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func (s *state) compare() error {
	op := s.ins.Op
	var k value.Kind
	switch op {
	case types.LCMP:
		k = value.KindLong
	case types.FCMPL, types.FCMPG:
		k = value.KindFloat
	default:
		k = value.KindDouble
	}
	a, b, ok, err := s.operands(k)
	if err != nil {
		return err
	}
	if !ok {
		s.push(value.Unknown(value.KindInt))
		return nil
	}
	if k == value.KindLong {
		s.push(value.Int(sign(a.I, b.I)))
		return nil
	}
	x, y := a.F, b.F
	if math.IsNaN(x) || math.IsNaN(y) {
		if op == types.FCMPG || op == types.DCMPG {
			s.push(value.Int(1))
		} else {
			s.push(value.Int(-1))
		}
		return nil
	}
	s.push(value.Int(sign(x, y)))
	return nil
}

func sign[T int64 | float64](a, b T) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
