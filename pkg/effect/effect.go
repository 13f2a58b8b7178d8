// Package effect implements the per-instruction transfer function of the
// dataflow analyzer: given the frame before an instruction it computes the
// frame after it.
//
// Structural problems (stack underflow, an operand of the wrong fundamental
// category, an unresolvable descriptor) are reported as
// *types.AnalysisError. Locally inconsistent but interpretable states mark
// the resulting frame wonky and continue with a best-effort value.
package effect

import (
	"fmt"

	"github.com/l3aro/go-bytecode-flow/pkg/frame"
	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// Interpreter applies instructions to frames. The zero value is usable:
// it has no inheritance oracle and does not check return values against a
// declared return type.
type Interpreter struct {
	Oracle value.Oracle
	Return string // return descriptor of the analyzed method, "V" for void
}

// Apply returns the frame after executing ins on in. in is not modified.
func (ip *Interpreter) Apply(offset int, ins types.Instruction, in *frame.Frame) (*frame.Frame, error) {
	s := &state{ip: ip, off: offset, ins: ins, f: in.Clone()}
	if err := s.step(); err != nil {
		return nil, err
	}
	return s.f, nil
}

// state carries one instruction application.
type state struct {
	ip  *Interpreter
	off int
	ins types.Instruction
	f   *frame.Frame
}

func (s *state) fail(format string, args ...any) error {
	return types.Errorf(s.off, s.ins, format, args...)
}

func (s *state) wonky(format string, args ...any) {
	s.f.MarkWonky(fmt.Sprintf("offset %d (%s): %s", s.off, s.ins.Op, fmt.Sprintf(format, args...)))
}

func (s *state) push(vs ...value.Value) { s.f.Push(vs...) }

func (s *state) pop() (value.Value, error) {
	v, ok := s.f.Pop()
	if !ok {
		return value.Value{}, s.fail("stack underflow")
	}
	return v, nil
}

// popNumeric pops a value of kind k. Top is accepted, a reference is a
// structural error and another numeric kind marks the frame wonky.
func (s *state) popNumeric(k value.Kind) (value.Value, error) {
	v, err := s.pop()
	if err != nil {
		return v, err
	}
	switch {
	case v.IsTop():
		return value.Unknown(k), nil
	case v.IsReference():
		return v, s.fail("expected %s, found %s", k, v)
	case v.Kind != k:
		s.wonky("expected %s, found %s", k, v)
		return value.Unknown(k), nil
	}
	return v, nil
}

// popRef pops a reference (object, array or null). Top is accepted and a
// numeric value is a structural error.
func (s *state) popRef() (value.Value, error) {
	v, err := s.pop()
	if err != nil {
		return v, err
	}
	if v.IsNumeric() {
		return v, s.fail("expected reference, found %s", v)
	}
	return v, nil
}

// popWords pops values covering exactly n stack words and returns them
// bottom to top.
func (s *state) popWords(n int) ([]value.Value, error) {
	var out []value.Value
	words := 0
	for words < n {
		v, err := s.pop()
		if err != nil {
			return nil, err
		}
		words += v.Category()
		out = append([]value.Value{v}, out...)
	}
	if words != n {
		return nil, s.fail("instruction would split a category 2 value")
	}
	return out, nil
}

func (s *state) step() error {
	op := s.ins.Op
	switch op {
	case types.NOP:
		return nil

	case types.ACONST_NULL:
		s.push(value.Null())
	case types.ICONST_M1, types.ICONST_0, types.ICONST_1, types.ICONST_2,
		types.ICONST_3, types.ICONST_4, types.ICONST_5:
		s.push(value.Int(int32(op) - int32(types.ICONST_0)))
	case types.LCONST_0, types.LCONST_1:
		s.push(value.Long(int64(op - types.LCONST_0)))
	case types.FCONST_0, types.FCONST_1, types.FCONST_2:
		s.push(value.Float(float32(op - types.FCONST_0)))
	case types.DCONST_0, types.DCONST_1:
		s.push(value.Double(float64(op - types.DCONST_0)))
	case types.BIPUSH, types.SIPUSH:
		s.push(value.Int(int32(s.ins.Int)))
	case types.LDC:
		return s.ldc()

	case types.ILOAD, types.LLOAD, types.FLOAD, types.DLOAD, types.ALOAD:
		return s.load()
	case types.ISTORE, types.LSTORE, types.FSTORE, types.DSTORE, types.ASTORE:
		return s.store()
	case types.IINC:
		return s.iinc()

	case types.IALOAD, types.LALOAD, types.FALOAD, types.DALOAD,
		types.AALOAD, types.BALOAD, types.CALOAD, types.SALOAD:
		return s.arrayLoad()
	case types.IASTORE, types.LASTORE, types.FASTORE, types.DASTORE,
		types.AASTORE, types.BASTORE, types.CASTORE, types.SASTORE:
		return s.arrayStore()

	case types.POP, types.POP2, types.DUP, types.DUP_X1, types.DUP_X2,
		types.DUP2, types.DUP2_X1, types.DUP2_X2, types.SWAP:
		return s.stackOp()

	case types.IADD, types.LADD, types.FADD, types.DADD,
		types.ISUB, types.LSUB, types.FSUB, types.DSUB,
		types.IMUL, types.LMUL, types.FMUL, types.DMUL,
		types.IDIV, types.LDIV, types.FDIV, types.DDIV,
		types.IREM, types.LREM, types.FREM, types.DREM,
		types.IAND, types.LAND, types.IOR, types.LOR, types.IXOR, types.LXOR:
		return s.binary()
	case types.ISHL, types.LSHL, types.ISHR, types.LSHR, types.IUSHR, types.LUSHR:
		return s.shift()
	case types.INEG, types.LNEG, types.FNEG, types.DNEG:
		return s.negate()
	case types.I2L, types.I2F, types.I2D, types.L2I, types.L2F, types.L2D,
		types.F2I, types.F2L, types.F2D, types.D2I, types.D2L, types.D2F,
		types.I2B, types.I2C, types.I2S:
		return s.convert()
	case types.LCMP, types.FCMPL, types.FCMPG, types.DCMPL, types.DCMPG:
		return s.compare()

	case types.IFEQ, types.IFNE, types.IFLT, types.IFGE, types.IFGT, types.IFLE,
		types.TABLESWITCH, types.LOOKUPSWITCH:
		_, err := s.popNumeric(value.KindInt)
		return err
	case types.IF_ICMPEQ, types.IF_ICMPNE, types.IF_ICMPLT,
		types.IF_ICMPGE, types.IF_ICMPGT, types.IF_ICMPLE:
		if _, err := s.popNumeric(value.KindInt); err != nil {
			return err
		}
		_, err := s.popNumeric(value.KindInt)
		return err
	case types.IF_ACMPEQ, types.IF_ACMPNE:
		if _, err := s.popRef(); err != nil {
			return err
		}
		_, err := s.popRef()
		return err
	case types.IFNULL, types.IFNONNULL, types.MONITORENTER, types.MONITOREXIT, types.ATHROW:
		_, err := s.popRef()
		return err
	case types.GOTO:
		return nil

	case types.IRETURN, types.LRETURN, types.FRETURN, types.DRETURN, types.ARETURN, types.RETURN:
		return s.ret()

	case types.GETSTATIC, types.PUTSTATIC, types.GETFIELD, types.PUTFIELD:
		return s.field()
	case types.INVOKEVIRTUAL, types.INVOKESPECIAL, types.INVOKESTATIC,
		types.INVOKEINTERFACE, types.INVOKEDYNAMIC:
		return s.invoke()

	case types.NEW:
		v, err := value.FromType(s.ins.Type)
		if err != nil || v.Kind != value.KindObject {
			return s.fail("cannot instantiate %q", s.ins.Type)
		}
		s.push(v)
	case types.NEWARRAY, types.ANEWARRAY, types.MULTIANEWARRAY:
		return s.newArray()
	case types.ARRAYLENGTH:
		return s.arrayLength()
	case types.CHECKCAST:
		return s.checkcast()
	case types.INSTANCEOF:
		if _, err := s.popRef(); err != nil {
			return err
		}
		s.push(value.Unknown(value.KindInt))

	default:
		return s.fail("unsupported opcode")
	}
	return nil
}

func (s *state) ldc() error {
	c := s.ins.Const
	if c == nil {
		return s.fail("missing constant operand")
	}
	switch c.Kind {
	case types.ConstInt:
		s.push(value.Int(int32(c.Int)))
	case types.ConstLong:
		s.push(value.Long(c.Int))
	case types.ConstFloat:
		s.push(value.Float(float32(c.Float)))
	case types.ConstDouble:
		s.push(value.Double(c.Float))
	case types.ConstString:
		s.push(value.Object("java/lang/String"))
	case types.ConstClass:
		s.push(value.Object("java/lang/Class"))
	default:
		return s.fail("unknown constant kind %q", c.Kind)
	}
	return nil
}

// localKind maps the typed load/store opcodes to the kind they move.
// KindObject stands for any reference.
func localKind(op types.Opcode) value.Kind {
	switch op {
	case types.ILOAD, types.ISTORE:
		return value.KindInt
	case types.LLOAD, types.LSTORE:
		return value.KindLong
	case types.FLOAD, types.FSTORE:
		return value.KindFloat
	case types.DLOAD, types.DSTORE:
		return value.KindDouble
	default:
		return value.KindObject
	}
}

// maxLocals is the largest local variable table a class file can declare.
const maxLocals = 0xFFFF

func (s *state) checkSlot(slot int) error {
	if slot < 0 || slot >= maxLocals {
		return s.fail("invalid local slot %d", slot)
	}
	return nil
}

func (s *state) load() error {
	if err := s.checkSlot(s.ins.Var); err != nil {
		return err
	}
	v := s.f.Local(s.ins.Var)
	k := localKind(s.ins.Op)
	switch {
	case v.IsTop() && k != value.KindObject:
		s.push(value.Unknown(k))
	case v.IsTop():
		s.push(v)
	case k == value.KindObject:
		if !v.IsReference() {
			s.wonky("local %d holds %s, not a reference", s.ins.Var, v)
			v = value.Object(types.ObjectType).OrNull()
		}
		s.push(v)
	case v.Kind != k:
		s.wonky("local %d holds %s, not %s", s.ins.Var, v, k)
		s.push(value.Unknown(k))
	default:
		s.push(v)
	}
	return nil
}

func (s *state) store() error {
	slot := s.ins.Var
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	k := localKind(s.ins.Op)
	var v value.Value
	var err error
	if k == value.KindObject {
		v, err = s.popRef()
	} else {
		v, err = s.popNumeric(k)
	}
	if err != nil {
		return err
	}
	s.setLocal(slot, v)
	return nil
}

// setLocal writes slot and invalidates the halves of wide values it overlaps.
func (s *state) setLocal(slot int, v value.Value) {
	if slot > 0 && s.f.Local(slot-1).Category() == 2 {
		s.f.SetLocal(slot-1, value.Top())
	}
	s.f.SetLocal(slot, v)
	if v.Category() == 2 {
		s.f.SetLocal(slot+1, value.Top())
	}
}

func (s *state) iinc() error {
	slot := s.ins.Var
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	v := s.f.Local(slot)
	switch {
	case v.IsReference():
		return s.fail("iinc on local %d holding %s", slot, v)
	case v.HasLiteral() && v.Kind == value.KindInt:
		s.f.SetLocal(slot, value.Int(v.Int32()+int32(s.ins.Int)))
	case v.IsTop() || v.Kind == value.KindInt:
		s.f.SetLocal(slot, value.Unknown(value.KindInt))
	default:
		s.wonky("iinc on local %d holding %s", slot, v)
		s.setLocal(slot, value.Unknown(value.KindInt))
	}
	return nil
}
