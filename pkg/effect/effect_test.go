package effect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bytecode-flow/pkg/frame"
	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

func op(o types.Opcode) types.Instruction { return types.Instruction{Op: o} }

func push(v int64) types.Instruction { return types.Instruction{Op: types.BIPUSH, Int: v} }

func ldc(c *types.Constant) types.Instruction { return types.Instruction{Op: types.LDC, Const: c} }

func local(o types.Opcode, slot int) types.Instruction { return types.Instruction{Op: o, Var: slot} }

func typed(o types.Opcode, t string) types.Instruction { return types.Instruction{Op: o, Type: t} }

func member(o types.Opcode, owner, name, desc string) types.Instruction {
	return types.Instruction{Op: o, Member: &types.MemberRef{Owner: owner, Name: name, Desc: desc}}
}

// run applies code in order starting from in (an empty frame when nil).
func run(ip *Interpreter, in *frame.Frame, code ...types.Instruction) (*frame.Frame, error) {
	f := in
	if f == nil {
		f = frame.New(nil)
	}
	for i, ins := range code {
		out, err := ip.Apply(i, ins, f)
		if err != nil {
			return nil, err
		}
		f = out
	}
	return f, nil
}

func top(t *testing.T, f *frame.Frame) value.Value {
	t.Helper()
	v, ok := f.Peek(0)
	require.True(t, ok, "stack is empty")
	return v
}

func requireAnalysisError(t *testing.T, err error) *types.AnalysisError {
	t.Helper()
	require.Error(t, err)
	ae, ok := types.AsAnalysisError(err)
	require.True(t, ok, "expected an AnalysisError, got %v", err)
	return ae
}

func TestMathChain(t *testing.T) {
	f, err := run(&Interpreter{}, nil,
		op(types.ICONST_1),
		ldc(types.IntConst(2)),
		op(types.IADD),
		push(3),
		op(types.IMUL),
		op(types.I2F),
		op(types.FCONST_2),
		op(types.FDIV),
		ldc(types.FloatConst(0.5)),
		op(types.FADD),
		op(types.F2I),
		op(types.ICONST_1),
		op(types.ISHL),
	)
	require.NoError(t, err)
	assert.Equal(t, value.Int(10), top(t, f))
	assert.Equal(t, 1, f.Depth())
	assert.False(t, f.Wonky)
}

func TestConstants(t *testing.T) {
	tests := []struct {
		ins  types.Instruction
		want value.Value
	}{
		{op(types.ACONST_NULL), value.Null()},
		{op(types.ICONST_M1), value.Int(-1)},
		{op(types.ICONST_5), value.Int(5)},
		{op(types.LCONST_1), value.Long(1)},
		{op(types.FCONST_2), value.Float(2)},
		{op(types.DCONST_1), value.Double(1)},
		{types.Instruction{Op: types.SIPUSH, Int: -300}, value.Int(-300)},
		{ldc(types.LongConst(1 << 40)), value.Long(1 << 40)},
		{ldc(types.DoubleConst(0.25)), value.Double(0.25)},
		{ldc(types.StringConst("Hello")), value.Object("java/lang/String")},
		{ldc(types.ClassConst("Test")), value.Object("java/lang/Class")},
	}

	for _, tt := range tests {
		t.Run(tt.ins.String(), func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.ins)
			require.NoError(t, err)
			assert.Equal(t, tt.want, top(t, f))
		})
	}

	_, err := run(&Interpreter{}, nil, types.Instruction{Op: types.LDC})
	requireAnalysisError(t, err)
}

func TestFolding(t *testing.T) {
	tests := []struct {
		name string
		code []types.Instruction
		want value.Value
	}{
		{"int overflow wraps", []types.Instruction{ldc(types.IntConst(math.MaxInt32)), op(types.ICONST_1), op(types.IADD)}, value.Int(math.MinInt32)},
		{"division truncates", []types.Instruction{push(-7), push(2), op(types.IDIV)}, value.Int(-3)},
		{"remainder sign follows dividend", []types.Instruction{push(-7), push(2), op(types.IREM)}, value.Int(-1)},
		{"division by zero is not folded", []types.Instruction{op(types.ICONST_1), op(types.ICONST_0), op(types.IDIV)}, value.Unknown(value.KindInt)},
		{"long division by zero is not folded", []types.Instruction{op(types.LCONST_1), op(types.LCONST_0), op(types.LREM)}, value.Unknown(value.KindLong)},
		{"shift distance is masked", []types.Instruction{op(types.ICONST_1), push(33), op(types.ISHL)}, value.Int(2)},
		{"unsigned shift", []types.Instruction{op(types.ICONST_M1), push(28), op(types.IUSHR)}, value.Int(15)},
		{"arithmetic shift", []types.Instruction{push(-16), push(2), op(types.ISHR)}, value.Int(-4)},
		{"long shift", []types.Instruction{op(types.LCONST_1), push(40), op(types.LSHL)}, value.Long(1 << 40)},
		{"bitwise", []types.Instruction{push(12), push(10), op(types.IXOR)}, value.Int(6)},
		{"negation", []types.Instruction{op(types.DCONST_1), op(types.DNEG)}, value.Double(-1)},
		{"l2i truncates", []types.Instruction{ldc(types.LongConst(1<<32 + 5)), op(types.L2I)}, value.Int(5)},
		{"f2i of NaN", []types.Instruction{op(types.FCONST_0), op(types.FCONST_0), op(types.FDIV), op(types.F2I)}, value.Int(0)},
		{"d2i saturates", []types.Instruction{ldc(types.DoubleConst(1e20)), op(types.D2I)}, value.Int(math.MaxInt32)},
		{"d2l saturates low", []types.Instruction{ldc(types.DoubleConst(-1e30)), op(types.D2L)}, value.Long(math.MinInt64)},
		{"i2b", []types.Instruction{ldc(types.IntConst(200)), op(types.I2B)}, value.Int(-56)},
		{"i2c", []types.Instruction{op(types.ICONST_M1), op(types.I2C)}, value.Int(65535)},
		{"i2s", []types.Instruction{ldc(types.IntConst(40000)), op(types.I2S)}, value.Int(-25536)},
		{"float rounding", []types.Instruction{op(types.FCONST_1), ldc(types.FloatConst(3)), op(types.FDIV)}, value.Float(float32(1) / 3)},
		{"frem", []types.Instruction{ldc(types.FloatConst(5.5)), op(types.FCONST_2), op(types.FREM)}, value.Float(1.5)},
		{"lcmp", []types.Instruction{op(types.LCONST_0), op(types.LCONST_1), op(types.LCMP)}, value.Int(-1)},
		{"fcmpl with NaN", []types.Instruction{op(types.FCONST_0), op(types.FCONST_0), op(types.FDIV), op(types.FCONST_1), op(types.FCMPL)}, value.Int(-1)},
		{"fcmpg with NaN", []types.Instruction{op(types.FCONST_0), op(types.FCONST_0), op(types.FDIV), op(types.FCONST_1), op(types.FCMPG)}, value.Int(1)},
		{"dcmpg", []types.Instruction{op(types.DCONST_1), op(types.DCONST_0), op(types.DCMPG)}, value.Int(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, top(t, f))
			assert.False(t, f.Wonky)
		})
	}
}

func TestUnknownOperandsAreNotFolded(t *testing.T) {
	in := frame.New([]value.Value{value.Unknown(value.KindInt)})
	f, err := run(&Interpreter{}, in, local(types.ILOAD, 0), op(types.ICONST_1), op(types.IADD))
	require.NoError(t, err)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f))
}

func TestArithmeticErrors(t *testing.T) {
	_, err := run(&Interpreter{}, nil, op(types.ICONST_1), op(types.IADD))
	ae := requireAnalysisError(t, err)
	assert.Equal(t, 1, ae.Offset)
	assert.Contains(t, ae.Msg, "underflow")

	_, err = run(&Interpreter{}, nil, op(types.ICONST_1), op(types.ACONST_NULL), op(types.IADD))
	requireAnalysisError(t, err)

	_, err = run(&Interpreter{}, nil, op(types.ICONST_1), op(types.LCONST_1), op(types.IADD))
	ae = requireAnalysisError(t, err)
	assert.Contains(t, ae.Msg, "different kinds")

	_, err = run(&Interpreter{}, nil, op(types.ACONST_NULL), op(types.INEG))
	requireAnalysisError(t, err)
}

func TestArithmeticOnWrongKindIsWonky(t *testing.T) {
	f, err := run(&Interpreter{}, nil, op(types.LCONST_0), op(types.LCONST_1), op(types.IADD))
	require.NoError(t, err)
	assert.True(t, f.Wonky)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f))
}

func TestLoadsAndStores(t *testing.T) {
	ip := &Interpreter{}

	f, err := run(ip, nil, local(types.ILOAD, 3))
	require.NoError(t, err)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f), "uninitialized locals load as the opcode's kind")
	assert.False(t, f.Wonky)

	f, err = run(ip, nil, local(types.ALOAD, 3))
	require.NoError(t, err)
	assert.Equal(t, value.Top(), top(t, f))
	assert.False(t, f.Wonky)

	f, err = run(ip, nil, local(types.LLOAD, 0), op(types.POP2), local(types.DLOAD, 2), op(types.DUP2))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Unknown(value.KindDouble), value.Unknown(value.KindDouble)}, f.Stack)
	assert.False(t, f.Wonky)

	f, err = run(ip, nil, op(types.ICONST_2), local(types.ISTORE, 1), local(types.ILOAD, 1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), top(t, f))
	assert.Equal(t, value.Int(2), f.Local(1))

	f, err = run(ip, nil, op(types.FCONST_1), local(types.FSTORE, 0), local(types.ILOAD, 0))
	require.NoError(t, err)
	assert.True(t, f.Wonky)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f))

	f, err = run(ip, nil, op(types.ICONST_1), local(types.ALOAD, 0))
	require.NoError(t, err)
	assert.False(t, f.Wonky, "slot 0 was never written")

	_, err = run(ip, nil, op(types.ICONST_1), local(types.ASTORE, 0))
	requireAnalysisError(t, err)
}

func TestWideLocals(t *testing.T) {
	in := frame.New([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	f, err := run(&Interpreter{}, in, op(types.LCONST_1), local(types.LSTORE, 0))
	require.NoError(t, err)
	assert.Equal(t, value.Long(1), f.Local(0))
	assert.Equal(t, value.Top(), f.Local(1))
	assert.Equal(t, value.Int(3), f.Local(2))

	f, err = run(&Interpreter{}, f, op(types.ICONST_0), local(types.ISTORE, 1))
	require.NoError(t, err)
	assert.Equal(t, value.Top(), f.Local(0), "overwriting the upper half kills the wide value")
	assert.Equal(t, value.Int(0), f.Local(1))
}

func TestIinc(t *testing.T) {
	in := frame.New([]value.Value{value.Int(41), value.Unknown(value.KindInt), value.Null()})
	ip := &Interpreter{}

	f, err := ip.Apply(0, types.Instruction{Op: types.IINC, Var: 0, Int: 1}, in)
	require.NoError(t, err)
	assert.Equal(t, value.Int(42), f.Local(0))

	f, err = ip.Apply(0, types.Instruction{Op: types.IINC, Var: 1, Int: 1}, in)
	require.NoError(t, err)
	assert.Equal(t, value.Unknown(value.KindInt), f.Local(1))

	_, err = ip.Apply(0, types.Instruction{Op: types.IINC, Var: 2, Int: 1}, in)
	requireAnalysisError(t, err)

	for _, slot := range []int{-1, maxLocals, 2000000000} {
		_, err = ip.Apply(0, types.Instruction{Op: types.IINC, Var: slot, Int: 1}, in)
		ae := requireAnalysisError(t, err)
		assert.Contains(t, ae.Error(), "invalid local slot")
	}
}

func TestLocalSlotBounds(t *testing.T) {
	tests := []struct {
		name string
		code []types.Instruction
	}{
		{"iload negative", []types.Instruction{local(types.ILOAD, -1)}},
		{"aload past max", []types.Instruction{local(types.ALOAD, maxLocals)}},
		{"istore negative", []types.Instruction{op(types.ICONST_1), local(types.ISTORE, -1)}},
		{"istore huge", []types.Instruction{op(types.ICONST_1), local(types.ISTORE, 2000000000)}},
		{"lstore past max", []types.Instruction{op(types.LCONST_1), local(types.LSTORE, maxLocals)}},
		{"iinc negative", []types.Instruction{{Op: types.IINC, Var: -1, Int: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(&Interpreter{}, nil, tt.code...)
			ae := requireAnalysisError(t, err)
			assert.Contains(t, ae.Error(), "invalid local slot")
		})
	}

	f, err := run(&Interpreter{}, nil, op(types.ICONST_1), local(types.ISTORE, maxLocals-1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), f.Local(maxLocals-1))
}

func TestStackOps(t *testing.T) {
	tests := []struct {
		name string
		code []types.Instruction
		want []value.Value
	}{
		{"dup", []types.Instruction{op(types.ICONST_1), op(types.DUP)}, []value.Value{value.Int(1), value.Int(1)}},
		{"dup_x1", []types.Instruction{op(types.ICONST_1), op(types.ICONST_2), op(types.DUP_X1)}, []value.Value{value.Int(2), value.Int(1), value.Int(2)}},
		{"dup_x2 over long", []types.Instruction{op(types.LCONST_1), op(types.ICONST_2), op(types.DUP_X2)}, []value.Value{value.Int(2), value.Long(1), value.Int(2)}},
		{"dup2 of long", []types.Instruction{op(types.LCONST_1), op(types.DUP2)}, []value.Value{value.Long(1), value.Long(1)}},
		{"dup2 of two ints", []types.Instruction{op(types.ICONST_1), op(types.ICONST_2), op(types.DUP2)}, []value.Value{value.Int(1), value.Int(2), value.Int(1), value.Int(2)}},
		{"dup2_x1", []types.Instruction{op(types.ICONST_1), op(types.DCONST_0), op(types.DUP2_X1)}, []value.Value{value.Double(0), value.Int(1), value.Double(0)}},
		{"dup2_x2", []types.Instruction{op(types.LCONST_0), op(types.LCONST_1), op(types.DUP2_X2)}, []value.Value{value.Long(1), value.Long(0), value.Long(1)}},
		{"swap", []types.Instruction{op(types.ICONST_1), op(types.ACONST_NULL), op(types.SWAP)}, []value.Value{value.Null(), value.Int(1)}},
		{"pop2 of long", []types.Instruction{op(types.ICONST_1), op(types.LCONST_1), op(types.POP2)}, []value.Value{value.Int(1)}},
		{"pop", []types.Instruction{op(types.ICONST_1), op(types.ICONST_2), op(types.POP)}, []value.Value{value.Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Stack)
		})
	}
}

func TestStackOpErrors(t *testing.T) {
	_, err := run(&Interpreter{}, nil, op(types.LCONST_1), op(types.ICONST_1), op(types.POP2))
	requireAnalysisError(t, err)

	_, err = run(&Interpreter{}, nil, op(types.LCONST_1), op(types.POP))
	requireAnalysisError(t, err)

	_, err = run(&Interpreter{}, nil, op(types.DUP))
	requireAnalysisError(t, err)
}

func TestFields(t *testing.T) {
	tests := []struct {
		name      string
		code      []types.Instruction
		wantErr   bool
		wantWonky bool
	}{
		{"int into long field", []types.Instruction{op(types.ICONST_1), member(types.PUTSTATIC, "Test", "l", "J")}, false, true},
		{"long into long field", []types.Instruction{op(types.LCONST_1), member(types.PUTSTATIC, "Test", "l", "J")}, false, false},
		{"null into int field", []types.Instruction{op(types.ACONST_NULL), member(types.PUTSTATIC, "Test", "i", "I")}, true, false},
		{"int into object field", []types.Instruction{op(types.ICONST_1), member(types.PUTSTATIC, "Test", "o", "Ljava/lang/Object;")}, true, false},
		{"null into object field", []types.Instruction{op(types.ACONST_NULL), member(types.PUTSTATIC, "Test", "o", "Ljava/lang/Object;")}, false, false},
		{"null into array field", []types.Instruction{op(types.ACONST_NULL), member(types.PUTSTATIC, "Test", "a", "[B")}, false, false},
		{"string into string field", []types.Instruction{ldc(types.StringConst("x")), member(types.PUTSTATIC, "Test", "s", "Ljava/lang/String;")}, false, false},
		{"array into object field", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "B"), member(types.PUTSTATIC, "Test", "o", "Ljava/lang/Object;")}, false, false},
		{"array into string field", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "B"), member(types.PUTSTATIC, "Test", "s", "Ljava/lang/String;")}, false, true},
		{"wrong array into array field", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "I"), member(types.PUTSTATIC, "Test", "a", "[B")}, false, true},
		{"getfield on int", []types.Instruction{op(types.ICONST_1), member(types.GETFIELD, "Test", "f", "I")}, true, false},
		{"getfield on null", []types.Instruction{op(types.ACONST_NULL), member(types.GETFIELD, "Test", "f", "I")}, false, true},
		{"putfield on null", []types.Instruction{op(types.ACONST_NULL), op(types.ICONST_1), member(types.PUTFIELD, "Test", "f", "I")}, false, true},
		{"putfield on object", []types.Instruction{typed(types.NEW, "Test"), op(types.ICONST_1), member(types.PUTFIELD, "Test", "f", "I")}, false, false},
		{"unresolvable field type", []types.Instruction{member(types.GETSTATIC, "Test", "f", "Q")}, true, false},
		{"missing member", []types.Instruction{op(types.GETSTATIC)}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			if tt.wantErr {
				requireAnalysisError(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWonky, f.Wonky, f.Reason)
		})
	}
}

func TestGetfieldOnNullPushesTop(t *testing.T) {
	f, err := run(&Interpreter{}, nil, op(types.ACONST_NULL), member(types.GETFIELD, "Test", "f", "I"))
	require.NoError(t, err)
	assert.Equal(t, value.Top(), top(t, f))

	f, err = run(&Interpreter{}, nil, typed(types.NEW, "Test"), member(types.GETFIELD, "Test", "s", "Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Equal(t, value.Object("java/lang/String").OrNull(), top(t, f))
}

func TestArrays(t *testing.T) {
	ip := &Interpreter{}

	f, err := run(ip, nil, op(types.ICONST_5), typed(types.NEWARRAY, "B"))
	require.NoError(t, err)
	arr := top(t, f)
	assert.Equal(t, value.ArrayOfLength("B", 1, 5), arr)
	n, ok := arr.Length()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	f, err = run(ip, f, op(types.ARRAYLENGTH))
	require.NoError(t, err)
	assert.Equal(t, value.Int(5), top(t, f))

	f, err = run(ip, nil, op(types.ICONST_2), typed(types.ANEWARRAY, "java/lang/String"))
	require.NoError(t, err)
	assert.Equal(t, value.ArrayOfLength("Ljava/lang/String;", 1, 2), top(t, f))

	f, err = run(ip, nil, op(types.ICONST_2), typed(types.ANEWARRAY, "[I"))
	require.NoError(t, err)
	assert.Equal(t, value.ArrayOfLength("I", 2, 2), top(t, f))

	f, err = run(ip, nil, op(types.ICONST_2), op(types.ICONST_3),
		types.Instruction{Op: types.MULTIANEWARRAY, Type: "[[[J", Int: 2})
	require.NoError(t, err)
	assert.Equal(t, value.ArrayOfLength("J", 3, 2), top(t, f))
	assert.Equal(t, 1, f.Depth())

	_, err = run(ip, nil, op(types.ICONST_2), types.Instruction{Op: types.MULTIANEWARRAY, Type: "[I", Int: 2})
	requireAnalysisError(t, err)
}

func TestMultiANewArrayDimensionBounds(t *testing.T) {
	tests := []struct {
		name string
		dims int64
		want string
	}{
		{"zero", 0, "invalid dimension count"},
		{"negative", -3, "invalid dimension count"},
		{"past max", maxDims + 1, "invalid dimension count"},
		{"huge", 1 << 40, "invalid dimension count"},
		{"more than stack", 3, "stack underflow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(&Interpreter{}, nil, op(types.ICONST_2), op(types.ICONST_2),
				types.Instruction{Op: types.MULTIANEWARRAY, Type: "[[[I", Int: tt.dims})
			ae := requireAnalysisError(t, err)
			assert.Contains(t, ae.Error(), tt.want)
		})
	}
}

func TestArrayAccess(t *testing.T) {
	tests := []struct {
		name      string
		code      []types.Instruction
		want      value.Value
		wantErr   bool
		wantWonky bool
	}{
		{
			name: "baload on byte array",
			code: []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "B"), op(types.ICONST_0), op(types.BALOAD)},
			want: value.Unknown(value.KindInt),
		},
		{
			name: "baload on boolean array",
			code: []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "Z"), op(types.ICONST_0), op(types.BALOAD)},
			want: value.Unknown(value.KindInt),
		},
		{
			name:      "iaload on byte array",
			code:      []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "B"), op(types.ICONST_0), op(types.IALOAD)},
			want:      value.Unknown(value.KindInt),
			wantWonky: true,
		},
		{
			name: "aaload on string array",
			code: []types.Instruction{op(types.ICONST_1), typed(types.ANEWARRAY, "java/lang/String"), op(types.ICONST_0), op(types.AALOAD)},
			want: value.Object("java/lang/String").OrNull(),
		},
		{
			name: "aaload on two dimensional array",
			code: []types.Instruction{op(types.ICONST_1), op(types.ICONST_1), {Op: types.MULTIANEWARRAY, Type: "[[I", Int: 2}, op(types.ICONST_0), op(types.AALOAD)},
			want: value.Array("I", 1).OrNull(),
		},
		{
			name:      "aaload on null",
			code:      []types.Instruction{op(types.ACONST_NULL), op(types.ICONST_0), op(types.AALOAD)},
			want:      value.Object("java/lang/Object").OrNull(),
			wantWonky: true,
		},
		{
			name:    "iaload on int",
			code:    []types.Instruction{op(types.ICONST_1), op(types.ICONST_0), op(types.IALOAD)},
			wantErr: true,
		},
		{
			name:      "arraylength on null",
			code:      []types.Instruction{op(types.ACONST_NULL), op(types.ARRAYLENGTH)},
			want:      value.Unknown(value.KindInt),
			wantWonky: true,
		},
		{
			name:      "arraylength on object",
			code:      []types.Instruction{typed(types.NEW, "Test"), op(types.ARRAYLENGTH)},
			want:      value.Unknown(value.KindInt),
			wantWonky: true,
		},
		{
			name:    "arraylength on int",
			code:    []types.Instruction{op(types.ICONST_1), op(types.ARRAYLENGTH)},
			wantErr: true,
		},
		{
			name: "checkcast to byte array then arraylength",
			code: []types.Instruction{typed(types.NEW, "java/lang/Object"), typed(types.CHECKCAST, "[B"), op(types.ARRAYLENGTH)},
			want: value.Unknown(value.KindInt),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			if tt.wantErr {
				requireAnalysisError(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, top(t, f))
			assert.Equal(t, tt.wantWonky, f.Wonky, f.Reason)
		})
	}
}

func TestArrayStores(t *testing.T) {
	tests := []struct {
		name      string
		code      []types.Instruction
		wantErr   bool
		wantWonky bool
	}{
		{"null into object array", []types.Instruction{op(types.ICONST_1), typed(types.ANEWARRAY, "java/lang/Object"), op(types.ICONST_0), op(types.ACONST_NULL), op(types.AASTORE)}, false, false},
		{"string into object array", []types.Instruction{op(types.ICONST_1), typed(types.ANEWARRAY, "java/lang/Object"), op(types.ICONST_0), ldc(types.StringConst("s")), op(types.AASTORE)}, false, false},
		{"int into byte array", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "B"), op(types.ICONST_0), op(types.ICONST_1), op(types.BASTORE)}, false, false},
		{"long into long array", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "J"), op(types.ICONST_0), op(types.LCONST_1), op(types.LASTORE)}, false, false},
		{"float into int array", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "I"), op(types.ICONST_0), op(types.FCONST_1), op(types.IASTORE)}, false, true},
		{"null into int array", []types.Instruction{op(types.ICONST_1), typed(types.NEWARRAY, "I"), op(types.ICONST_0), op(types.ACONST_NULL), op(types.IASTORE)}, true, false},
		{"store into null array", []types.Instruction{op(types.ACONST_NULL), op(types.ICONST_0), op(types.ICONST_1), op(types.IASTORE)}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			if tt.wantErr {
				requireAnalysisError(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWonky, f.Wonky, f.Reason)
			assert.Equal(t, 0, f.Depth())
		})
	}
}

func TestCheckcast(t *testing.T) {
	f, err := run(&Interpreter{}, nil, op(types.ACONST_NULL), typed(types.CHECKCAST, "java/lang/String"))
	require.NoError(t, err)
	assert.Equal(t, value.Null(), top(t, f))

	in := frame.New([]value.Value{value.Object("java/lang/Object").OrNull()})
	f, err = run(&Interpreter{}, in, local(types.ALOAD, 0), typed(types.CHECKCAST, "java/util/List"))
	require.NoError(t, err)
	assert.Equal(t, value.Object("java/util/List").OrNull(), top(t, f))

	_, err = run(&Interpreter{}, nil, op(types.ICONST_0), typed(types.CHECKCAST, "java/lang/String"))
	requireAnalysisError(t, err)

	f, err = run(&Interpreter{}, nil, op(types.ACONST_NULL), typed(types.INSTANCEOF, "java/lang/String"))
	require.NoError(t, err)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f))
}

func TestInvoke(t *testing.T) {
	f, err := run(&Interpreter{}, nil,
		op(types.ICONST_1), op(types.LCONST_1), ldc(types.StringConst("x")),
		member(types.INVOKESTATIC, "Test", "f", "(IJLjava/lang/String;)[I"))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Array("I", 1).OrNull()}, f.Stack)
	assert.False(t, f.Wonky)

	f, err = run(&Interpreter{}, nil,
		typed(types.NEW, "java/lang/StringBuilder"), op(types.DUP),
		member(types.INVOKESPECIAL, "java/lang/StringBuilder", "<init>", "()V"))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Object("java/lang/StringBuilder")}, f.Stack)

	f, err = run(&Interpreter{}, nil, op(types.ACONST_NULL),
		member(types.INVOKEVIRTUAL, "java/lang/Object", "hashCode", "()I"))
	require.NoError(t, err)
	assert.True(t, f.Wonky)
	assert.Equal(t, value.Unknown(value.KindInt), top(t, f))

	_, err = run(&Interpreter{}, nil, op(types.ICONST_1),
		member(types.INVOKEVIRTUAL, "java/lang/Object", "hashCode", "()I"))
	requireAnalysisError(t, err)

	_, err = run(&Interpreter{}, nil, op(types.ACONST_NULL),
		member(types.INVOKESTATIC, "Test", "f", "(I)V"))
	requireAnalysisError(t, err)

	f, err = run(&Interpreter{}, nil, op(types.ICONST_1),
		member(types.INVOKESTATIC, "Test", "f", "(J)V"))
	require.NoError(t, err)
	assert.True(t, f.Wonky)

	f, err = run(&Interpreter{}, nil, ldc(types.StringConst("s")),
		member(types.INVOKEDYNAMIC, "Test", "apply", "(Ljava/lang/String;)Ljava/util/function/Supplier;"))
	require.NoError(t, err)
	assert.Equal(t, value.Object("java/util/function/Supplier").OrNull(), top(t, f))

	_, err = run(&Interpreter{}, nil, member(types.INVOKESTATIC, "Test", "f", "(I"))
	requireAnalysisError(t, err)
}

func TestReturns(t *testing.T) {
	tests := []struct {
		name      string
		ret       string
		code      []types.Instruction
		wantErr   bool
		wantWonky bool
	}{
		{"ireturn from int method", "I", []types.Instruction{op(types.ICONST_1), op(types.IRETURN)}, false, false},
		{"ireturn from boolean method", "Z", []types.Instruction{op(types.ICONST_1), op(types.IRETURN)}, false, false},
		{"ireturn from long method", "J", []types.Instruction{op(types.ICONST_1), op(types.IRETURN)}, false, true},
		{"areturn of int", "Ljava/lang/Object;", []types.Instruction{op(types.ICONST_1), op(types.ARETURN)}, true, false},
		{"areturn of null", "Ljava/lang/String;", []types.Instruction{op(types.ACONST_NULL), op(types.ARETURN)}, false, false},
		{"return from int method", "I", []types.Instruction{op(types.RETURN)}, false, true},
		{"ireturn from void method", "V", []types.Instruction{op(types.ICONST_1), op(types.IRETURN)}, false, true},
		{"unknown return type", "", []types.Instruction{op(types.DCONST_1), op(types.DRETURN)}, false, false},
		{"ireturn underflow", "I", []types.Instruction{op(types.IRETURN)}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{Return: tt.ret}, nil, tt.code...)
			if tt.wantErr {
				requireAnalysisError(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWonky, f.Wonky, f.Reason)
		})
	}
}

func TestBranchOperands(t *testing.T) {
	tests := []struct {
		name    string
		code    []types.Instruction
		wantErr bool
	}{
		{"ifeq", []types.Instruction{op(types.ICONST_0), {Op: types.IFEQ, Target: "l"}}, false},
		{"if_icmplt", []types.Instruction{op(types.ICONST_0), op(types.ICONST_1), {Op: types.IF_ICMPLT, Target: "l"}}, false},
		{"if_acmpeq", []types.Instruction{op(types.ACONST_NULL), op(types.ACONST_NULL), {Op: types.IF_ACMPEQ, Target: "l"}}, false},
		{"ifnull on int", []types.Instruction{op(types.ICONST_0), {Op: types.IFNULL, Target: "l"}}, true},
		{"ifeq on null", []types.Instruction{op(types.ACONST_NULL), {Op: types.IFEQ, Target: "l"}}, true},
		{"tableswitch", []types.Instruction{op(types.ICONST_0), {Op: types.TABLESWITCH, Switch: &types.Switch{Default: "d"}}}, false},
		{"athrow", []types.Instruction{typed(types.NEW, "java/lang/RuntimeException"), op(types.ATHROW)}, false},
		{"athrow of int", []types.Instruction{op(types.ICONST_0), op(types.ATHROW)}, true},
		{"monitorenter", []types.Instruction{op(types.ACONST_NULL), op(types.MONITORENTER)}, false},
		{"goto", []types.Instruction{{Op: types.GOTO, Target: "l"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := run(&Interpreter{}, nil, tt.code...)
			if tt.wantErr {
				requireAnalysisError(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, f.Depth())
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := frame.New([]value.Value{value.Int(1)})
	in.Push(value.Int(2))
	out, err := (&Interpreter{}).Apply(0, local(types.ISTORE, 0), in)
	require.NoError(t, err)

	assert.Equal(t, 1, in.Depth())
	assert.Equal(t, value.Int(1), in.Local(0))
	assert.Equal(t, 0, out.Depth())
	assert.Equal(t, value.Int(2), out.Local(0))
}

func TestUnsupportedOpcode(t *testing.T) {
	_, err := (&Interpreter{}).Apply(7, types.Instruction{Op: types.Opcode(168), Line: 3}, frame.New(nil))
	ae := requireAnalysisError(t, err)
	assert.Equal(t, 7, ae.Offset)
	assert.Equal(t, 3, ae.Line)
}
