// Package value defines the abstract values tracked by the dataflow
// analyzer and the lattice used to merge them at control flow joins.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// Kind is the category of a Value.
type Kind uint8

// Numeric kinds are declared narrowest first; merges keep the larger one.
const (
	KindTop Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
	KindNull
)

var kindNames = [...]string{
	KindTop:    "top",
	KindInt:    "int",
	KindLong:   "long",
	KindFloat:  "float",
	KindDouble: "double",
	KindObject: "object",
	KindArray:  "array",
	KindNull:   "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumeric reports whether k is int, long, float or double.
func (k Kind) IsNumeric() bool { return k >= KindInt && k <= KindDouble }

// Value is an immutable abstract value. The zero Value is Top.
//
// Numeric values may carry a literal (I for int and long, F for float and
// double). Arrays may carry a known length in I. Type holds the internal
// name of an object or the element descriptor of an array.
type Value struct {
	Kind     Kind
	Literal  bool
	I        int64
	F        float64
	Type     string
	Dims     int
	Nullable bool
}

// Top returns the unknown value.
func Top() Value { return Value{} }

// Null returns the null reference.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an int literal.
func Int(v int32) Value { return Value{Kind: KindInt, Literal: true, I: int64(v)} }

// Long returns a long literal.
func Long(v int64) Value { return Value{Kind: KindLong, Literal: true, I: v} }

// Float returns a float literal.
func Float(v float32) Value { return Value{Kind: KindFloat, Literal: true, F: float64(v)} }

// Double returns a double literal.
func Double(v float64) Value { return Value{Kind: KindDouble, Literal: true, F: v} }

// Unknown returns a value of numeric kind k with no literal.
func Unknown(k Kind) Value { return Value{Kind: k} }

// Object returns a non-null reference to an instance of the named class.
func Object(internalName string) Value {
	return Value{Kind: KindObject, Type: internalName}
}

// Array returns a non-null array of unknown length.
func Array(elem string, dims int) Value {
	return Value{Kind: KindArray, Type: elem, Dims: dims}
}

// ArrayOfLength returns a non-null array with a known length.
func ArrayOfLength(elem string, dims int, length int64) Value {
	return Value{Kind: KindArray, Type: elem, Dims: dims, Literal: true, I: length}
}

// FromDescriptor returns the value a slot of the given field descriptor
// holds when nothing more is known. Sub-int primitives widen to int and
// references are nullable.
func FromDescriptor(desc string) (Value, error) {
	if err := types.ValidateFieldDescriptor(desc); err != nil {
		return Value{}, err
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return Unknown(KindInt), nil
	case 'J':
		return Unknown(KindLong), nil
	case 'F':
		return Unknown(KindFloat), nil
	case 'D':
		return Unknown(KindDouble), nil
	case 'L':
		return Object(types.InternalName(desc)).OrNull(), nil
	default:
		elem, dims := types.SplitArray(desc)
		return Array(elem, dims).OrNull(), nil
	}
}

// FromType converts a type operand (an internal name or, for arrays, a
// descriptor) to a non-null value.
func FromType(operand string) (Value, error) {
	if strings.HasPrefix(operand, "[") {
		if err := types.ValidateFieldDescriptor(operand); err != nil {
			return Value{}, err
		}
		elem, dims := types.SplitArray(operand)
		return Array(elem, dims), nil
	}
	if operand == "" || strings.ContainsAny(operand, ";[.") {
		return Value{}, fmt.Errorf("invalid class name %q", operand)
	}
	return Object(operand), nil
}

// IsTop reports whether v is the unknown value.
func (v Value) IsTop() bool { return v.Kind == KindTop }

// IsNumeric reports whether v is an int, long, float or double.
func (v Value) IsNumeric() bool { return v.Kind.IsNumeric() }

// IsReference reports whether v is an object, array or null.
func (v Value) IsReference() bool {
	return v.Kind == KindObject || v.Kind == KindArray || v.Kind == KindNull
}

// Category returns the number of stack words v occupies.
func (v Value) Category() int {
	if v.Kind == KindLong || v.Kind == KindDouble {
		return 2
	}
	return 1
}

// HasLiteral reports whether v is a numeric value with a known literal.
func (v Value) HasLiteral() bool { return v.Literal && v.IsNumeric() }

// Length returns the known array length.
func (v Value) Length() (int64, bool) {
	if v.Kind == KindArray && v.Literal {
		return v.I, true
	}
	return 0, false
}

// Int32 returns the int literal.
func (v Value) Int32() int32 { return int32(v.I) }

// Float32 returns the float literal.
func (v Value) Float32() float32 { return float32(v.F) }

// Widen drops any literal or known array length.
func (v Value) Widen() Value {
	v.Literal = false
	v.I = 0
	v.F = 0
	return v
}

// OrNull returns v marked as possibly null. Non-reference values are
// returned unchanged.
func (v Value) OrNull() Value {
	if v.Kind == KindObject || v.Kind == KindArray {
		v.Nullable = true
	}
	return v
}

// Element returns the value loaded from an array v.
func (v Value) Element() (Value, error) {
	if v.Kind != KindArray {
		return Value{}, fmt.Errorf("%s is not an array", v)
	}
	if v.Dims > 1 {
		return Array(v.Type, v.Dims-1).OrNull(), nil
	}
	return FromDescriptor(v.Type)
}

// Descriptor returns the field descriptor of v's type, or "" for Top and Null.
func (v Value) Descriptor() string {
	switch v.Kind {
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindObject:
		return types.ClassDescriptor(v.Type)
	case KindArray:
		return strings.Repeat("[", v.Dims) + v.Type
	default:
		return ""
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindTop, KindNull:
		return v.Kind.String()
	case KindInt, KindLong:
		if v.Literal {
			return fmt.Sprintf("%s(%d)", v.Kind, v.I)
		}
		return v.Kind.String()
	case KindFloat, KindDouble:
		if v.Literal {
			return fmt.Sprintf("%s(%s)", v.Kind, formatFloat(v.F))
		}
		return v.Kind.String()
	case KindObject:
		s := "Object(" + v.Type + ")"
		if v.Nullable {
			s += "?"
		}
		return s
	case KindArray:
		s := fmt.Sprintf("Array(%s,%d)", v.Type, v.Dims)
		if v.Literal {
			s += fmt.Sprintf("[%d]", v.I)
		}
		if v.Nullable {
			s += "?"
		}
		return s
	default:
		return v.Kind.String()
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
