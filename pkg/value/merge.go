package value

import (
	"fmt"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

// Oracle answers common supertype queries for class internal names.
// An empty answer means the oracle does not know either type.
type Oracle interface {
	CommonSupertype(a, b string) string
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(a, b string) string

// CommonSupertype calls f(a, b).
func (f OracleFunc) CommonSupertype(a, b string) string { return f(a, b) }

// Merge joins two values. It returns the merged value and, when the pair
// cannot legally meet, wonky set with a reason. A nil oracle merges
// distinct classes to java/lang/Object.
func Merge(a, b Value, oracle Oracle) (Value, bool, string) {
	switch {
	case a.Kind == KindTop:
		return b, false, ""
	case b.Kind == KindTop:
		return a, false, ""
	case a.IsNumeric() && b.IsNumeric():
		return mergeNumeric(a, b)
	case a.Kind == KindNull && b.Kind == KindNull:
		return a, false, ""
	case a.Kind == KindNull && b.IsReference():
		return b.OrNull(), false, ""
	case b.Kind == KindNull && a.IsReference():
		return a.OrNull(), false, ""
	case a.Kind == KindObject && b.Kind == KindObject:
		return mergeObjects(a, b, oracle), false, ""
	case a.Kind == KindArray && b.Kind == KindArray:
		return mergeArrays(a, b, oracle)
	case a.IsReference() && b.IsReference():
		// object and array
		v := Object(types.ObjectType)
		v.Nullable = a.Nullable || b.Nullable
		return v, false, ""
	default:
		return a, true, fmt.Sprintf("cannot merge %s with %s", a, b)
	}
}

func mergeNumeric(a, b Value) (Value, bool, string) {
	if a.Kind == b.Kind {
		if a == b {
			return a, false, ""
		}
		return a.Widen(), false, ""
	}
	wider := a
	if b.Kind > a.Kind {
		wider = b
	}
	return wider.Widen(), true, fmt.Sprintf("cannot merge %s with %s", a.Kind, b.Kind)
}

func mergeObjects(a, b Value, oracle Oracle) Value {
	nullable := a.Nullable || b.Nullable
	if a.Type == b.Type {
		a.Nullable = nullable
		return a
	}
	v := Object(CommonSupertype(a.Type, b.Type, oracle))
	v.Nullable = nullable
	return v
}

// CommonSupertype asks the oracle for the common supertype of two class
// names, falling back to java/lang/Object.
func CommonSupertype(a, b string, oracle Oracle) string {
	if a == b {
		return a
	}
	if oracle != nil {
		if s := oracle.CommonSupertype(a, b); s != "" {
			return s
		}
	}
	return types.ObjectType
}

func mergeArrays(a, b Value, oracle Oracle) (Value, bool, string) {
	if a.Dims != b.Dims {
		return a, true, fmt.Sprintf("cannot merge %s with %s: dimensions differ", a, b)
	}
	elem := a.Type
	if a.Type != b.Type {
		if types.IsPrimitiveDescriptor(a.Type) || types.IsPrimitiveDescriptor(b.Type) {
			return a, true, fmt.Sprintf("cannot merge %s with %s: element types differ", a, b)
		}
		elem = types.ClassDescriptor(CommonSupertype(types.InternalName(a.Type), types.InternalName(b.Type), oracle))
	}
	v := Array(elem, a.Dims)
	v.Nullable = a.Nullable || b.Nullable
	if a.Literal && b.Literal && a.I == b.I {
		v.Literal = true
		v.I = a.I
	}
	return v, false, ""
}
