package effect

import (
	"github.com/l3aro/go-bytecode-flow/pkg/types"
	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

// Reference types every array is assignable to.
var arraySupertypes = map[string]bool{
	types.ObjectType:       true,
	"java/lang/Cloneable":  true,
	"java/io/Serializable": true,
}

// assign checks that v may be stored into a destination declared with the
// field descriptor desc. Mixing numeric and reference values is a
// structural error; other mismatches mark the frame wonky.
func (s *state) assign(v value.Value, desc, what string) error {
	dst, err := value.FromDescriptor(desc)
	if err != nil {
		return s.fail("cannot resolve type of %s: %v", what, err)
	}
	if v.IsTop() {
		return nil
	}

	if dst.IsNumeric() {
		switch {
		case v.IsReference():
			return s.fail("cannot store %s into %s of type %s", v, what, desc)
		case v.Kind != dst.Kind:
			s.wonky("storing %s into %s of type %s", v, what, desc)
		}
		return nil
	}

	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindInt, value.KindLong, value.KindFloat, value.KindDouble:
		return s.fail("cannot store %s into %s of type %s", v, what, desc)
	case value.KindArray:
		if dst.Kind == value.KindObject {
			if !arraySupertypes[dst.Type] {
				s.wonky("storing %s into %s of type %s", v, what, desc)
			}
			return nil
		}
		if !arrayAssignable(v, dst, s.ip.Oracle) {
			s.wonky("storing %s into %s of type %s", v, what, desc)
		}
	case value.KindObject:
		if dst.Kind == value.KindArray {
			s.wonky("storing %s into %s of type %s", v, what, desc)
		}
	}
	return nil
}

// arrayAssignable reports whether array v fits array destination dst.
func arrayAssignable(v, dst value.Value, oracle value.Oracle) bool {
	if v.Dims > dst.Dims {
		// Object[] holds any array of higher rank
		elem := dst.Type
		return !types.IsPrimitiveDescriptor(elem) && arraySupertypes[types.InternalName(elem)]
	}
	_, wonky, _ := value.Merge(dst.Widen(), v.Widen(), oracle)
	return !wonky
}
