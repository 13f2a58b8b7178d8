package types

import (
	"fmt"
	"strings"
)

// ObjectType is the internal name of the universal supertype.
const ObjectType = "java/lang/Object"

var primitiveNames = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
}

// newarray operand codes from the class file format.
var newarrayCodes = map[int64]string{
	4: "Z", 5: "C", 6: "F", 7: "D", 8: "B", 9: "S", 10: "I", 11: "J",
}

// IsPrimitiveDescriptor reports whether d is a single primitive type descriptor.
func IsPrimitiveDescriptor(d string) bool {
	return len(d) == 1 && strings.ContainsRune("ZBCSIJFD", rune(d[0]))
}

// NewArrayElement resolves a newarray operand ("byte", "B" or the numeric
// code "8") to a primitive descriptor.
func NewArrayElement(operand string) (string, error) {
	operand = strings.TrimSpace(operand)
	if IsPrimitiveDescriptor(operand) {
		return operand, nil
	}
	if d, ok := primitiveNames[strings.ToLower(operand)]; ok {
		return d, nil
	}
	var code int64
	if _, err := fmt.Sscanf(operand, "%d", &code); err == nil {
		if d, ok := newarrayCodes[code]; ok {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid newarray element type %q", operand)
}

// ValidateFieldDescriptor checks that d is exactly one field type descriptor.
func ValidateFieldDescriptor(d string) error {
	n, err := scanFieldDescriptor(d, 0)
	if err != nil {
		return err
	}
	if n != len(d) {
		return fmt.Errorf("invalid field descriptor %q: trailing characters", d)
	}
	return nil
}

// scanFieldDescriptor returns the end offset of the field descriptor starting at i.
func scanFieldDescriptor(d string, i int) (int, error) {
	start := i
	for i < len(d) && d[i] == '[' {
		i++
	}
	if i-start > 255 {
		return 0, fmt.Errorf("invalid descriptor %q: more than 255 array dimensions", d)
	}
	if i >= len(d) {
		return 0, fmt.Errorf("invalid descriptor %q: unexpected end", d)
	}
	switch d[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(d[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("invalid descriptor %q: unterminated class type", d)
		}
		return i + end + 1, nil
	default:
		return 0, fmt.Errorf("invalid descriptor %q: unexpected %q at %d", d, d[i], i)
	}
}

// ParseMethodDescriptor splits a method descriptor into its parameter
// descriptors and return descriptor ("V" for void).
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("invalid method descriptor %q: missing '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := scanFieldDescriptor(desc, i)
		if err != nil {
			return nil, "", fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		params = append(params, desc[i:end])
		i = end
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		if err := ValidateFieldDescriptor(ret); err != nil {
			return nil, "", fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
	}
	return params, ret, nil
}

// SplitArray returns the element descriptor and dimension count of an array
// descriptor. Non-array descriptors are returned with zero dimensions.
func SplitArray(d string) (elem string, dims int) {
	for dims < len(d) && d[dims] == '[' {
		dims++
	}
	return d[dims:], dims
}

// InternalName converts a class type descriptor "Lpkg/Name;" to "pkg/Name".
// Other inputs are returned unchanged.
func InternalName(d string) string {
	if len(d) > 2 && d[0] == 'L' && d[len(d)-1] == ';' {
		return d[1 : len(d)-1]
	}
	return d
}

// ClassDescriptor converts an internal name to a descriptor. Array
// descriptors are returned unchanged.
func ClassDescriptor(internalName string) string {
	if strings.HasPrefix(internalName, "[") {
		return internalName
	}
	return "L" + internalName + ";"
}

// IsWide reports whether a descriptor takes two local slots.
func IsWide(d string) bool { return d == "J" || d == "D" }
