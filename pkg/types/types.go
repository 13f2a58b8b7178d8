// Package types defines the method model consumed by the analyzer.
// It includes instructions and their operands, the label table, try-catch
// ranges, access flags and JVM type descriptors.
package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Access holds JVM method access flags.
type Access uint16

const (
	AccPublic       Access = 0x0001
	AccPrivate      Access = 0x0002
	AccProtected    Access = 0x0004
	AccStatic       Access = 0x0008
	AccFinal        Access = 0x0010
	AccSynchronized Access = 0x0020
	AccNative       Access = 0x0100
	AccAbstract     Access = 0x0400
)

var accessNames = []struct {
	flag Access
	name string
}{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccNative, "native"},
	{AccAbstract, "abstract"},
}

// IsStatic reports whether the static flag is set.
func (a Access) IsStatic() bool { return a&AccStatic != 0 }

func (a Access) String() string {
	var parts []string
	for _, n := range accessNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseAccess resolves an access flag keyword such as "static".
func ParseAccess(name string) (Access, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	for _, n := range accessNames {
		if n.name == name {
			return n.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown access flag %q", name)
}

// ConstKind is the kind of an ldc constant.
type ConstKind string

const (
	ConstInt    ConstKind = "int"
	ConstLong   ConstKind = "long"
	ConstFloat  ConstKind = "float"
	ConstDouble ConstKind = "double"
	ConstString ConstKind = "string"
	ConstClass  ConstKind = "class"
)

// Constant is an ldc operand.
type Constant struct {
	Kind  ConstKind `json:"kind" yaml:"kind"`
	Int   int64     `json:"int,omitempty" yaml:"int,omitempty"`
	Float float64   `json:"float,omitempty" yaml:"float,omitempty"`
	Str   string    `json:"str,omitempty" yaml:"str,omitempty"` // string contents or class internal name
}

// IntConst returns an int constant.
func IntConst(v int32) *Constant { return &Constant{Kind: ConstInt, Int: int64(v)} }

// LongConst returns a long constant.
func LongConst(v int64) *Constant { return &Constant{Kind: ConstLong, Int: v} }

// FloatConst returns a float constant.
func FloatConst(v float32) *Constant { return &Constant{Kind: ConstFloat, Float: float64(v)} }

// DoubleConst returns a double constant.
func DoubleConst(v float64) *Constant { return &Constant{Kind: ConstDouble, Float: v} }

// StringConst returns a string constant.
func StringConst(s string) *Constant { return &Constant{Kind: ConstString, Str: s} }

// ClassConst returns a class literal constant.
func ClassConst(internalName string) *Constant { return &Constant{Kind: ConstClass, Str: internalName} }

func (c *Constant) String() string {
	switch c.Kind {
	case ConstInt, ConstLong:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat, ConstDouble:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstClass:
		return c.Str + ".class"
	default:
		return "?"
	}
}

// MemberRef references a field or method.
type MemberRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

func (m *MemberRef) String() string {
	return m.Owner + "." + m.Name + " " + m.Desc
}

// Switch holds the operands of a tableswitch or lookupswitch.
// For a tableswitch the keys are Low, Low+1, ... in case order.
type Switch struct {
	Low     int32    `json:"low,omitempty"`
	Keys    []int32  `json:"keys,omitempty"`
	Cases   []string `json:"cases"`
	Default string   `json:"default"`
}

// Key returns the match value of case i.
func (s *Switch) Key(i int) int32 {
	if i < len(s.Keys) {
		return s.Keys[i]
	}
	return s.Low + int32(i)
}

// Instruction is a single abstract instruction. Only the operand fields
// relevant to Op are meaningful.
type Instruction struct {
	Op     Opcode     `json:"op"`
	Line   int        `json:"line,omitempty"`   // source line, 0 if unknown
	Int    int64      `json:"int,omitempty"`    // bipush/sipush value, iinc increment, multianewarray dimensions
	Var    int        `json:"var,omitempty"`    // local variable slot
	Const  *Constant  `json:"const,omitempty"`  // ldc operand
	Type   string     `json:"type,omitempty"`   // new/anewarray/checkcast/instanceof/newarray/multianewarray
	Member *MemberRef `json:"member,omitempty"` // field and method instructions
	Target string     `json:"target,omitempty"` // jump label
	Switch *Switch    `json:"switch,omitempty"` // tableswitch/lookupswitch
}

func (in Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	switch {
	case in.Op.IsLoad() || in.Op.IsStore():
		fmt.Fprintf(&sb, " %d", in.Var)
	case in.Op == IINC:
		fmt.Fprintf(&sb, " %d %d", in.Var, in.Int)
	case in.Op == BIPUSH || in.Op == SIPUSH:
		fmt.Fprintf(&sb, " %d", in.Int)
	case in.Op == LDC && in.Const != nil:
		sb.WriteString(" " + in.Const.String())
	case in.Op == MULTIANEWARRAY:
		fmt.Fprintf(&sb, " %s %d", in.Type, in.Int)
	case in.Type != "":
		sb.WriteString(" " + in.Type)
	case in.Member != nil:
		sb.WriteString(" " + in.Member.String())
	case in.Op.IsJump():
		sb.WriteString(" " + in.Target)
	case in.Switch != nil:
		for i, c := range in.Switch.Cases {
			fmt.Fprintf(&sb, " %d:%s", in.Switch.Key(i), c)
		}
		sb.WriteString(" default:" + in.Switch.Default)
	}
	return sb.String()
}

// TryCatch declares an exception handler range. Start is inclusive and End
// exclusive. An empty Type or "*" catches everything.
type TryCatch struct {
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
	Handler string `json:"handler" yaml:"handler"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
}

// CatchType returns the internal name of the caught type.
func (t TryCatch) CatchType() string {
	if t.Type == "" || t.Type == "*" {
		return "java/lang/Throwable"
	}
	return t.Type
}

// Method is a parsed method body.
type Method struct {
	Owner        string         `json:"owner"`
	Name         string         `json:"name"`
	Descriptor   string         `json:"descriptor"`
	Access       Access         `json:"access"`
	Instructions []Instruction  `json:"instructions"`
	Labels       map[string]int `json:"labels"`              // label name to instruction offset in [0, len]
	TryCatches   []TryCatch     `json:"try_catches"`         // in declaration order
	Variables    map[string]int `json:"variables,omitempty"` // optional local name to slot
}

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.Access.IsStatic() }

// LabelOffset resolves a label name to its instruction offset.
func (m *Method) LabelOffset(name string) (int, bool) {
	off, ok := m.Labels[name]
	return off, ok
}

// Slot resolves a named local variable.
func (m *Method) Slot(name string) (int, bool) {
	slot, ok := m.Variables[name]
	return slot, ok
}

// LabelsAt returns the sorted names of the labels placed at offset.
func (m *Method) LabelsAt(offset int) []string {
	var names []string
	for name, off := range m.Labels {
		if off == offset {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
