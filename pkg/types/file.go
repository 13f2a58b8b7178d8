package types

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// methodFile is the on-disk YAML (or JSON) form of a method.
//
//	owner: Test
//	name: merge
//	descriptor: (I)V
//	access: [static]
//	params: [type]
//	try:
//	  - {start: a, end: b, handler: c, type: "*"}
//	code:
//	  - label: start
//	  - {op: iload, var: type}
//	  - {op: tableswitch, low: 0, cases: [a, b, c], default: d}
type methodFile struct {
	Owner      string      `yaml:"owner"`
	Name       string      `yaml:"name"`
	Descriptor string      `yaml:"descriptor"`
	Access     []string    `yaml:"access"`
	Params     []string    `yaml:"params"`
	Try        []TryCatch  `yaml:"try"`
	Code       []yaml.Node `yaml:"code"`
}

type codeEntry struct {
	Label string `yaml:"label"`
	Op    string `yaml:"op"`
	Line  int    `yaml:"line"`

	Var    any      `yaml:"var"` // slot number or local name
	Int    *int64   `yaml:"int"`
	Long   *int64   `yaml:"long"`
	Float  *float64 `yaml:"float"`
	Double *float64 `yaml:"double"`
	String *string  `yaml:"string"`
	Class  string   `yaml:"class"`

	Type  string `yaml:"type"`
	Dims  int    `yaml:"dims"`
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
	Desc  string `yaml:"desc"`

	Target  string   `yaml:"target"`
	Low     int32    `yaml:"low"`
	Keys    []int32  `yaml:"keys"`
	Cases   []string `yaml:"cases"`
	Default string   `yaml:"default"`
}

// LoadMethod reads a method file from disk.
func LoadMethod(path string) (*Method, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading method file %s: %w", path, err)
	}
	m, err := DecodeMethod(data)
	if err != nil {
		return nil, fmt.Errorf("decoding method file %s: %w", path, err)
	}
	return m, nil
}

// DecodeMethod decodes a YAML or JSON method document. Instruction lines
// default to the line of their entry in the document.
func DecodeMethod(data []byte) (*Method, error) {
	var f methodFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing method: %w", err)
	}
	if f.Descriptor == "" {
		return nil, fmt.Errorf("method descriptor is required")
	}

	var access Access
	for _, name := range f.Access {
		flag, err := ParseAccess(name)
		if err != nil {
			return nil, err
		}
		access |= flag
	}

	b := NewBuilder(f.Owner, f.Name, f.Descriptor, access).Params(f.Params...)
	for _, t := range f.Try {
		b.TryCatch(t.Start, t.End, t.Handler, t.Type)
	}

	for i := range f.Code {
		node := &f.Code[i]
		var e codeEntry
		if err := node.Decode(&e); err != nil {
			return nil, fmt.Errorf("code entry at line %d: %w", node.Line, err)
		}
		line := e.Line
		if line == 0 {
			line = node.Line
		}
		if err := decodeEntry(b.Line(line), e); err != nil {
			return nil, fmt.Errorf("code entry at line %d: %w", node.Line, err)
		}
		if b.Err() != nil {
			return nil, fmt.Errorf("code entry at line %d: %w", node.Line, b.Err())
		}
	}
	return b.Build()
}

func decodeEntry(b *Builder, e codeEntry) error {
	if e.Label != "" {
		b.Label(e.Label)
	}
	if e.Op == "" {
		if e.Label == "" {
			return fmt.Errorf("entry has neither op nor label")
		}
		return nil
	}

	op, shortSlot, ok := LookupOpcode(e.Op)
	if !ok {
		return fmt.Errorf("unknown opcode %q", e.Op)
	}

	switch {
	case op.IsLoad() || op.IsStore():
		if shortSlot >= 0 {
			b.Var(op, shortSlot)
			return nil
		}
		return decodeVar(b, op, e.Var)
	case op == IINC:
		if e.Int == nil {
			return fmt.Errorf("iinc requires int")
		}
		slot, err := resolveVar(b, e.Var)
		if err != nil {
			return err
		}
		b.Iinc(slot, *e.Int)
	case op == BIPUSH || op == SIPUSH:
		if e.Int == nil {
			return fmt.Errorf("%s requires int", op)
		}
		b.Push(op, *e.Int)
	case op == LDC:
		c, err := decodeConstant(e)
		if err != nil {
			return err
		}
		b.Ldc(c)
	case op == NEWARRAY:
		b.NewArray(e.Type)
	case op == MULTIANEWARRAY:
		b.MultiANewArray(e.Type, e.Dims)
	case op == NEW || op == ANEWARRAY || op == CHECKCAST || op == INSTANCEOF:
		if e.Type == "" {
			return fmt.Errorf("%s requires type", op)
		}
		b.TypeInsn(op, e.Type)
	case op.IsFieldAccess():
		b.Field(op, e.Owner, e.Name, e.Desc)
	case op.IsInvoke():
		b.Invoke(op, e.Owner, e.Name, e.Desc)
	case op.IsJump():
		if e.Target == "" {
			return fmt.Errorf("%s requires target", op)
		}
		b.Jump(op, e.Target)
	case op == TABLESWITCH:
		b.TableSwitch(e.Low, e.Default, e.Cases...)
	case op == LOOKUPSWITCH:
		b.LookupSwitch(e.Default, e.Keys, e.Cases)
	default:
		b.Insn(op)
	}
	return nil
}

func decodeVar(b *Builder, op Opcode, v any) error {
	switch x := v.(type) {
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			b.Var(op, n)
			return nil
		}
		b.VarNamed(op, x)
		return nil
	case int:
		b.Var(op, x)
		return nil
	case nil:
		return fmt.Errorf("%s requires var", op)
	default:
		return fmt.Errorf("%s: invalid var %v", op, v)
	}
}

func resolveVar(b *Builder, v any) (int, error) {
	switch x := v.(type) {
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, nil
		}
		return b.Local(x), nil
	case int:
		return x, nil
	default:
		return 0, fmt.Errorf("invalid var %v", v)
	}
}

func decodeConstant(e codeEntry) (*Constant, error) {
	switch {
	case e.Int != nil:
		return &Constant{Kind: ConstInt, Int: int64(int32(*e.Int))}, nil
	case e.Long != nil:
		return LongConst(*e.Long), nil
	case e.Float != nil:
		return FloatConst(float32(*e.Float)), nil
	case e.Double != nil:
		return DoubleConst(*e.Double), nil
	case e.String != nil:
		return StringConst(*e.String), nil
	case e.Class != "":
		return ClassConst(e.Class), nil
	default:
		return nil, fmt.Errorf("ldc requires one of int, long, float, double, string, class")
	}
}
