package types

import "fmt"

// Builder assembles a Method instruction by instruction. Labels are placed
// at the offset of the next instruction appended. The first error is
// remembered and returned by Build.
type Builder struct {
	m        *Method
	line     int
	nextSlot int
	err      error
}

// NewBuilder starts a method. Parameter slots are reserved from the
// descriptor (plus the receiver for non-static methods).
func NewBuilder(owner, name, desc string, access Access) *Builder {
	b := &Builder{
		m: &Method{
			Owner:      owner,
			Name:       name,
			Descriptor: desc,
			Access:     access,
			Labels:     make(map[string]int),
			Variables:  make(map[string]int),
		},
	}
	if !access.IsStatic() {
		b.m.Variables["this"] = 0
		b.nextSlot = 1
	}
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		b.err = err
		return b
	}
	for _, p := range params {
		b.nextSlot++
		if IsWide(p) {
			b.nextSlot++
		}
	}
	return b
}

// Params names the declared parameters in order.
func (b *Builder) Params(names ...string) *Builder {
	params, _, err := ParseMethodDescriptor(b.m.Descriptor)
	if err != nil {
		return b
	}
	slot := 0
	if !b.m.Access.IsStatic() {
		slot = 1
	}
	for i, p := range params {
		if i < len(names) && names[i] != "" {
			b.m.Variables[names[i]] = slot
		}
		slot++
		if IsWide(p) {
			slot++
		}
	}
	return b
}

// Local returns the slot of a named local, allocating a single slot if the
// name is new.
func (b *Builder) Local(name string) int {
	return b.local(name, false)
}

func (b *Builder) local(name string, wide bool) int {
	if slot, ok := b.m.Variables[name]; ok {
		return slot
	}
	slot := b.nextSlot
	b.m.Variables[name] = slot
	b.nextSlot++
	if wide {
		b.nextSlot++
	}
	return slot
}

// Line sets the source line recorded on subsequent instructions.
func (b *Builder) Line(n int) *Builder {
	b.line = n
	return b
}

// Label places a label at the current offset.
func (b *Builder) Label(name string) *Builder {
	if _, dup := b.m.Labels[name]; dup {
		b.fail(fmt.Errorf("duplicate label %q", name))
		return b
	}
	b.m.Labels[name] = len(b.m.Instructions)
	return b
}

func (b *Builder) add(in Instruction) *Builder {
	if !in.Op.Valid() {
		b.fail(fmt.Errorf("unsupported opcode %d at offset %d", in.Op, len(b.m.Instructions)))
		return b
	}
	in.Line = b.line
	b.m.Instructions = append(b.m.Instructions, in)
	return b
}

// Insn appends an operand-less instruction.
func (b *Builder) Insn(op Opcode) *Builder {
	return b.add(Instruction{Op: op})
}

// Push appends bipush or sipush.
func (b *Builder) Push(op Opcode, v int64) *Builder {
	return b.add(Instruction{Op: op, Int: v})
}

// Ldc appends a constant load.
func (b *Builder) Ldc(c *Constant) *Builder {
	return b.add(Instruction{Op: LDC, Const: c})
}

// Var appends a load or store of slot.
func (b *Builder) Var(op Opcode, slot int) *Builder {
	return b.add(Instruction{Op: op, Var: slot})
}

// VarNamed appends a load or store of a named local, allocating it on first use.
func (b *Builder) VarNamed(op Opcode, name string) *Builder {
	slot := b.local(name, op == LSTORE || op == DSTORE || op == LLOAD || op == DLOAD)
	return b.Var(op, slot)
}

// Iinc appends an in-place increment of slot.
func (b *Builder) Iinc(slot int, inc int64) *Builder {
	return b.add(Instruction{Op: IINC, Var: slot, Int: inc})
}

// TypeInsn appends new, anewarray, checkcast or instanceof.
func (b *Builder) TypeInsn(op Opcode, typ string) *Builder {
	return b.add(Instruction{Op: op, Type: typ})
}

// NewArray appends a primitive array allocation. elem may be a keyword
// ("byte"), a descriptor ("B") or a class file code ("8").
func (b *Builder) NewArray(elem string) *Builder {
	d, err := NewArrayElement(elem)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.add(Instruction{Op: NEWARRAY, Type: d})
}

// MultiANewArray appends a multi-dimensional array allocation.
func (b *Builder) MultiANewArray(desc string, dims int) *Builder {
	return b.add(Instruction{Op: MULTIANEWARRAY, Type: desc, Int: int64(dims)})
}

// Field appends a field access.
func (b *Builder) Field(op Opcode, owner, name, desc string) *Builder {
	return b.add(Instruction{Op: op, Member: &MemberRef{Owner: owner, Name: name, Desc: desc}})
}

// Invoke appends a method invocation.
func (b *Builder) Invoke(op Opcode, owner, name, desc string) *Builder {
	return b.add(Instruction{Op: op, Member: &MemberRef{Owner: owner, Name: name, Desc: desc}})
}

// Jump appends a branch to label.
func (b *Builder) Jump(op Opcode, label string) *Builder {
	return b.add(Instruction{Op: op, Target: label})
}

// TableSwitch appends a tableswitch whose case i matches low+i.
func (b *Builder) TableSwitch(low int32, dflt string, cases ...string) *Builder {
	return b.add(Instruction{Op: TABLESWITCH, Switch: &Switch{Low: low, Cases: cases, Default: dflt}})
}

// LookupSwitch appends a lookupswitch.
func (b *Builder) LookupSwitch(dflt string, keys []int32, cases []string) *Builder {
	if len(keys) != len(cases) {
		b.fail(fmt.Errorf("lookupswitch has %d keys but %d cases", len(keys), len(cases)))
		return b
	}
	return b.add(Instruction{Op: LOOKUPSWITCH, Switch: &Switch{Keys: keys, Cases: cases, Default: dflt}})
}

// Append adds a fully formed instruction.
func (b *Builder) Append(in Instruction) *Builder {
	return b.add(in)
}

// TryCatch declares an exception handler range.
func (b *Builder) TryCatch(start, end, handler, typ string) *Builder {
	b.m.TryCatches = append(b.m.TryCatches, TryCatch{Start: start, End: end, Handler: handler, Type: typ})
	return b
}

// Err returns the first recorded error.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the assembled method.
func (b *Builder) Build() (*Method, error) {
	if b.err != nil {
		return nil, fmt.Errorf("building %s.%s%s: %w", b.m.Owner, b.m.Name, b.m.Descriptor, b.err)
	}
	return b.m, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// static fixtures.
func (b *Builder) MustBuild() *Method {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
