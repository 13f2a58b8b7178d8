// Package hierarchy answers common-supertype queries from a static class
// table. A Hierarchy satisfies value.Oracle.
package hierarchy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Class declares one type and its direct supertypes. Super defaults to
// java/lang/Object for classes and is ignored for interfaces.
type Class struct {
	Name       string   `yaml:"name" json:"name"`
	Super      string   `yaml:"super,omitempty" json:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Interface  bool     `yaml:"interface,omitempty" json:"interface,omitempty"`
}

// file is the on-disk layout of a hierarchy file.
type file struct {
	Classes []Class `yaml:"classes"`
}

// Hierarchy is an immutable class table. It is safe for concurrent use.
type Hierarchy struct {
	classes map[string]Class
}

// New builds a hierarchy from classes. Later declarations of the same name
// replace earlier ones.
func New(classes ...Class) (*Hierarchy, error) {
	h := &Hierarchy{classes: map[string]Class{
		types.ObjectType: {Name: types.ObjectType},
	}}
	for _, c := range classes {
		if err := h.add(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hierarchy) add(c Class) error {
	if c.Name == "" {
		return fmt.Errorf("class without a name")
	}
	if c.Name == c.Super {
		return fmt.Errorf("class %s extends itself", c.Name)
	}
	if c.Interface || c.Name == types.ObjectType {
		c.Super = ""
	} else if c.Super == "" {
		c.Super = types.ObjectType
	}
	h.classes[c.Name] = c
	return nil
}

var builtin = func() *Hierarchy {
	classes, err := Decode(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("builtin hierarchy: %v", err))
	}
	h, err := New(classes...)
	if err != nil {
		panic(fmt.Sprintf("builtin hierarchy: %v", err))
	}
	return h
}()

// Builtin returns the embedded JDK subset.
func Builtin() *Hierarchy { return builtin }

// Decode parses a YAML hierarchy document.
func Decode(data []byte) ([]Class, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy: %w", err)
	}
	return f.Classes, nil
}

// LoadFile reads the class declarations of a YAML hierarchy file.
func LoadFile(path string) ([]Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}
	classes, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return classes, nil
}

// Load builds a hierarchy from the given files, optionally layered over the
// builtin table.
func Load(withBuiltin bool, paths ...string) (*Hierarchy, error) {
	var classes []Class
	if withBuiltin {
		classes = builtin.Classes()
	}
	for _, p := range paths {
		cs, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		classes = append(classes, cs...)
	}
	return New(classes...)
}

// Classes returns every declared class sorted by name.
func (h *Hierarchy) Classes() []Class {
	out := make([]Class, 0, len(h.classes))
	for _, c := range h.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known classes.
func (h *Hierarchy) Len() int { return len(h.classes) }

// Lookup returns the declaration of name.
func (h *Hierarchy) Lookup(name string) (Class, bool) {
	c, ok := h.classes[name]
	return c, ok
}

// Supertypes returns name and all of its known supertypes in breadth-first
// order, superclass before interfaces. Cycles in malformed input are cut.
func (h *Hierarchy) Supertypes(name string) []string {
	seen := map[string]bool{name: true}
	out := []string{name}
	for i := 0; i < len(out); i++ {
		c, ok := h.classes[out[i]]
		if !ok {
			continue
		}
		next := c.Interfaces
		if c.Super != "" {
			next = append([]string{c.Super}, next...)
		}
		for _, s := range next {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	if !seen[types.ObjectType] {
		out = append(out, types.ObjectType)
	}
	return out
}

// IsAssignable reports whether a value of type from may be stored where to
// is expected.
func (h *Hierarchy) IsAssignable(from, to string) bool {
	if from == to || to == types.ObjectType {
		return true
	}
	for _, s := range h.Supertypes(from) {
		if s == to {
			return true
		}
	}
	return false
}

// superclasses returns the class chain of name above itself, excluding
// java/lang/Object.
func (h *Hierarchy) superclasses(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	for c, ok := h.classes[name]; ok && c.Super != "" && c.Super != types.ObjectType; c, ok = h.classes[c.Super] {
		if seen[c.Super] {
			break
		}
		seen[c.Super] = true
		out = append(out, c.Super)
	}
	return out
}

// CommonSupertype returns the most specific type both a and b are assignable
// to. A shared superclass wins over a shared interface. It returns "" when
// either type is unknown so the caller can fall back to java/lang/Object.
func (h *Hierarchy) CommonSupertype(a, b string) string {
	if a == b {
		return a
	}
	if _, ok := h.classes[a]; !ok {
		return ""
	}
	if _, ok := h.classes[b]; !ok {
		return ""
	}
	if h.IsAssignable(a, b) {
		return b
	}
	if h.IsAssignable(b, a) {
		return a
	}

	for _, s := range h.superclasses(a) {
		if h.IsAssignable(b, s) {
			return s
		}
	}

	var shared []string
	for _, s := range h.Supertypes(a)[1:] {
		if s != types.ObjectType && h.IsAssignable(b, s) {
			shared = append(shared, s)
		}
	}
	for _, s := range shared {
		specific := true
		for _, o := range shared {
			if o != s && h.IsAssignable(o, s) {
				specific = false
				break
			}
		}
		if specific {
			return s
		}
	}
	return types.ObjectType
}
