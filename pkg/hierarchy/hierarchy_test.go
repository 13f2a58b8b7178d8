package hierarchy

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bytecode-flow/pkg/value"
)

func TestBuiltin_CommonSupertype(t *testing.T) {
	h := Builtin()

	tests := []struct {
		a, b string
		want string
	}{
		{"java/util/List", "java/util/Set", "java/util/Collection"},
		{"java/util/Set", "java/util/List", "java/util/Collection"},
		{"java/util/Collection", "java/util/HashSet", "java/util/Collection"},
		{"java/util/HashSet", "java/util/List", "java/util/Collection"},
		{"java/util/ArrayList", "java/util/HashSet", "java/util/AbstractCollection"},
		{"java/util/ArrayList", "java/util/LinkedList", "java/util/AbstractList"},
		{"java/util/ArrayList", "java/util/List", "java/util/List"},
		{"java/util/HashMap", "java/util/TreeMap", "java/util/AbstractMap"},
		{"java/lang/Integer", "java/lang/Long", "java/lang/Number"},
		{"java/lang/IllegalArgumentException", "java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/io/IOException", "java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/String", "java/lang/StringBuilder", "java/io/Serializable"},
		{"java/lang/String", "java/util/ArrayList", "java/io/Serializable"},
		{"java/lang/Thread", "java/util/Map", "java/lang/Object"},
		{"java/lang/String", "java/lang/String", "java/lang/String"},
		{"java/lang/String", "java/lang/Object", "java/lang/Object"},
		{"com/example/Unknown", "java/lang/String", ""},
	}
	for _, tt := range tests {
		t.Run(tt.a+"+"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, h.CommonSupertype(tt.a, tt.b))
		})
	}
}

func TestBuiltin_TypeMergeThroughLattice(t *testing.T) {
	h := Builtin()
	v := value.Object("java/util/List")
	for _, next := range []string{"java/util/Set", "java/util/HashSet", "java/util/ArrayList"} {
		merged, wonky, _ := value.Merge(v, value.Object(next), h)
		require.False(t, wonky)
		v = merged
	}
	assert.Equal(t, value.Object("java/util/Collection"), v)
}

func TestSupertypes(t *testing.T) {
	h := Builtin()
	assert.Equal(t,
		[]string{"java/lang/Integer", "java/lang/Number", "java/lang/Comparable", "java/lang/Object", "java/io/Serializable"},
		h.Supertypes("java/lang/Integer"))
	assert.Equal(t, []string{"x/Unknown", "java/lang/Object"}, h.Supertypes("x/Unknown"))
}

func TestIsAssignable(t *testing.T) {
	h := Builtin()
	assert.True(t, h.IsAssignable("java/util/ArrayList", "java/lang/Iterable"))
	assert.True(t, h.IsAssignable("x/Unknown", "java/lang/Object"))
	assert.False(t, h.IsAssignable("java/util/List", "java/util/ArrayList"))
}

func TestNew(t *testing.T) {
	h, err := New(
		Class{Name: "app/Animal"},
		Class{Name: "app/Pet", Interface: true, Super: "app/Animal"},
		Class{Name: "app/Dog", Super: "app/Animal", Interfaces: []string{"app/Pet"}},
		Class{Name: "app/Cat", Super: "app/Animal", Interfaces: []string{"app/Pet"}},
	)
	require.NoError(t, err)

	assert.Equal(t, "app/Animal", h.CommonSupertype("app/Dog", "app/Cat"))
	pet, ok := h.Lookup("app/Pet")
	require.True(t, ok)
	assert.Empty(t, pet.Super, "interfaces have no superclass")
	animal, _ := h.Lookup("app/Animal")
	assert.Equal(t, "java/lang/Object", animal.Super)
	assert.Equal(t, 5, h.Len())

	_, err = New(Class{})
	assert.Error(t, err)
	_, err = New(Class{Name: "a/A", Super: "a/A"})
	assert.Error(t, err)
}

func TestNew_CycleTerminates(t *testing.T) {
	h, err := New(
		Class{Name: "a/A", Super: "a/B"},
		Class{Name: "a/B", Super: "a/A"},
		Class{Name: "a/C"},
	)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", h.CommonSupertype("a/A", "a/C"))
}

const appYAML = `classes:
  - name: app/Shape
    interface: true
  - name: app/Circle
    interfaces: [app/Shape]
  - name: app/Square
    interfaces: [app/Shape]
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hierarchy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(appYAML), 0o644))

	h, err := Load(true, path)
	require.NoError(t, err)
	assert.Equal(t, "app/Shape", h.CommonSupertype("app/Circle", "app/Square"))
	assert.Equal(t, "java/util/Collection", h.CommonSupertype("java/util/List", "java/util/Set"))

	bare, err := Load(false, path)
	require.NoError(t, err)
	assert.Equal(t, "", bare.CommonSupertype("java/util/List", "java/util/Set"))
	assert.Equal(t, 4, bare.Len())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(false, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("classes: [:"), 0o644))
	_, err = Load(false, bad)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestCached(t *testing.T) {
	calls := 0
	inner := value.OracleFunc(func(a, b string) string {
		calls++
		return Builtin().CommonSupertype(a, b)
	})
	c := NewCached(inner, 0)

	assert.Equal(t, "java/util/Collection", c.CommonSupertype("java/util/List", "java/util/Set"))
	assert.Equal(t, "java/util/Collection", c.CommonSupertype("java/util/List", "java/util/Set"))
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.HitCount)
	assert.EqualValues(t, 1, stats.MissCount)
}

func TestCached_Concurrent(t *testing.T) {
	c := NewCached(Builtin(), 8)
	pairs := [][2]string{
		{"java/util/List", "java/util/Set"},
		{"java/lang/Integer", "java/lang/Long"},
		{"java/util/ArrayList", "java/util/LinkedList"},
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p := pairs[i%len(pairs)]
				c.CommonSupertype(p[0], p[1])
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "java/lang/Number", c.CommonSupertype("java/lang/Integer", "java/lang/Long"))
}
