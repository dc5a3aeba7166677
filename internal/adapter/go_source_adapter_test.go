package adapter

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveProbe exists so ResolveFunction has a top-level declaration to find
// from a live program counter.
func resolveProbe() int {
	return probeHelper() + 1
}

func probeHelper() int {
	return 41
}

func TestResolveFunction(t *testing.T) {
	a := NewLocalGoSourceAdapter()

	pc := reflect.ValueOf(resolveProbe).Pointer()

	c, err := a.ResolveFunction(pc)
	require.NoError(t, err)

	assert.Equal(t, "resolveProbe", c.Name)
	require.NotNil(t, c.Decl)
	assert.NotEmpty(t, c.Key)

	helper, ok := c.Bindings["probeHelper"]
	require.True(t, ok, "sibling functions become bindings")
	assert.Equal(t, "probeHelper", helper.Name)
}

func TestResolveFunctionBadPC(t *testing.T) {
	a := NewLocalGoSourceAdapter()

	_, err := a.ResolveFunction(0)
	assert.Error(t, err)
}

func TestResolveFunctionMemoizesDirectories(t *testing.T) {
	a := NewLocalGoSourceAdapter()

	pc := reflect.ValueOf(resolveProbe).Pointer()

	first, err := a.ResolveFunction(pc)
	require.NoError(t, err)

	second, err := a.ResolveFunction(pc)
	require.NoError(t, err)

	assert.Same(t, first, second, "repeated lookups hit the directory index")
}

func TestParseSnippet(t *testing.T) {
	a := NewLocalGoSourceAdapter()

	t.Run("full file", func(t *testing.T) {
		c, err := a.ParseSnippet("TestTarget", `package p

import "os"

func TestTarget() {
	os.Setenv("KEY", "value")
}
`)
		require.NoError(t, err)

		assert.Equal(t, "TestTarget", c.Name)
		assert.Empty(t, c.Key, "snippet callables are never cached")
		assert.Equal(t, "os", c.Imports["os"])
	})

	t.Run("bare function declaration", func(t *testing.T) {
		c, err := a.ParseSnippet("helper", `func helper() { return }`)
		require.NoError(t, err)
		assert.Equal(t, "helper", c.Name)
	})

	t.Run("indented fragment", func(t *testing.T) {
		c, err := a.ParseSnippet("nested", "\tfunc nested() {\n\t\treturn\n\t}\n")
		require.NoError(t, err)
		assert.Equal(t, "nested", c.Name)
	})

	t.Run("first function when name is empty", func(t *testing.T) {
		c, err := a.ParseSnippet("", `package p

func first() {}

func second() {}
`)
		require.NoError(t, err)
		assert.Equal(t, "first", c.Name)
	})

	t.Run("missing function", func(t *testing.T) {
		_, err := a.ParseSnippet("absent", `package p

func present() {}
`)
		assert.Error(t, err)
	})

	t.Run("unparsable source", func(t *testing.T) {
		_, err := a.ParseSnippet("broken", `func broken( {`)
		assert.Error(t, err)
	})
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "a\n  b", dedent("  a\n    b"))
	assert.Equal(t, "a\nb", dedent("a\nb"))
	assert.Equal(t, "\na\n", dedent("\n\ta\n"))
}
