package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_InsertionOrder(t *testing.T) {
	c := NewCatalog()
	assert.True(t, c.Add(Descriptor{Name: "read_file", Provider: "filesystem"}))
	assert.True(t, c.Add(Descriptor{Name: "list_dir", Provider: "filesystem"}))
	assert.True(t, c.Add(Descriptor{Name: "fetch", Provider: "web"}))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"read_file", "list_dir", "fetch"}, c.Names())

	ds := c.Descriptors()
	assert.Len(t, ds, 3)
	assert.Equal(t, "read_file", ds[0].Name)
	assert.Equal(t, "web", ds[2].Provider)
}

func TestCatalog_CollisionFirstWins(t *testing.T) {
	c := NewCatalog()
	assert.True(t, c.Add(Descriptor{Name: "search", Provider: "alpha"}))
	assert.False(t, c.Add(Descriptor{Name: "search", Provider: "beta"}))

	d, ok := c.Get("search")
	assert.True(t, ok)
	assert.Equal(t, "alpha", d.Provider)
	assert.Equal(t, 1, c.Len())
}

func TestCatalog_GetMissing(t *testing.T) {
	c := NewCatalog()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}
