package rulematch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2)
	c.Put("a", strptr("1"))
	c.Put("b", strptr("2"))
	c.Put("c", strptr("3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "3", *v)
}

func TestLRUCacheGetRefreshes(t *testing.T) {
	c := newLRUCache(2)
	c.Put("a", strptr("1"))
	c.Put("b", strptr("2"))
	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("c", strptr("3"))

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestLRUCacheStoresNil(t *testing.T) {
	c := newLRUCache(4)
	c.Put("miss", nil)
	v, ok := c.Get("miss")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.Put("a", strptr("old"))
	c.Put("a", strptr("new"))
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", *v)
}

func TestLRUCacheBounded(t *testing.T) {
	c := newLRUCache(16)
	for i := 0; i < 1000; i++ {
		c.Put(fmt.Sprintf("k%d", i), nil)
	}
	assert.Equal(t, 16, c.Len())
}
