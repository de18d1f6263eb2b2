package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	c.Set("k", []byte("0001"), "text/plain")
	body, contentType, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("0001"), body)
	assert.Equal(t, "text/plain", contentType)

	_, _, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache(10, 20*time.Millisecond)

	c.Set("k", []byte("v"), "")
	_, _, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, _, ok = c.Get("k")
	assert.False(t, ok)
	// Lazy eviction removed the entry.
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewLRUCache(3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"), "")
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 3, c.Size())

	c.Set("k3", []byte("v"), "")
	assert.Equal(t, 3, c.Size())
	_, _, ok := c.Get("k0")
	assert.False(t, ok)
	_, _, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestLRUCache_UpdateInPlace(t *testing.T) {
	c := NewLRUCache(2, time.Minute)

	c.Set("k", []byte("old"), "")
	c.Set("k", []byte("new"), "")
	assert.Equal(t, 1, c.Size())

	body, _, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), body)
}

func TestLRUCache_Invalidate(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	c.Set("a", []byte("v"), "")
	c.Set("b", []byte("v"), "")

	c.Invalidate("a")
	_, _, ok := c.Get("a")
	assert.False(t, ok)
	_, _, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Size())
}
