package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGetExpire(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string](Options{DefaultExpiration: time.Minute})
	c.now = func() time.Time { return now }

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "alpha", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count())

	c.DeleteExpired()
	assert.Equal(t, 0, c.Count())
}

func TestMaxItemsEvictsSoonestToExpire(t *testing.T) {
	c := New[int](Options{MaxItems: 2})
	var evicted []string
	c.SetOnEvicted(func(k string, _ int) { evicted = append(evicted, k) })

	c.SetWithExpiration("short", 1, time.Second)
	c.SetWithExpiration("long", 2, time.Hour)
	c.Set("forever", 3)

	assert.Equal(t, []string{"short"}, evicted)
	assert.Equal(t, 2, c.Count())

	c.Set("long", 20)
	assert.Equal(t, 2, c.Count())
}

func TestDeleteAndFlush(t *testing.T) {
	c := New[int](Options{CleanupInterval: time.Hour})
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Flush()
	assert.Equal(t, 0, c.Count())
	c.Stop()
}
