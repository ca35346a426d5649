package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, size int, ttl time.Duration, opts ...Option[string]) (*LRUCache[string], *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl, opts...)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsOldest(t *testing.T) {
	var evicted []string
	c, _ := newTestCache(t, 2, time.Minute, WithEvictHook(func(k, _ string) { evicted = append(evicted, k) }))

	c.Set("a", "1")
	c.Set("b", "2")
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", "3")

	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")

	clk.advance(30 * time.Second)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	clk.advance(31 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestSlidingExpiry(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute, WithSlidingExpiry[string]())
	c.Set("s", "sim")

	for i := 0; i < 5; i++ {
		clk.advance(45 * time.Second)
		_, ok := c.Get("s")
		require.True(t, ok, "hit %d", i)
	}
	clk.advance(2 * time.Minute)
	_, ok := c.Get("s")
	assert.False(t, ok)
}

func TestDeleteDoesNotFireHook(t *testing.T) {
	fired := 0
	c, _ := newTestCache(t, 10, time.Minute, WithEvictHook(func(string, string) { fired++ }))
	c.Set("a", "1")
	c.Delete("a")
	assert.Zero(t, fired)
	assert.Zero(t, c.Size())
}

func TestManagerSweep(t *testing.T) {
	c, clk := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.advance(time.Minute + time.Second)
	c.Set("c", "3")

	m := NewManager(nil)
	m.Register("test", c)
	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 1, c.Size())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
