package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellPool(t *testing.T) {
	t.Run("get and put", func(t *testing.T) {
		pool := NewCellPool[int]()

		a := pool.get(lattice{1, 2, 3}, 9, 0)
		c := pool.at(a)
		require.Equal(t, lattice{1, 2, 3}, c.start)
		require.Equal(t, int64(9), c.size)
		require.True(t, c.isLeaf())
		require.Equal(t, PoolStats{Live: 1, Allocated: 1, Gets: 1}, pool.Stats())

		pool.put(a)
		require.Equal(t, PoolStats{Free: 1, Allocated: 1, Gets: 1, Puts: 1}, pool.Stats())

		b := pool.get(lattice{}, 27, 27)
		require.Equal(t, a, b)
		c = pool.at(b)
		require.False(t, c.released)
		require.False(t, c.isLeaf())
		require.Len(t, c.children, 27)
		for _, child := range c.children {
			require.Equal(t, noCell, child)
		}
		require.Equal(t, PoolStats{Live: 1, Allocated: 1, Gets: 2, Puts: 1}, pool.Stats())
	})

	t.Run("reused cell is reset", func(t *testing.T) {
		pool := NewCellPool[int]()

		id := pool.get(lattice{}, 3, 0)
		c := pool.at(id)
		c.items = append(c.items, entry[int]{item: 1}, entry[int]{item: 2})
		c.total = 2
		pool.put(id)

		c = pool.at(id)
		require.Empty(t, c.items)
		require.Equal(t, entry[int]{}, c.items[:2][0], "released items must not be retained")

		id = pool.get(lattice{3, 3, 3}, 1, 0)
		c = pool.at(id)
		require.Empty(t, c.items)
		require.Zero(t, c.total)
		require.Equal(t, lattice{3, 3, 3}, c.start)
	})

	t.Run("put releases descendants", func(t *testing.T) {
		pool := NewCellPool[int]()

		root := pool.get(lattice{}, 9, 27)
		child := pool.get(lattice{}, 3, 27)
		leaf := pool.get(lattice{}, 1, 0)
		pool.at(root).children[0] = child
		pool.at(child).children[13] = leaf

		pool.put(root)
		require.True(t, pool.at(root).released)
		require.True(t, pool.at(child).released)
		require.True(t, pool.at(leaf).released)
		require.Equal(t, 0, pool.Stats().Live)
		require.Equal(t, 3, pool.Stats().Free)
	})

	t.Run("double put panics", func(t *testing.T) {
		pool := NewCellPool[int]()

		id := pool.get(lattice{}, 1, 0)
		pool.put(id)
		require.Panics(t, func() {
			pool.put(id)
		})
	})
}

func TestNewWithNilPool(t *testing.T) {
	x, err := NewWithPool[int](nil, Options{})
	require.NoError(t, err)
	require.NoError(t, x.Add(1, Vector3{}))
	require.Equal(t, 1, x.Stats().Pool.Live)
}

func TestIndexPoolReuse(t *testing.T) {
	x := newTestIndex[int](t, Options{SplitThreshold: 2, MergeThreshold: 1})

	fill := func() {
		for i := 1; i <= 200; i++ {
			require.NoError(t, x.Add(i, Vector3{float64(i % 13), float64(i % 11), float64(i % 7)}))
		}
	}
	drain := func() {
		for i := 1; i <= 200; i++ {
			require.True(t, x.Remove(i, Vector3{float64(i % 13), float64(i % 11), float64(i % 7)}))
		}
	}

	fill()
	drain()
	allocated := x.pool.Stats().Allocated

	for i := 0; i < 5; i++ {
		fill()
		checkInvariants(t, x)
		drain()
		checkInvariants(t, x)
	}

	stats := x.pool.Stats()
	require.Equal(t, allocated, stats.Allocated)
	require.Equal(t, 1, stats.Live)
	require.Equal(t, stats.Gets-stats.Puts, uint64(stats.Live))
}

func TestStats(t *testing.T) {
	x := newTestIndex[int](t, Options{SplitThreshold: 2, MergeThreshold: 1})

	stats := x.Stats()
	require.Equal(t, 0, stats.Count)
	require.Equal(t, 1, stats.Cells)
	require.Equal(t, 1, stats.Leaves)
	require.Equal(t, 1, stats.Depth)
	require.Equal(t, x.unit, stats.MinCellSize)
	require.Equal(t, x.Bounds(), stats.Bounds)

	for i := 1; i <= 3; i++ {
		require.NoError(t, x.Add(i, Vector3{float64(i)*8 - 4, 1, 1}))
	}

	stats = x.Stats()
	require.Equal(t, 3, stats.Count)
	require.Equal(t, 4, stats.Cells)
	require.Equal(t, 3, stats.Leaves)
	require.Equal(t, 2, stats.Depth)
	require.Equal(t, 1, stats.MaxLeafItems)
}
