package spatial

// Stats describes the shape of an index tree.
type Stats struct {
	Count        int       `json:"count"`
	Cells        int       `json:"cells"`
	Leaves       int       `json:"leaves"`
	Depth        int       `json:"depth"`
	MaxLeafItems int       `json:"max_leaf_items"`
	Bounds       AABB      `json:"bounds"`
	MinCellSize  float64   `json:"min_cell_size"`
	Pool         PoolStats `json:"pool"`
}

// Stats walks the tree and returns its statistics.
func (x *Index[T]) Stats() Stats {
	stats := Stats{
		Count:       x.Count(),
		Bounds:      x.Bounds(),
		MinCellSize: x.unit,
		Pool:        x.pool.Stats(),
	}
	x.walkStats(x.root, 1, &stats)
	return stats
}

func (x *Index[T]) walkStats(id cellID, depth int, stats *Stats) {
	c := x.pool.at(id)
	stats.Cells++
	if depth > stats.Depth {
		stats.Depth = depth
	}

	if c.isLeaf() {
		stats.Leaves++
		if len(c.items) > stats.MaxLeafItems {
			stats.MaxLeafItems = len(c.items)
		}
		return
	}

	for _, child := range c.children {
		if child != noCell {
			x.walkStats(child, depth+1, stats)
		}
	}
}
