package simulation

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

func (s *Simulator) incCounter(name string, n int) {
	if n == 0 {
		return
	}

	s.counterMutex.Lock()
	defer s.counterMutex.Unlock()

	s.counter[name] += n
}

// logSummary logs the counters accumulated since the previous summary and
// resets them.
func (s *Simulator) logSummary(interval time.Duration) {
	stats := s.world.IndexStats()

	s.counterMutex.Lock()
	defer s.counterMutex.Unlock()

	if len(s.counter) == 0 {
		return
	}

	entry := logs.
		WithTag("world_uuid", s.world.WorldUUID).
		WithTag("time_interval", interval).
		WithTag("entity_count", stats.Count).
		WithTag("index_cells", stats.Cells).
		WithTag("index_depth", stats.Depth).
		WithTag("index_bounds", stats.Bounds)

	for k, v := range s.counter {
		entry = entry.WithTag(k, v)
		delete(s.counter, k)
	}

	entry.Info("simulation summary")
}
