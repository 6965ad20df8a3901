package goSession

// MetricsSnapshot returns a point-in-time copy of every counter and, when
// enabled, the identity latency histogram. With metrics disabled the maps are
// empty.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// MetricValue returns one counter.
func (s *Store) MetricValue(id MetricID) uint64 {
	return s.metrics.Value(id)
}
