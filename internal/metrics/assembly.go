package metrics

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wegman-software/osm-multipolygon/internal/batch"
)

// AssemblyStats accumulates internal/batch.Coordinator output across
// one or more Run calls, the way Collector accumulates system samples
// across one run's lifetime.
type AssemblyStats struct {
	waysAssembled      int64
	relationsAssembled int64
	areasValid         int64
	areasInvalid       int64
}

// Add folds one batch.Run's Stats into the running total. Safe to call
// from multiple goroutines, matching the atomic-counter convention
// internal/batch itself uses.
func (s *AssemblyStats) Add(stats batch.Stats) {
	atomic.AddInt64(&s.waysAssembled, stats.WaysAssembled)
	atomic.AddInt64(&s.relationsAssembled, stats.RelationsAssembled)
	atomic.AddInt64(&s.areasValid, stats.AreasValid)
	atomic.AddInt64(&s.areasInvalid, stats.AreasInvalid)
}

// Snapshot returns the current totals as a plain batch.Stats value.
func (s *AssemblyStats) Snapshot() batch.Stats {
	return batch.Stats{
		WaysAssembled:      atomic.LoadInt64(&s.waysAssembled),
		RelationsAssembled: atomic.LoadInt64(&s.relationsAssembled),
		AreasValid:         atomic.LoadInt64(&s.areasValid),
		AreasInvalid:       atomic.LoadInt64(&s.areasInvalid),
	}
}

// Log emits the current totals as a structured log line, in the same
// style Collector.collect logs system metrics.
func (s *AssemblyStats) Log(logger *zap.Logger) {
	snap := s.Snapshot()
	logger.Info("Area assembly totals",
		zap.Int64("ways_assembled", snap.WaysAssembled),
		zap.Int64("relations_assembled", snap.RelationsAssembled),
		zap.Int64("areas_valid", snap.AreasValid),
		zap.Int64("areas_invalid", snap.AreasInvalid),
	)
}
