package spectralseg

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEigs is called after each per-image eigendecomposition.
	// k is the number of eigenpairs requested, duration is the time
	// taken, err is nil if successful.
	RecordEigs(k int, duration time.Duration, err error)

	// RecordSegmentation is called after each per-image discretization.
	// segments is the number of regions produced.
	RecordSegmentation(segments int, duration time.Duration, err error)

	// RecordBatch is called after each batch run.
	// count is the number of images attempted, skipped is the number
	// whose outputs already existed, failed is the number that failed.
	RecordBatch(stage string, count, skipped, failed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEigs(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordSegmentation(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordBatch(string, int, int, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EigsCount         atomic.Int64
	EigsErrors        atomic.Int64
	EigsTotalNanos    atomic.Int64
	SegmentCount      atomic.Int64
	SegmentErrors     atomic.Int64
	SegmentTotalNanos atomic.Int64
	BatchCount        atomic.Int64
	BatchItems        atomic.Int64
	BatchSkipped      atomic.Int64
	BatchFailed       atomic.Int64
}

// RecordEigs implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEigs(k int, duration time.Duration, err error) {
	b.EigsCount.Add(1)
	b.EigsTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EigsErrors.Add(1)
	}
}

// RecordSegmentation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSegmentation(segments int, duration time.Duration, err error) {
	b.SegmentCount.Add(1)
	b.SegmentTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SegmentErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(stage string, count, skipped, failed int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchSkipped.Add(int64(skipped))
	b.BatchFailed.Add(int64(failed))
}
