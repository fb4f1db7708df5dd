package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

// Sample holds one sampling pass: metrics for the current window and the
// immediately preceding one.
type Sample struct {
	Current  *DeliveryMetrics
	Previous *DeliveryMetrics

	// Insufficient is set when the current window holds fewer records than
	// the minimum sample size; the cycle performs no classification then.
	Insufficient bool
}

// Sampler reads delivery logs and aggregates them into window metrics.
// Read-only; it never writes to the log source.
type Sampler struct {
	logs      storage.DeliveryLogRepository
	channel   models.Channel
	window    time.Duration
	minSample int
}

// NewSampler creates a sampler over the given delivery log source.
func NewSampler(logs storage.DeliveryLogRepository, channel models.Channel, window time.Duration, minSample int) *Sampler {
	if window <= 0 {
		window = time.Hour
	}
	if minSample <= 0 {
		minSample = DefaultThresholds().MinSampleSize
	}
	return &Sampler{
		logs:      logs,
		channel:   channel,
		window:    window,
		minSample: minSample,
	}
}

// SampleAt computes metrics for [now-W, now) and [now-2W, now-W).
func (s *Sampler) SampleAt(ctx context.Context, now time.Time) (*Sample, error) {
	currentStart := now.Add(-s.window)
	previousStart := now.Add(-2 * s.window)

	currentRecords, err := s.logs.ListWindow(ctx, s.channel, currentStart, now)
	if err != nil {
		return nil, fmt.Errorf("read current window: %w", err)
	}

	previousRecords, err := s.logs.ListWindow(ctx, s.channel, previousStart, currentStart)
	if err != nil {
		return nil, fmt.Errorf("read previous window: %w", err)
	}

	sample := &Sample{
		Current:  Aggregate(currentRecords, currentStart, now),
		Previous: Aggregate(previousRecords, previousStart, currentStart),
	}
	sample.Insufficient = sample.Current.TotalCount < s.minSample

	return sample, nil
}
