// Package metrics records engine activity: rotations,
// completions, cancellations, replacement negotiation outcomes,
// and reward dispatch failures.
package metrics

import "time"

// EngineMetrics defines the interface for recording engine
// metrics.
type EngineMetrics interface {
	// RecordRotation records a rotation of list under policy.
	RecordRotation(list, policy string)
	// RecordCompletion records a completed challenge and how
	// long the attempt took.
	RecordCompletion(list, challengeID string, took time.Duration)
	// RecordCancellation records an active attempt removed
	// for reason (evicted, rotated, expired, abandoned, reset).
	RecordCancellation(list, reason string)
	// RecordReplacement records a negotiation outcome.
	RecordReplacement(outcome string)
	// RecordRewardFailure records a reward that failed to
	// dispatch.
	RecordRewardFailure(rewardType string)
}

// NoopMetrics is a no-op implementation of EngineMetrics used
// when metrics collection is disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordRotation(_, _ string)                    {}
func (NoopMetrics) RecordCompletion(_, _ string, _ time.Duration) {}
func (NoopMetrics) RecordCancellation(_, _ string)                {}
func (NoopMetrics) RecordReplacement(_ string)                    {}
func (NoopMetrics) RecordRewardFailure(_ string)                  {}
