// Package metrics records publishing telemetry. Two backends exist: a
// Prometheus registry scraped from /metrics and a CloudWatch pusher. Both
// emit the same metric set, named by the constants in the types package.
package metrics

import (
	"context"
	"time"

	"contentpilot/internal/types"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Recorder is the full telemetry surface. Consumers declare narrower
// interfaces for the subset they use.
type Recorder interface {
	RecordPublish(ctx context.Context, platform types.Platform, success bool, latency time.Duration)
	RecordTaskFinished(ctx context.Context, status types.TaskStatus)
	RecordPostScheduled(ctx context.Context, platform types.Platform)
}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailed
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPublish(context.Context, types.Platform, bool, time.Duration) {}
func (Nop) RecordTaskFinished(context.Context, types.TaskStatus)              {}
func (Nop) RecordPostScheduled(context.Context, types.Platform)               {}

// Multi fans every call out to each recorder in order.
type Multi []Recorder

func (m Multi) RecordPublish(ctx context.Context, platform types.Platform, success bool, latency time.Duration) {
	for _, r := range m {
		r.RecordPublish(ctx, platform, success, latency)
	}
}

func (m Multi) RecordTaskFinished(ctx context.Context, status types.TaskStatus) {
	for _, r := range m {
		r.RecordTaskFinished(ctx, status)
	}
}

func (m Multi) RecordPostScheduled(ctx context.Context, platform types.Platform) {
	for _, r := range m {
		r.RecordPostScheduled(ctx, platform)
	}
}

var (
	_ Recorder = Nop{}
	_ Recorder = Multi(nil)
)
