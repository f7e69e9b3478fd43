package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// ContentProducer generates new content items on request. The autopilot and
// the API depend on this contract; the template generator in the content
// package is the in-process implementation.
type ContentProducer interface {
	Produce(ctx context.Context, req ContentRequest) (ContentItem, error)
}

// ContentRequest describes the item a producer should generate.
type ContentRequest struct {
	Topic string
	Type  ContentType
}
