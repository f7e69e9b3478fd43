package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"contentpilot/internal/types"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stub publishers allow the service to boot locally without platform
// credentials. They log every call and return predictable receipts.
// ---------------------------------------------------------------------------

// StubPublisher implements Publisher by logging the call and returning a
// fake post id. Used when PLATFORM_STUB_MODE is enabled.
type StubPublisher struct {
	platform types.Platform
	logger   *slog.Logger
	seq      atomic.Int64
}

// NewStubPublisher creates a StubPublisher for platform.
func NewStubPublisher(platform types.Platform, logger *slog.Logger) *StubPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubPublisher{platform: platform, logger: logger}
}

// Platform implements Publisher.
func (s *StubPublisher) Platform() types.Platform { return s.platform }

// Publish implements Publisher.
func (s *StubPublisher) Publish(ctx context.Context, item types.ContentItem) (types.PublishReceipt, error) {
	n := s.seq.Add(1)
	s.logger.InfoContext(ctx, "stub: Publish called",
		"platform", s.platform,
		"content_id", item.ID,
		"title", item.Title,
	)
	id := fmt.Sprintf("%s_stub_%d", s.platform, n)
	return types.PublishReceipt{
		PostID:  id,
		PostURL: fmt.Sprintf("https://%s.stub.local/posts/%s", s.platform, id),
	}, nil
}

// Compile-time assertion that StubPublisher satisfies Publisher.
var _ Publisher = (*StubPublisher)(nil)
