package queue

import (
	"context"
	"log/slog"

	"contentpilot/internal/types"
)

// ContentMarker updates scheduled posts for a content item on a platform.
// Implemented by *scheduler.Scheduler.
type ContentMarker interface {
	MarkContent(contentID string, platform types.Platform, status types.PostStatus) int
}

// ScheduleSync mirrors per-platform task results onto the scheduled posts of
// the same content, so the calendar shows what actually went out.
type ScheduleSync struct {
	marker ContentMarker
	logger *slog.Logger
}

// NewScheduleSync creates a ScheduleSync.
func NewScheduleSync(marker ContentMarker, logger *slog.Logger) *ScheduleSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleSync{marker: marker, logger: logger}
}

// OnTaskFinished implements TaskObserver.
func (s *ScheduleSync) OnTaskFinished(ctx context.Context, task types.PublishTask) {
	for _, r := range task.Results {
		status := types.PostStatusPublished
		if !r.Success {
			status = types.PostStatusFailed
		}
		if n := s.marker.MarkContent(task.ContentItem.ID, r.Platform, status); n > 0 {
			s.logger.InfoContext(ctx, "scheduled posts updated",
				"content_id", task.ContentItem.ID,
				"platform", r.Platform,
				"status", status,
				"count", n,
			)
		}
	}
}

var _ TaskObserver = (*ScheduleSync)(nil)
