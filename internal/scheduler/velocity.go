package scheduler

import (
	"time"

	"contentpilot/internal/types"
)

const week = 7 * 24 * time.Hour

// VelocityPost is one not-yet-scheduled post in a velocity batch.
type VelocityPost struct {
	ContentID string         `json:"content_id" validate:"required"`
	Platform  types.Platform `json:"platform" validate:"required"`
}

// ApplyGradualVelocity spreads posts across the week at postsPerWeek. Each
// post lands on the later of its platform's next optimal slot and a running
// cursor that advances by one interval per post, so scheduled times are
// non-decreasing in input order. The batch is validated up front and either
// fully scheduled or rejected.
func (s *Scheduler) ApplyGradualVelocity(posts []VelocityPost, postsPerWeek int) ([]types.ScheduledPost, error) {
	if postsPerWeek <= 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationVelocity,
			"posts per week must be positive", nil,
			map[string]any{"posts_per_week": postsPerWeek})
	}
	for i, p := range posts {
		if err := validatePost(p.ContentID, p.Platform); err != nil {
			return nil, err.WithDetails(map[string]any{"index": i})
		}
	}

	interval := time.Duration(float64(week) / float64(postsPerWeek))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cursor := now
	out := make([]types.ScheduledPost, 0, len(posts))
	for _, p := range posts {
		slot := s.nextSlotLocked(p.Platform, now)
		if slot.After(cursor) {
			cursor = slot
		}
		// The cursor can land next to an earlier post on the same platform;
		// push it forward until the buffer is clear.
		for s.store.collides(p.Platform, cursor, CollisionBuffer) {
			cursor = cursor.Add(CollisionBuffer)
		}
		out = append(out, s.insertLocked(p.ContentID, p.Platform, cursor, now))
		cursor = cursor.Add(interval)
	}

	s.logger.Info("velocity batch scheduled",
		"posts", len(out),
		"posts_per_week", postsPerWeek,
		"interval", interval.String(),
	)
	return out, nil
}
