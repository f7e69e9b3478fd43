// Package scheduler decides when content should be published. It ranks
// (weekday, hour) slots per platform, places posts in the next free slot,
// and spreads batches across the week at a requested velocity.
//
// All scheduling state lives in memory and is guarded by a single mutex, so
// every exported method is safe for concurrent use.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentpilot/internal/types"
)

const (
	// CollisionBuffer is the minimum spacing between two scheduled posts on
	// the same platform.
	CollisionBuffer = time.Hour

	// searchHorizonDays bounds how far ahead the slot search looks before
	// falling back to the next free clock hour.
	searchHorizonDays = 14

	// slotCandidates is how many top-ranked slots the search considers.
	slotCandidates = 5

	// DefaultOptimalCount is the ranking size returned when callers ask for
	// a non-positive count.
	DefaultOptimalCount = 5
)

// Config holds the dependencies for a Scheduler.
type Config struct {
	// Timezone is the IANA zone in which weekdays and hours are interpreted.
	// Empty means UTC.
	Timezone string

	// Platforms is the set of platforms the scheduler ranks by default.
	Platforms []types.Platform

	// HistoricalData seeds historical scoring. It can be replaced later with
	// SetHistoricalData.
	HistoricalData []types.HistoricalPerformance

	// Seed drives the jitter applied to default slot scores. The jitter is
	// fixed per slot for the life of the scheduler. Zero seeds from the
	// clock.
	Seed uint64

	Clock  types.Clock
	Logger *slog.Logger
}

// Scheduler ranks publishing slots and owns the set of scheduled posts.
type Scheduler struct {
	mu sync.Mutex

	loc       *time.Location
	platforms []types.Platform
	history   map[types.Platform][]types.HistoricalPerformance
	seed      uint64
	store     *postStore

	clock  types.Clock
	logger *slog.Logger
}

// NewSmartScheduler creates a Scheduler. It fails only when the timezone is
// not a known IANA zone.
func NewSmartScheduler(cfg Config) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidTimezone,
				fmt.Sprintf("unknown timezone %q", cfg.Timezone), err)
		}
		loc = l
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clock.Now().UnixNano())
	}

	platforms := cfg.Platforms
	if len(platforms) == 0 {
		platforms = types.AllPlatforms
	}

	s := &Scheduler{
		loc:       loc,
		platforms: append([]types.Platform(nil), platforms...),
		seed:      seed,
		store:     newPostStore(),
		clock:     clock,
		logger:    logger,
	}
	s.history = groupHistory(cfg.HistoricalData)
	return s, nil
}

// Location returns the zone slots are interpreted in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Platforms returns the platforms configured on the scheduler.
func (s *Scheduler) Platforms() []types.Platform {
	return append([]types.Platform(nil), s.platforms...)
}

// SetHistoricalData replaces the historical engagement used for scoring.
func (s *Scheduler) SetHistoricalData(records []types.HistoricalPerformance) {
	grouped := groupHistory(records)

	s.mu.Lock()
	s.history = grouped
	s.mu.Unlock()

	s.logger.Info("historical performance loaded", "records", len(records), "platforms", len(grouped))
}

func groupHistory(records []types.HistoricalPerformance) map[types.Platform][]types.HistoricalPerformance {
	out := make(map[types.Platform][]types.HistoricalPerformance)
	for _, r := range records {
		out[r.Platform] = append(out[r.Platform], r)
	}
	return out
}

// FindOptimalTimes returns up to count ranked slots for platform, highest
// score first. A non-positive count uses DefaultOptimalCount. Platforms with
// at least MinHistoricalRecords records are ranked by their history;
// everyone else gets the default table with a small random jitter.
func (s *Scheduler) FindOptimalTimes(platform types.Platform, count int) []types.OptimalTime {
	if count <= 0 {
		count = DefaultOptimalCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOptimalTimesLocked(platform, count)
}

func (s *Scheduler) findOptimalTimesLocked(platform types.Platform, count int) []types.OptimalTime {
	var ranked []types.OptimalTime
	if records := s.history[platform]; len(records) >= MinHistoricalRecords {
		ranked = rankHistorical(platform, records)
	} else {
		ranked = rankDefaults(platform, func(day time.Weekday, hour int) float64 {
			return slotJitter(s.seed, platform, day, hour)
		})
	}
	sortByScore(ranked)
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	return ranked
}

// GetNextOptimalSlot walks the next two weeks day by day. On the first day
// matching a top ranked slot that yields a future, collision-free instant it
// returns that instant, trying that day's slots in rank order, so a
// higher-scored 19:00 wins over an 11:00 on the same day. When no day
// qualifies it returns the first collision-free clock hour after now.
func (s *Scheduler) GetNextOptimalSlot(platform types.Platform) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSlotLocked(platform, s.clock.Now())
}

func (s *Scheduler) nextSlotLocked(platform types.Platform, now time.Time) time.Time {
	top := s.findOptimalTimesLocked(platform, slotCandidates)
	local := now.In(s.loc)

	for d := 0; d < searchHorizonDays; d++ {
		day := local.AddDate(0, 0, d)
		for _, slot := range top {
			if slot.DayOfWeek != day.Weekday() {
				continue
			}
			candidate := time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, 0, 0, 0, s.loc)
			if !candidate.After(now) {
				continue
			}
			if s.store.collides(platform, candidate, CollisionBuffer) {
				continue
			}
			return candidate
		}
	}

	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, s.loc).Add(time.Hour)
	for s.store.collides(platform, next, CollisionBuffer) {
		next = next.Add(time.Hour)
	}
	s.logger.Debug("no optimal slot in search horizon, using fallback",
		"platform", platform, "scheduled_for", next)
	return next
}

// SchedulePost records a post for contentID on platform. A nil at places the
// post in the next optimal slot. An explicit at must lie in the future and
// must not collide with another scheduled post on the platform.
func (s *Scheduler) SchedulePost(contentID string, platform types.Platform, at *time.Time) (types.ScheduledPost, error) {
	if err := validatePost(contentID, platform); err != nil {
		return types.ScheduledPost{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var when time.Time
	if at == nil {
		when = s.nextSlotLocked(platform, now)
	} else {
		when = at.In(s.loc)
		if !when.After(now) {
			return types.ScheduledPost{}, types.NewAppErrorWithDetails(types.ErrCodeValidationTimeInPast,
				"scheduled time must be in the future", nil,
				map[string]any{"scheduled_for": at.Format(time.RFC3339)})
		}
		if s.store.collides(platform, when, CollisionBuffer) {
			return types.ScheduledPost{}, types.NewAppErrorWithDetails(types.ErrCodeConflictSlotTaken,
				fmt.Sprintf("another %s post is scheduled within %s", platform.DisplayName(), CollisionBuffer), nil,
				map[string]any{"scheduled_for": at.Format(time.RFC3339), "platform": platform})
		}
	}

	post := s.insertLocked(contentID, platform, when, now)
	return post, nil
}

func (s *Scheduler) insertLocked(contentID string, platform types.Platform, when, now time.Time) types.ScheduledPost {
	post := &types.ScheduledPost{
		ID:           "post_" + uuid.New().String(),
		ContentID:    contentID,
		Platform:     platform,
		ScheduledFor: when,
		Status:       types.PostStatusScheduled,
		CreatedAt:    now,
	}
	s.store.add(post)

	s.logger.Debug("post scheduled",
		"post_id", post.ID,
		"content_id", contentID,
		"platform", platform,
		"scheduled_for", when,
	)
	return *post
}

func validatePost(contentID string, platform types.Platform) *types.AppError {
	if contentID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "content_id is required", nil)
	}
	if !platform.IsValid() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPlatform,
			fmt.Sprintf("unknown platform %q", platform), nil,
			map[string]any{"platform": platform})
	}
	return nil
}

// GetScheduledPosts returns the posts for platform ordered by scheduled time.
// An empty platform returns posts for every platform.
func (s *Scheduler) GetScheduledPosts(platform types.Platform) []types.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.list(platform)
}

// GetScheduledPost returns a single post by id.
func (s *Scheduler) GetScheduledPost(id string) (types.ScheduledPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.store.get(id)
	if !ok {
		return types.ScheduledPost{}, false
	}
	return *p, true
}

// CancelScheduledPost marks a scheduled post as failed. It reports false when
// the id is unknown or the post has already left the scheduled status.
func (s *Scheduler) CancelScheduledPost(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.store.get(id)
	if !ok || p.Status != types.PostStatusScheduled {
		return false
	}
	p.Status = types.PostStatusFailed
	s.logger.Info("scheduled post cancelled", "post_id", id, "platform", p.Platform)
	return true
}

// MarkContent moves every still-scheduled post of contentID on platform to
// status and returns how many posts changed.
func (s *Scheduler) MarkContent(contentID string, platform types.Platform, status types.PostStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.store.forContent(contentID, platform) {
		if p.Status != types.PostStatusScheduled {
			continue
		}
		p.Status = status
		n++
	}
	return n
}

// CountScheduled returns the number of posts still in scheduled status.
func (s *Scheduler) CountScheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.countByStatus(types.PostStatusScheduled)
}
