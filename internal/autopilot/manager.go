// Package autopilot keeps the publishing calendar topped up. Each pass
// compares the number of scheduled posts against the weekly velocity target
// and produces, schedules and optionally enqueues enough new content to close
// the gap.
package autopilot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"contentpilot/internal/types"
)

// Scheduler is the calendar surface the autopilot needs. Implemented by
// *scheduler.Scheduler.
type Scheduler interface {
	CountScheduled() int
	SchedulePost(contentID string, platform types.Platform, at *time.Time) (types.ScheduledPost, error)
}

// Enqueuer hands approved items to the publishing queue. Implemented by
// *queue.Queue.
type Enqueuer interface {
	AddToQueue(item types.ContentItem, platforms []types.Platform, scheduledFor *time.Time) (types.PublishTask, error)
}

// StatusSetter records the editorial decision on a produced item.
// Implemented by *content.Store.
type StatusSetter interface {
	SetStatus(id string, status types.ContentStatus) (types.ContentItem, error)
}

// Metrics records scheduling telemetry.
type Metrics interface {
	RecordPostScheduled(ctx context.Context, platform types.Platform)
}

// Config holds the dependencies and policy for a Manager.
type Config struct {
	Scheduler Scheduler
	Producer  types.ContentProducer
	Queue     Enqueuer     // optional; auto-approved items are enqueued when set
	Content   StatusSetter // optional
	Metrics   Metrics      // optional

	Velocity     types.VelocityLevel
	Topics       []string
	ContentTypes []types.ContentType
	AutoApprove  bool

	Clock  types.Clock
	Logger *slog.Logger
}

// RunReport summarizes one gap-filling pass.
type RunReport struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Target     int                   `json:"target"`
	Scheduled  int                   `json:"scheduled_before"`
	Requested  int                   `json:"requested"`
	Produced   int                   `json:"produced"`
	Failed     int                   `json:"failed"`
	Posts      []types.ScheduledPost `json:"posts"`
}

// Status is a snapshot of the manager for the API.
type Status struct {
	Velocity     types.VelocityLevel `json:"velocity"`
	Target       int                 `json:"target"`
	Scheduled    int                 `json:"scheduled"`
	AutoApprove  bool                `json:"auto_approve"`
	Topics       []string            `json:"topics"`
	ContentTypes []types.ContentType `json:"content_types"`
	Running      bool                `json:"running"`
	Runs         int                 `json:"runs"`
	LastRun      *RunReport          `json:"last_run,omitempty"`
}

// Manager runs gap-filling passes. At most one pass runs at a time.
type Manager struct {
	cfg    Config
	clock  types.Clock
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	runs    int
	lastRun *RunReport
}

// New creates a Manager. It panics when a required collaborator is missing or
// when the topic or content-type lists are empty, since every pass would
// fail.
func New(cfg Config) *Manager {
	if cfg.Scheduler == nil || cfg.Producer == nil {
		panic("autopilot: Scheduler and Producer are required")
	}
	if len(cfg.Topics) == 0 || len(cfg.ContentTypes) == 0 {
		panic("autopilot: at least one topic and one content type are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Topics = append([]string(nil), cfg.Topics...)
	cfg.ContentTypes = append([]types.ContentType(nil), cfg.ContentTypes...)

	return &Manager{cfg: cfg, clock: clock, logger: logger}
}

// RunOnce performs one gap-filling pass. It returns a conflict error when
// another pass is in flight. Individual production or scheduling failures
// are logged, counted in the report and skipped.
func (m *Manager) RunOnce(ctx context.Context) (RunReport, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return RunReport{}, types.NewAppError(types.ErrCodeConflictRunInProgress,
			"an autopilot run is already in progress", nil)
	}
	m.running = true
	m.mu.Unlock()

	report := m.fillGap(ctx)

	m.mu.Lock()
	m.running = false
	m.runs++
	m.lastRun = &report
	m.mu.Unlock()

	return report, nil
}

func (m *Manager) fillGap(ctx context.Context) RunReport {
	report := RunReport{
		StartedAt: m.clock.Now(),
		Target:    m.cfg.Velocity.PostsPerWeek(),
		Scheduled: m.cfg.Scheduler.CountScheduled(),
		Posts:     []types.ScheduledPost{},
	}
	logger := m.logger.With("velocity", m.cfg.Velocity, "target", report.Target)

	if report.Scheduled >= report.Target {
		logger.InfoContext(ctx, "autopilot calendar full", "scheduled", report.Scheduled)
		report.FinishedAt = m.clock.Now()
		return report
	}

	report.Requested = report.Target - report.Scheduled
	logger.InfoContext(ctx, "autopilot filling gap",
		"scheduled", report.Scheduled,
		"requested", report.Requested,
	)

	for i := 0; i < report.Requested; i++ {
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "autopilot pass interrupted", "completed", i)
			break
		}
		post, ok := m.produceOne(ctx, i)
		if !ok {
			report.Failed++
			continue
		}
		report.Produced++
		report.Posts = append(report.Posts, post)
	}

	report.FinishedAt = m.clock.Now()
	logger.InfoContext(ctx, "autopilot pass finished",
		"produced", report.Produced,
		"failed", report.Failed,
	)
	return report
}

// produceOne handles the i-th item of a pass. Topic and content type are
// chosen round-robin by index.
func (m *Manager) produceOne(ctx context.Context, i int) (types.ScheduledPost, bool) {
	req := types.ContentRequest{
		Topic: m.cfg.Topics[i%len(m.cfg.Topics)],
		Type:  m.cfg.ContentTypes[i%len(m.cfg.ContentTypes)],
	}

	item, err := m.cfg.Producer.Produce(ctx, req)
	if err != nil {
		m.logger.ErrorContext(ctx, "autopilot content production failed",
			"topic", req.Topic,
			"type", req.Type,
			"error", err,
		)
		return types.ScheduledPost{}, false
	}

	status := types.ContentStatusPending
	if m.cfg.AutoApprove {
		status = types.ContentStatusPublished
	}
	item.Status = status
	if m.cfg.Content != nil {
		if _, err := m.cfg.Content.SetStatus(item.ID, status); err != nil {
			m.logger.WarnContext(ctx, "failed to record content status",
				"content_id", item.ID,
				"status", status,
				"error", err,
			)
		}
	}

	platform := req.Type.NativePlatform()
	post, err := m.cfg.Scheduler.SchedulePost(item.ID, platform, nil)
	if err != nil {
		m.logger.ErrorContext(ctx, "autopilot scheduling failed",
			"content_id", item.ID,
			"platform", platform,
			"error", err,
		)
		return types.ScheduledPost{}, false
	}
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.RecordPostScheduled(ctx, platform)
	}

	if m.cfg.AutoApprove && m.cfg.Queue != nil {
		at := post.ScheduledFor
		if _, err := m.cfg.Queue.AddToQueue(item, []types.Platform{platform}, &at); err != nil {
			m.logger.ErrorContext(ctx, "autopilot enqueue failed",
				"content_id", item.ID,
				"post_id", post.ID,
				"error", err,
			)
		}
	}

	m.logger.InfoContext(ctx, "autopilot post scheduled",
		"content_id", item.ID,
		"post_id", post.ID,
		"platform", platform,
		"scheduled_for", post.ScheduledFor,
		"status", status,
	)
	return post, true
}

// Run performs a pass immediately and then every interval until ctx is
// cancelled. Passes that collide with an API-triggered run are skipped.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	m.logger.InfoContext(ctx, "autopilot started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			m.logger.WarnContext(ctx, "autopilot pass skipped", "error", err)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("autopilot stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status returns a snapshot of the manager.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Velocity:     m.cfg.Velocity,
		Target:       m.cfg.Velocity.PostsPerWeek(),
		Scheduled:    m.cfg.Scheduler.CountScheduled(),
		AutoApprove:  m.cfg.AutoApprove,
		Topics:       append([]string(nil), m.cfg.Topics...),
		ContentTypes: append([]types.ContentType(nil), m.cfg.ContentTypes...),
		Running:      m.running,
		Runs:         m.runs,
	}
	if m.lastRun != nil {
		last := *m.lastRun
		last.Posts = append([]types.ScheduledPost(nil), m.lastRun.Posts...)
		st.LastRun = &last
	}
	return st
}
