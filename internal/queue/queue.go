// Package queue implements the publishing queue: tasks that deliver one
// content item to a list of platforms move from queued to processing and end
// as completed or failed, with one result per platform attempt.
//
// Platform delivery goes through external.Publisher implementations. Each
// attempt runs under its own deadline and is retried with backoff when it
// times out. Finished tasks are announced to TaskObservers (schedule sync,
// metrics, SQS events).
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentpilot/internal/external"
	"contentpilot/internal/types"
)

// RecentCompletedLimit is how many completed tasks a status snapshot lists.
const RecentCompletedLimit = 10

// PublisherLookup resolves the publisher for a platform. A missing entry
// means the platform's credentials were never configured.
type PublisherLookup interface {
	Get(platform types.Platform) (external.Publisher, bool)
}

// Metrics records dispatch telemetry. Implemented by the metrics package.
type Metrics interface {
	RecordPublish(ctx context.Context, platform types.Platform, success bool, latency time.Duration)
	RecordTaskFinished(ctx context.Context, status types.TaskStatus)
}

// TaskObserver is notified after a task reaches completed or failed.
// Observers run synchronously on the processing goroutine, in registration
// order, and receive a copy of the task.
type TaskObserver interface {
	OnTaskFinished(ctx context.Context, task types.PublishTask)
}

// ObserverFunc adapts a function to TaskObserver.
type ObserverFunc func(ctx context.Context, task types.PublishTask)

// OnTaskFinished implements TaskObserver.
func (f ObserverFunc) OnTaskFinished(ctx context.Context, task types.PublishTask) { f(ctx, task) }

// Config holds the dependencies for a Queue.
type Config struct {
	Publishers PublisherLookup
	Observers  []TaskObserver
	Metrics    Metrics
	Clock      types.Clock
	Logger     *slog.Logger

	// PublishTimeout bounds a single platform attempt.
	PublishTimeout time.Duration
	// MaxRetries is how many extra attempts a timed out platform call gets.
	MaxRetries int
	// RetryMinWait and RetryMaxWait bound the exponential backoff between
	// attempts.
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
}

// Queue owns the queued, processing and completed task collections. All
// methods are safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	queued     []*types.PublishTask
	processing []*types.PublishTask
	completed  []*types.PublishTask
	byID       map[string]*types.PublishTask

	dispatcher *dispatcher
	observers  []TaskObserver
	metrics    Metrics
	clock      types.Clock
	logger     *slog.Logger
}

// New creates a Queue.
func New(cfg Config) *Queue {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	publishers := cfg.Publishers
	if publishers == nil {
		publishers = external.NewRegistry()
	}

	q := &Queue{
		byID:      make(map[string]*types.PublishTask),
		observers: append([]TaskObserver(nil), cfg.Observers...),
		metrics:   m,
		clock:     clock,
		logger:    logger,
	}
	q.dispatcher = newDispatcher(dispatchConfig{
		publishers: publishers,
		timeout:    cfg.PublishTimeout,
		maxRetries: cfg.MaxRetries,
		minWait:    cfg.RetryMinWait,
		maxWait:    cfg.RetryMaxWait,
		metrics:    m,
		logger:     logger,
	})
	return q
}

// AddObserver registers an observer for tasks finished from now on.
func (q *Queue) AddObserver(o TaskObserver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, o)
}

// AddToQueue creates a queued task for item on platforms. A non-nil
// scheduledFor holds the task back until the clock reaches it. Platforms
// must be non-empty, known and unique.
func (q *Queue) AddToQueue(item types.ContentItem, platforms []types.Platform, scheduledFor *time.Time) (types.PublishTask, error) {
	if item.ID == "" {
		return types.PublishTask{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"content item id is required", nil)
	}
	if err := validatePlatforms(platforms); err != nil {
		return types.PublishTask{}, err
	}

	now := q.clock.Now()
	task := &types.PublishTask{
		ID:          "task_" + uuid.New().String(),
		ContentItem: item.Clone(),
		Platforms:   append([]types.Platform(nil), platforms...),
		Status:      types.TaskStatusQueued,
		Results:     []types.PublishResult{},
		CreatedAt:   now,
	}
	if scheduledFor != nil {
		sf := *scheduledFor
		task.ScheduledFor = &sf
	}

	q.mu.Lock()
	q.queued = append(q.queued, task)
	q.byID[task.ID] = task
	snapshot := task.Clone()
	q.mu.Unlock()

	q.logger.Info("task queued",
		"task_id", task.ID,
		"content_id", item.ID,
		"platforms", platforms,
		"scheduled_for", scheduledFor,
	)
	return snapshot, nil
}

func validatePlatforms(platforms []types.Platform) error {
	if len(platforms) == 0 {
		return types.NewAppError(types.ErrCodeValidationEmptyPlatforms,
			"at least one platform is required", nil)
	}
	seen := make(map[types.Platform]bool, len(platforms))
	for _, p := range platforms {
		if !p.IsValid() {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPlatform,
				fmt.Sprintf("unknown platform %q", p), nil,
				map[string]any{"platform": p})
		}
		if seen[p] {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationDuplicate,
				fmt.Sprintf("platform %q listed more than once", p), nil,
				map[string]any{"platform": p})
		}
		seen[p] = true
	}
	return nil
}

// ProcessQueue runs every queued task that is due, one at a time in
// insertion order, and returns how many tasks it processed. Platform
// failures are recorded on the task and never returned. ctx is only checked
// between tasks: a task that has started runs to completion, bounded by the
// per-attempt publish timeout.
func (q *Queue) ProcessQueue(ctx context.Context) int {
	now := q.clock.Now()

	q.mu.Lock()
	var due []string
	for _, t := range q.queued {
		if t.ScheduledFor == nil || !t.ScheduledFor.After(now) {
			due = append(due, t.ID)
		}
	}
	q.mu.Unlock()

	processed := 0
	for _, id := range due {
		if ctx.Err() != nil {
			break
		}
		task, ok := q.claim(id)
		if !ok {
			// Cancelled between selection and claim.
			continue
		}
		q.run(context.WithoutCancel(ctx), task)
		processed++
	}
	return processed
}

// claim moves a task from queued to processing.
func (q *Queue) claim(id string) (*types.PublishTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := indexOf(q.queued, id)
	if idx < 0 {
		return nil, false
	}
	task := q.queued[idx]
	q.queued = append(q.queued[:idx], q.queued[idx+1:]...)
	task.Status = types.TaskStatusProcessing
	q.processing = append(q.processing, task)
	return task, true
}

func (q *Queue) run(ctx context.Context, task *types.PublishTask) {
	q.mu.Lock()
	item := task.ContentItem.Clone()
	platforms := append([]types.Platform(nil), task.Platforms...)
	q.mu.Unlock()

	logger := q.logger.With("task_id", task.ID, "content_id", item.ID)
	logger.InfoContext(ctx, "processing task", "platforms", platforms)

	for _, platform := range platforms {
		result := q.dispatcher.publish(ctx, item, platform)

		q.mu.Lock()
		task.Results = append(task.Results, result)
		q.mu.Unlock()

		if result.Success {
			logger.InfoContext(ctx, "platform publish succeeded", "platform", platform, "post_id", result.PostID)
		} else {
			logger.WarnContext(ctx, "platform publish failed", "platform", platform, "error", result.Error)
		}
	}

	q.mu.Lock()
	status := types.TaskStatusCompleted
	for _, r := range task.Results {
		if !r.Success {
			status = types.TaskStatusFailed
			break
		}
	}
	task.Status = status
	completedAt := q.clock.Now()
	task.CompletedAt = &completedAt

	if idx := indexOf(q.processing, task.ID); idx >= 0 {
		q.processing = append(q.processing[:idx], q.processing[idx+1:]...)
	}
	q.completed = append(q.completed, task)
	snapshot := task.Clone()
	observers := append([]TaskObserver(nil), q.observers...)
	q.mu.Unlock()

	logger.InfoContext(ctx, "task finished", "status", status, "results", len(snapshot.Results))
	q.metrics.RecordTaskFinished(ctx, status)
	for _, o := range observers {
		o.OnTaskFinished(ctx, snapshot)
	}
}

// GetQueueStatus returns a snapshot of the queue. Only the most recent
// RecentCompletedLimit completed tasks are listed, oldest first.
func (q *Queue) GetQueueStatus() types.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	recent := q.completed
	if len(recent) > RecentCompletedLimit {
		recent = recent[len(recent)-RecentCompletedLimit:]
	}

	return types.QueueStatus{
		Queued:     len(q.queued),
		Processing: len(q.processing),
		Completed:  len(q.completed),
		Tasks: types.QueueTasks{
			Queued:     cloneAll(q.queued),
			Processing: cloneAll(q.processing),
			Completed:  cloneAll(recent),
		},
	}
}

// GetTask returns a copy of the task with id from any collection.
func (q *Queue) GetTask(id string) (types.PublishTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.byID[id]
	if !ok {
		return types.PublishTask{}, false
	}
	return t.Clone(), true
}

// CancelTask removes a task that is still queued. It reports false for
// unknown ids and for tasks already processing or finished.
func (q *Queue) CancelTask(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := indexOf(q.queued, id)
	if idx < 0 {
		return false
	}
	q.queued = append(q.queued[:idx], q.queued[idx+1:]...)
	delete(q.byID, id)

	q.logger.Info("task cancelled", "task_id", id)
	return true
}

// Reset drops every task. Intended for tests and local tooling.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.queued = nil
	q.processing = nil
	q.completed = nil
	q.byID = make(map[string]*types.PublishTask)
}

func indexOf(tasks []*types.PublishTask, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(tasks []*types.PublishTask) []types.PublishTask {
	out := make([]types.PublishTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) RecordPublish(context.Context, types.Platform, bool, time.Duration) {}
func (nopMetrics) RecordTaskFinished(context.Context, types.TaskStatus)              {}
