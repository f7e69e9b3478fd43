package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contentpilot/internal/core"
	"contentpilot/internal/types"
)

// QueueService is the publishing queue surface the handler needs.
// Implemented by *queue.Queue.
type QueueService interface {
	AddToQueue(item types.ContentItem, platforms []types.Platform, scheduledFor *time.Time) (types.PublishTask, error)
	ProcessQueue(ctx context.Context) int
	GetQueueStatus() types.QueueStatus
	GetTask(id string) (types.PublishTask, bool)
	CancelTask(id string) bool
}

// ContentReader resolves content ids. Implemented by *content.Store.
type ContentReader interface {
	Get(id string) (types.ContentItem, bool)
}

// EnqueueRequest is the body for POST /v1/queue. The item is either
// referenced by content_id or sent inline as content.
type EnqueueRequest struct {
	ContentID    string             `json:"content_id,omitempty"`
	Content      *types.ContentItem `json:"content,omitempty"`
	Platforms    []types.Platform   `json:"platforms"`
	ScheduledFor *time.Time         `json:"scheduled_for,omitempty"`
}

// ProcessResponse is returned by POST /v1/queue/process.
type ProcessResponse struct {
	Processed int               `json:"processed"`
	Status    types.QueueStatus `json:"status"`
}

// QueueHandler exposes the publishing queue.
type QueueHandler struct {
	queue   QueueService
	content ContentReader
	logger  *slog.Logger
}

// NewQueueHandler creates a QueueHandler. content may be nil, in which case
// only inline content is accepted.
func NewQueueHandler(q QueueService, content ContentReader, l *slog.Logger) *QueueHandler {
	if l == nil {
		l = slog.Default()
	}
	return &QueueHandler{queue: q, content: content, logger: l}
}

// RegisterRoutes mounts the queue routes.
func (h *QueueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Status)
	r.Post("/", h.Enqueue)
	r.Post("/process", h.Process)
	r.Get("/tasks/{id}", h.GetTask)
	r.Delete("/tasks/{id}", h.CancelTask)
}

// Enqueue handles POST /v1/queue. Platform validation is left to the queue
// so API and autopilot callers see the same errors.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	item, err := h.resolveContent(req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	task, err := h.queue.AddToQueue(item, req.Platforms, req.ScheduledFor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "publish task queued",
		"task_id", task.ID,
		"content_id", item.ID,
		"platforms", task.Platforms,
	)
	core.JSON(w, r, http.StatusCreated, task)
}

func (h *QueueHandler) resolveContent(req EnqueueRequest) (types.ContentItem, error) {
	switch {
	case req.Content != nil:
		return *req.Content, nil
	case req.ContentID == "":
		return types.ContentItem{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"content_id or content is required", nil)
	case h.content == nil:
		return types.ContentItem{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"inline content is required", nil)
	}

	item, ok := h.content.Get(req.ContentID)
	if !ok {
		return types.ContentItem{}, types.NewAppError(types.ErrCodeNotFoundContent,
			fmt.Sprintf("content %q not found", req.ContentID), nil)
	}
	return item, nil
}

// Process handles POST /v1/queue/process. It runs one queue pass
// synchronously and returns the resulting status. The pass is detached from
// the request so a client disconnect cannot abandon a task halfway.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	n := h.queue.ProcessQueue(context.WithoutCancel(r.Context()))
	core.JSON(w, r, http.StatusOK, ProcessResponse{
		Processed: n,
		Status:    h.queue.GetQueueStatus(),
	})
}

// Status handles GET /v1/queue.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.queue.GetQueueStatus())
}

// GetTask handles GET /v1/queue/tasks/{id}.
func (h *QueueHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := h.queue.GetTask(id)
	if !ok {
		core.Error(w, r, taskNotFound(id))
		return
	}
	core.JSON(w, r, http.StatusOK, task)
}

// CancelTask handles DELETE /v1/queue/tasks/{id}. Only queued tasks can be
// cancelled; a cancelled task disappears from the queue.
func (h *QueueHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := h.queue.GetTask(id)
	if !ok {
		core.Error(w, r, taskNotFound(id))
		return
	}
	if !h.queue.CancelTask(id) {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeConflictNotCancellable,
			fmt.Sprintf("task %q is %s and can no longer be cancelled", id, task.Status), nil,
			map[string]any{"status": task.Status}))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundTask, fmt.Sprintf("task %q not found", id), nil)
}
