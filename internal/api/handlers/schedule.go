package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contentpilot/internal/core"
	"contentpilot/internal/scheduler"
	"contentpilot/internal/types"
)

// ScheduleService is the calendar surface the handler needs. Implemented by
// *scheduler.Scheduler.
type ScheduleService interface {
	FindOptimalTimes(platform types.Platform, count int) []types.OptimalTime
	GetNextOptimalSlot(platform types.Platform) time.Time
	SchedulePost(contentID string, platform types.Platform, at *time.Time) (types.ScheduledPost, error)
	GetScheduledPosts(platform types.Platform) []types.ScheduledPost
	GetScheduledPost(id string) (types.ScheduledPost, bool)
	CancelScheduledPost(id string) bool
	ApplyGradualVelocity(posts []scheduler.VelocityPost, postsPerWeek int) ([]types.ScheduledPost, error)
}

// ScheduleMetrics counts posts placed on the calendar.
type ScheduleMetrics interface {
	RecordPostScheduled(ctx context.Context, platform types.Platform)
}

// SchedulePostRequest is the body for POST /v1/schedule/posts. A missing
// scheduled_for places the post in the next optimal slot.
type SchedulePostRequest struct {
	ContentID    string         `json:"content_id" validate:"required"`
	Platform     types.Platform `json:"platform" validate:"required,platform"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
}

// VelocityRequest is the body for POST /v1/schedule/velocity. Either
// posts_per_week or a named velocity must be given; posts_per_week wins.
type VelocityRequest struct {
	PostsPerWeek int                      `json:"posts_per_week" validate:"min=0"`
	Velocity     types.VelocityLevel      `json:"velocity,omitempty" validate:"omitempty,velocity"`
	Posts        []scheduler.VelocityPost `json:"posts" validate:"required,min=1,dive"`
}

// OptimalTimesResponse is returned by GET /v1/schedule/optimal-times.
type OptimalTimesResponse struct {
	Platform types.Platform      `json:"platform"`
	Timezone string              `json:"timezone"`
	Times    []types.OptimalTime `json:"times"`
}

// NextSlotResponse is returned by GET /v1/schedule/next-slot.
type NextSlotResponse struct {
	Platform     types.Platform `json:"platform"`
	ScheduledFor time.Time      `json:"scheduled_for"`
}

// ScheduleHandler serves the time-slot selector and the scheduled-post
// calendar.
type ScheduleHandler struct {
	svc       ScheduleService
	metrics   ScheduleMetrics
	timezone  string
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler. timezone is reported back to
// clients alongside ranked slots. m may be nil.
func NewScheduleHandler(svc ScheduleService, m ScheduleMetrics, timezone string, v *core.Validator, l *slog.Logger) *ScheduleHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}
	return &ScheduleHandler{svc: svc, metrics: m, timezone: timezone, validator: v, logger: l}
}

// RegisterRoutes mounts the schedule routes.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/optimal-times", h.OptimalTimes)
	r.Get("/next-slot", h.NextSlot)
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/{id}", h.GetPost)
	r.Delete("/posts/{id}", h.CancelPost)
	r.Post("/velocity", h.ApplyVelocity)
}

// OptimalTimes handles GET /v1/schedule/optimal-times?platform=&count=.
func (h *ScheduleHandler) OptimalTimes(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r, true)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	count, err := intParam(r, "count", scheduler.DefaultOptimalCount, 1, 168)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, OptimalTimesResponse{
		Platform: platform,
		Timezone: h.timezone,
		Times:    h.svc.FindOptimalTimes(platform, count),
	})
}

// NextSlot handles GET /v1/schedule/next-slot?platform=.
func (h *ScheduleHandler) NextSlot(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r, true)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, NextSlotResponse{
		Platform:     platform,
		ScheduledFor: h.svc.GetNextOptimalSlot(platform),
	})
}

// ListPosts handles GET /v1/schedule/posts with an optional platform filter.
func (h *ScheduleHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r, false)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	posts := h.svc.GetScheduledPosts(platform)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: posts, Count: len(posts)})
}

// CreatePost handles POST /v1/schedule/posts.
func (h *ScheduleHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req SchedulePostRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	post, err := h.svc.SchedulePost(req.ContentID, req.Platform, req.ScheduledFor)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordScheduled(r, post)
	h.logger.InfoContext(r.Context(), "post scheduled",
		"post_id", post.ID,
		"content_id", post.ContentID,
		"platform", post.Platform,
		"scheduled_for", post.ScheduledFor,
		"explicit", req.ScheduledFor != nil,
	)
	core.JSON(w, r, http.StatusCreated, post)
}

// GetPost handles GET /v1/schedule/posts/{id}.
func (h *ScheduleHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, ok := h.svc.GetScheduledPost(id)
	if !ok {
		core.Error(w, r, postNotFound(id))
		return
	}
	core.JSON(w, r, http.StatusOK, post)
}

// CancelPost handles DELETE /v1/schedule/posts/{id}. Only posts still in
// scheduled status can be cancelled.
func (h *ScheduleHandler) CancelPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, ok := h.svc.GetScheduledPost(id)
	if !ok {
		core.Error(w, r, postNotFound(id))
		return
	}
	if !h.svc.CancelScheduledPost(id) {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeConflictNotCancellable,
			fmt.Sprintf("post %q is %s and can no longer be cancelled", id, post.Status), nil,
			map[string]any{"status": post.Status}))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyVelocity handles POST /v1/schedule/velocity.
func (h *ScheduleHandler) ApplyVelocity(w http.ResponseWriter, r *http.Request) {
	var req VelocityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ppw := req.PostsPerWeek
	if ppw == 0 && req.Velocity != "" {
		ppw = req.Velocity.PostsPerWeek()
	}

	posts, err := h.svc.ApplyGradualVelocity(req.Posts, ppw)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	for _, p := range posts {
		h.recordScheduled(r, p)
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: posts, Count: len(posts)})
}

func (h *ScheduleHandler) recordScheduled(r *http.Request, post types.ScheduledPost) {
	if h.metrics != nil {
		h.metrics.RecordPostScheduled(r.Context(), post.Platform)
	}
}

func postNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundPost, fmt.Sprintf("scheduled post %q not found", id), nil)
}
