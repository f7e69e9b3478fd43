package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contentpilot/internal/core"
	"contentpilot/internal/types"
)

// ContentStore is the content library surface the handler needs.
// Implemented by *content.Store.
type ContentStore interface {
	Save(item types.ContentItem) (types.ContentItem, error)
	Get(id string) (types.ContentItem, bool)
	List(status types.ContentStatus) []types.ContentItem
	SetStatus(id string, status types.ContentStatus) (types.ContentItem, error)
}

// CreateContentRequest is the body for POST /v1/content.
type CreateContentRequest struct {
	Title    string            `json:"title" validate:"required,max=300"`
	Content  string            `json:"content"`
	Type     types.ContentType `json:"type" validate:"required,content_type"`
	Topic    string            `json:"topic,omitempty" validate:"max=200"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ProduceContentRequest is the body for POST /v1/content/produce.
type ProduceContentRequest struct {
	Topic string            `json:"topic" validate:"required,max=200"`
	Type  types.ContentType `json:"type" validate:"required,content_type"`
}

// UpdateStatusRequest is the body for PUT /v1/content/{id}/status.
type UpdateStatusRequest struct {
	Status types.ContentStatus `json:"status" validate:"required,oneof=draft pending approved published"`
}

// ContentHandler manages the content library.
type ContentHandler struct {
	store     ContentStore
	producer  types.ContentProducer
	validator *core.Validator
	logger    *slog.Logger
}

// NewContentHandler creates a ContentHandler. producer may be nil, which
// disables POST /produce.
func NewContentHandler(store ContentStore, producer types.ContentProducer, v *core.Validator, l *slog.Logger) *ContentHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}
	return &ContentHandler{store: store, producer: producer, validator: v, logger: l}
}

// RegisterRoutes mounts the content routes.
func (h *ContentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/produce", h.Produce)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.UpdateStatus)
}

// List handles GET /v1/content?status=.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	status := types.ContentStatus(r.URL.Query().Get("status"))
	items := h.store.List(status)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: items, Count: len(items)})
}

// Create handles POST /v1/content.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	item, err := h.store.Save(types.ContentItem{
		Title:    req.Title,
		Content:  req.Content,
		Type:     req.Type,
		Topic:    req.Topic,
		Metadata: req.Metadata,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, item)
}

// Produce handles POST /v1/content/produce.
func (h *ContentHandler) Produce(w http.ResponseWriter, r *http.Request) {
	if h.producer == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamUnavailable, "content producer is not configured", nil))
		return
	}

	var req ProduceContentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	item, err := h.producer.Produce(r.Context(), types.ContentRequest{Topic: req.Topic, Type: req.Type})
	if err != nil {
		if ctxErr := context.Cause(r.Context()); ctxErr != nil {
			h.logger.WarnContext(r.Context(), "content production abandoned", "error", ctxErr)
		}
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, item)
}

// Get handles GET /v1/content/{id}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := h.store.Get(id)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundContent,
			fmt.Sprintf("content %q not found", id), nil))
		return
	}
	core.JSON(w, r, http.StatusOK, item)
}

// UpdateStatus handles PUT /v1/content/{id}/status.
func (h *ContentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	item, err := h.store.SetStatus(chi.URLParam(r, "id"), req.Status)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "content status changed", "content_id", item.ID, "status", item.Status)
	core.JSON(w, r, http.StatusOK, item)
}
