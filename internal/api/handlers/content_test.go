package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpilot/internal/content"
	"contentpilot/internal/core"
	"contentpilot/internal/types"
)

type itemList struct {
	Data  []types.ContentItem `json:"data"`
	Count int                 `json:"count"`
}

type failingProducer struct{}

func (failingProducer) Produce(context.Context, types.ContentRequest) (types.ContentItem, error) {
	return types.ContentItem{}, types.NewAppError(types.ErrCodeUpstreamUnavailable, "generator offline", errors.New("dial tcp: refused"))
}

func newContentFixture(t *testing.T) (*content.Store, http.Handler) {
	t.Helper()
	clock := fixedClock{now: testNow}
	store := content.NewStore(clock, discardLogger())
	producer, err := content.NewTemplateProducer(content.ProducerConfig{
		Store:  store,
		Clock:  clock,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	h := NewContentHandler(store, producer, core.NewValidator(discardLogger()), discardLogger())
	return store, mount("/v1/content", h.RegisterRoutes)
}

func TestContent_CreateAndGet(t *testing.T) {
	_, router := newContentFixture(t)

	rec := do(t, router, http.MethodPost, "/v1/content", map[string]any{
		"title":    "Ten tips for remote teams",
		"content":  "Body",
		"type":     "blog",
		"topic":    "remote work",
		"metadata": map[string]string{"tags": "remote,teams"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	item := decode[types.ContentItem](t, rec)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, types.ContentStatusDraft, item.Status)
	assert.True(t, item.CreatedAt.Equal(testNow))

	rec = do(t, router, http.MethodGet, "/v1/content/"+item.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[types.ContentItem](t, rec)
	assert.Equal(t, "remote,teams", got.Metadata["tags"])
}

func TestContent_Create_Rejections(t *testing.T) {
	_, router := newContentFixture(t)

	tests := []struct {
		name string
		body any
		code types.ErrorCode
	}{
		{"missing title", map[string]any{"type": "blog"}, types.ErrCodeValidationMissingField},
		{"unknown type", map[string]any{"title": "x", "type": "podcast"}, types.ErrCodeValidationInvalidContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/v1/content", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
		})
	}

	rec := do(t, router, http.MethodPost, "/v1/content", `{"title":"x","type":"blog","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestContent_Get_NotFound(t *testing.T) {
	_, router := newContentFixture(t)

	rec := do(t, router, http.MethodGet, "/v1/content/cnt_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundContent), errorCode(t, rec))
}

func TestContent_ListByStatus(t *testing.T) {
	store, router := newContentFixture(t)
	_, err := store.Save(types.ContentItem{Title: "a", Type: types.ContentBlog})
	require.NoError(t, err)
	_, err = store.Save(types.ContentItem{Title: "b", Type: types.ContentBlog, Status: types.ContentStatusApproved})
	require.NoError(t, err)

	rec := do(t, router, http.MethodGet, "/v1/content", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[itemList](t, rec).Count)

	rec = do(t, router, http.MethodGet, "/v1/content?status=approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[itemList](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "b", list.Data[0].Title)
}

func TestContent_Produce(t *testing.T) {
	store, router := newContentFixture(t)

	rec := do(t, router, http.MethodPost, "/v1/content/produce", map[string]any{
		"topic": "time management",
		"type":  "youtube-short",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	item := decode[types.ContentItem](t, rec)
	assert.Equal(t, types.ContentYouTubeShort, item.Type)
	assert.Equal(t, "time management", item.Topic)
	assert.NotEmpty(t, item.Content)

	_, ok := store.Get(item.ID)
	assert.True(t, ok, "produced items are saved to the store")
}

func TestContent_Produce_Errors(t *testing.T) {
	store := content.NewStore(fixedClock{now: testNow}, discardLogger())

	t.Run("no producer", func(t *testing.T) {
		router := mount("/v1/content", NewContentHandler(store, nil, nil, discardLogger()).RegisterRoutes)
		rec := do(t, router, http.MethodPost, "/v1/content/produce", map[string]any{"topic": "x", "type": "blog"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("producer failure", func(t *testing.T) {
		router := mount("/v1/content", NewContentHandler(store, failingProducer{}, nil, discardLogger()).RegisterRoutes)
		rec := do(t, router, http.MethodPost, "/v1/content/produce", map[string]any{"topic": "x", "type": "blog"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "refused", "wrapped causes stay internal")
	})

	t.Run("missing topic", func(t *testing.T) {
		router := mount("/v1/content", NewContentHandler(store, failingProducer{}, nil, discardLogger()).RegisterRoutes)
		rec := do(t, router, http.MethodPost, "/v1/content/produce", map[string]any{"type": "blog"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestContent_UpdateStatus(t *testing.T) {
	store, router := newContentFixture(t)
	item, err := store.Save(types.ContentItem{Title: "a", Type: types.ContentBlog})
	require.NoError(t, err)

	rec := do(t, router, http.MethodPut, "/v1/content/"+item.ID+"/status", map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.ContentStatusApproved, decode[types.ContentItem](t, rec).Status)

	rec = do(t, router, http.MethodPut, "/v1/content/"+item.ID+"/status", map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/v1/content/cnt_missing/status", map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
