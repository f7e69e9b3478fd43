// Package content holds the content items the scheduler and queue refer to,
// and the template producer the autopilot uses to generate new ones.
package content

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"contentpilot/internal/types"
)

// Store is an in-memory content library. Items are returned by value; the
// store keeps its own copies.
type Store struct {
	mu    sync.RWMutex
	items map[string]types.ContentItem
	order []string

	clock  types.Clock
	logger *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(clock types.Clock, logger *slog.Logger) *Store {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		items:  make(map[string]types.ContentItem),
		clock:  clock,
		logger: logger,
	}
}

// Save stores item, assigning an id and creation time when missing, and
// returns the stored copy. Saving an existing id replaces it.
func (s *Store) Save(item types.ContentItem) (types.ContentItem, error) {
	if !item.Type.IsValid() {
		return types.ContentItem{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidContent,
			fmt.Sprintf("unknown content type %q", item.Type), nil,
			map[string]any{"type": item.Type})
	}
	if item.ID == "" {
		item.ID = "cnt_" + uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.clock.Now()
	}
	if item.Status == "" {
		item.Status = types.ContentStatusDraft
	}
	item = item.Clone()

	s.mu.Lock()
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	s.mu.Unlock()

	s.logger.Debug("content saved", "content_id", item.ID, "type", item.Type, "status", item.Status)
	return item.Clone(), nil
}

// Get returns the item with id.
func (s *Store) Get(id string) (types.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return types.ContentItem{}, false
	}
	return item.Clone(), true
}

// List returns items in creation order. An empty status lists everything.
func (s *Store) List(status types.ContentStatus) []types.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ContentItem, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, item.Clone())
	}
	return out
}

// SetStatus changes the editorial status of an item.
func (s *Store) SetStatus(id string, status types.ContentStatus) (types.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return types.ContentItem{}, types.NewAppError(types.ErrCodeNotFoundContent,
			fmt.Sprintf("content %q not found", id), nil)
	}
	item.Status = status
	s.items[id] = item
	return item.Clone(), nil
}
