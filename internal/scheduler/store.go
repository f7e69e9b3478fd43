package scheduler

import (
	"sort"
	"time"

	"contentpilot/internal/types"
)

// postStore keeps scheduled posts indexed by id and by platform. Each
// platform slice is sorted by ScheduledFor so collision checks only touch
// posts inside the buffer window. It is not safe for concurrent use; the
// Scheduler serializes access.
type postStore struct {
	byID       map[string]*types.ScheduledPost
	byPlatform map[types.Platform][]*types.ScheduledPost
}

func newPostStore() *postStore {
	return &postStore{
		byID:       make(map[string]*types.ScheduledPost),
		byPlatform: make(map[types.Platform][]*types.ScheduledPost),
	}
}

func (s *postStore) add(p *types.ScheduledPost) {
	s.byID[p.ID] = p
	posts := s.byPlatform[p.Platform]
	// Insert after any post at the same instant to keep insertion order stable.
	i := sort.Search(len(posts), func(i int) bool {
		return posts[i].ScheduledFor.After(p.ScheduledFor)
	})
	posts = append(posts, nil)
	copy(posts[i+1:], posts[i:])
	posts[i] = p
	s.byPlatform[p.Platform] = posts
}

func (s *postStore) get(id string) (*types.ScheduledPost, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// collides reports whether a post in scheduled status sits within buffer of
// at on the platform. A post exactly buffer away counts as a collision.
func (s *postStore) collides(platform types.Platform, at time.Time, buffer time.Duration) bool {
	posts := s.byPlatform[platform]
	lo := at.Add(-buffer)
	hi := at.Add(buffer)
	i := sort.Search(len(posts), func(i int) bool {
		return !posts[i].ScheduledFor.Before(lo)
	})
	for ; i < len(posts) && !posts[i].ScheduledFor.After(hi); i++ {
		if posts[i].Status == types.PostStatusScheduled {
			return true
		}
	}
	return false
}

// list returns copies of the platform's posts in time order. An empty
// platform lists every post, ordered by time and then platform.
func (s *postStore) list(platform types.Platform) []types.ScheduledPost {
	if platform != "" {
		posts := s.byPlatform[platform]
		out := make([]types.ScheduledPost, 0, len(posts))
		for _, p := range posts {
			out = append(out, *p)
		}
		return out
	}

	out := make([]types.ScheduledPost, 0, len(s.byID))
	for _, posts := range s.byPlatform {
		for _, p := range posts {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

// countByStatus returns how many posts across all platforms have status.
func (s *postStore) countByStatus(status types.PostStatus) int {
	n := 0
	for _, p := range s.byID {
		if p.Status == status {
			n++
		}
	}
	return n
}

// forContent returns the platform's posts for a content item.
func (s *postStore) forContent(contentID string, platform types.Platform) []*types.ScheduledPost {
	var out []*types.ScheduledPost
	for _, p := range s.byPlatform[platform] {
		if p.ContentID == contentID {
			out = append(out, p)
		}
	}
	return out
}
