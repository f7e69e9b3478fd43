package types

import "time"

// ContentItem is a piece of content produced by the content pipeline. The
// scheduler and queue only read it.
type ContentItem struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Type      ContentType       `json:"type"`
	Status    ContentStatus     `json:"status"`
	Topic     string            `json:"topic,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a copy that shares no mutable state with c.
func (c ContentItem) Clone() ContentItem {
	if c.Metadata != nil {
		md := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			md[k] = v
		}
		c.Metadata = md
	}
	return c
}

// ScheduledPost records the intent to publish a content item on a platform at
// a given time.
type ScheduledPost struct {
	ID           string     `json:"id"`
	ContentID    string     `json:"content_id"`
	Platform     Platform   `json:"platform"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       PostStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// OptimalTime is a ranked (day-of-week, hour) slot for a platform. It is
// recomputed on every query.
type OptimalTime struct {
	DayOfWeek time.Weekday `json:"day_of_week"`
	Hour      int          `json:"hour"`
	Platform  Platform     `json:"platform"`
	Score     float64      `json:"score"`
	Reason    string       `json:"reason"`
}

// HistoricalPerformance is an aggregated engagement record supplied by the
// analytics source.
type HistoricalPerformance struct {
	Platform      Platform     `json:"platform"`
	DayOfWeek     time.Weekday `json:"day_of_week"`
	Hour          int          `json:"hour"`
	AvgEngagement float64      `json:"avg_engagement"`
	AvgReach      float64      `json:"avg_reach"`
	PostCount     int          `json:"post_count"`
}

// PublishResult is the outcome of one platform attempt within a task.
type PublishResult struct {
	Platform Platform `json:"platform"`
	Success  bool     `json:"success"`
	PostID   string   `json:"post_id,omitempty"`
	PostURL  string   `json:"post_url,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// PublishTask is one "publish this item to these platforms" unit of work.
type PublishTask struct {
	ID           string          `json:"id"`
	ContentItem  ContentItem     `json:"content_item"`
	Platforms    []Platform      `json:"platforms"`
	Status       TaskStatus      `json:"status"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	Results      []PublishResult `json:"results"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task suitable for handing to callers.
func (t *PublishTask) Clone() PublishTask {
	out := *t
	out.ContentItem = t.ContentItem.Clone()
	out.Platforms = append([]Platform(nil), t.Platforms...)
	out.Results = append([]PublishResult{}, t.Results...)
	if t.ScheduledFor != nil {
		sf := *t.ScheduledFor
		out.ScheduledFor = &sf
	}
	if t.CompletedAt != nil {
		ca := *t.CompletedAt
		out.CompletedAt = &ca
	}
	return out
}

// QueueTasks groups task snapshots by collection.
type QueueTasks struct {
	Queued     []PublishTask `json:"queued"`
	Processing []PublishTask `json:"processing"`
	Completed  []PublishTask `json:"completed"`
}

// QueueStatus is a read-only snapshot of the publishing queue.
type QueueStatus struct {
	Queued     int        `json:"queued"`
	Processing int        `json:"processing"`
	Completed  int        `json:"completed"`
	Tasks      QueueTasks `json:"tasks"`
}

// PublishReceipt is what a platform transport returns on success.
type PublishReceipt struct {
	PostID  string `json:"post_id"`
	PostURL string `json:"post_url,omitempty"`
}
