package db

import (
	"context"
	"time"

	"contentpilot/internal/types"
)

// PerformanceRepository reads aggregated engagement from the post_metrics
// table, which the analytics ingestion job fills with one row per published
// post.
type PerformanceRepository struct {
	db DBTX
}

// NewPerformanceRepository creates a new PerformanceRepository backed by the
// given database connection (pool or transaction).
func NewPerformanceRepository(db DBTX) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// ListHistoricalPerformance aggregates posts published since `since` into one
// record per (platform, weekday, hour). Weekday and hour are taken in the
// IANA zone tz so they line up with the scheduler's slots. Rows for unknown
// platforms are skipped.
func (r *PerformanceRepository) ListHistoricalPerformance(ctx context.Context, since time.Time, tz string) ([]types.HistoricalPerformance, error) {
	if tz == "" {
		tz = "UTC"
	}

	rows, err := r.db.Query(ctx,
		`SELECT platform,
		        EXTRACT(DOW FROM published_at AT TIME ZONE $2)::int AS dow,
		        EXTRACT(HOUR FROM published_at AT TIME ZONE $2)::int AS hour,
		        AVG(engagement_rate)::float8,
		        AVG(reach)::float8,
		        COUNT(*)::int
		 FROM post_metrics
		 WHERE published_at >= $1
		 GROUP BY platform, dow, hour
		 ORDER BY platform, dow, hour`,
		since,
		tz,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query historical performance", err)
	}
	defer rows.Close()

	var records []types.HistoricalPerformance
	for rows.Next() {
		var (
			rec      types.HistoricalPerformance
			platform string
			dow      int
		)
		if err := rows.Scan(
			&platform,
			&dow,
			&rec.Hour,
			&rec.AvgEngagement,
			&rec.AvgReach,
			&rec.PostCount,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan historical performance", err)
		}

		rec.Platform = types.Platform(platform)
		if !rec.Platform.IsValid() || dow < 0 || dow > 6 || rec.Hour < 0 || rec.Hour > 23 {
			continue
		}
		rec.DayOfWeek = time.Weekday(dow)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating historical performance", err)
	}

	return records, nil
}
