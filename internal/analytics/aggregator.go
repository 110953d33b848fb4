// Package analytics merges streamed per-platform metric samples into
// append-only daily records with hourly sub-aggregates.
package analytics

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// Sample is one metrics observation for a (user, platform) pair.
// Impressions, reach, likes, comments and shares are incremental activity
// since the previous sample; engagement rate and followers are point-in-time
// snapshots.
type Sample struct {
	Impressions    int64   `json:"impressions"`
	Reach          int64   `json:"reach"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	Shares         int64   `json:"shares"`
	EngagementRate float64 `json:"engagement_rate"`
	Followers      int64   `json:"followers"`
}

// TimedSample carries the instant the sample was observed at.
type TimedSample struct {
	At time.Time `json:"at"`
	Sample
}

// MetricsSource pulls engagement metrics for one linked social account.
// One implementation exists per platform.
type MetricsSource interface {
	Platform() string
	Poll(ctx context.Context, acc *models.SocialAccount) ([]TimedSample, error)
}

const lockStripes = 64

// Aggregator funnels samples into daily analytics records. Writes for the
// same (user, platform, day) key serialize on a striped mutex around the
// read-merge-upsert cycle; distinct keys land on distinct stripes and
// proceed concurrently.
type Aggregator struct {
	ar    repository.AnalyticsRepository
	locks [lockStripes]sync.Mutex
}

func NewAggregator(ar repository.AnalyticsRepository) *Aggregator {
	return &Aggregator{ar: ar}
}

// Ingest merges one sample into the record for the sample's calendar day,
// creating the record on the first sample of the day.
func (a *Aggregator) Ingest(ctx context.Context, userID int64, platform string, at time.Time, s Sample) error {
	at = at.UTC()
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)

	mu := a.lockFor(userID, platform, day)
	mu.Lock()
	defer mu.Unlock()

	rec, err := a.ar.GetByKey(ctx, userID, platform, day)
	if err != nil {
		return fmt.Errorf("load analytics record: %w", err)
	}
	if rec == nil {
		rec = &models.AnalyticsRecord{
			UserID:           userID,
			Platform:         platform,
			RecordDate:       day,
			HourlyEngagement: make(map[int]float64),
		}
	}
	if rec.HourlyEngagement == nil {
		rec.HourlyEngagement = make(map[int]float64)
	}

	rec.Impressions += s.Impressions
	rec.Reach += s.Reach
	rec.Likes += s.Likes
	rec.Comments += s.Comments
	rec.Shares += s.Shares
	rec.EngagementRate = s.EngagementRate
	rec.Followers = s.Followers

	// Last write wins per hour so a corrected sample for the same hour
	// replaces instead of double counting.
	rec.HourlyEngagement[at.Hour()] = s.EngagementRate

	if err := a.ar.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store analytics record: %w", err)
	}

	return nil
}

func (a *Aggregator) lockFor(userID int64, platform string, day time.Time) *sync.Mutex {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s|%s", userID, platform, day.Format("2006-01-02"))
	return &a.locks[h.Sum32()%lockStripes]
}
