package analytics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postpilot/internal/models"
)

type memAnalyticsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.AnalyticsRecord
}

func newMemAnalyticsRepo() *memAnalyticsRepo {
	return &memAnalyticsRepo{rows: make(map[string]*models.AnalyticsRecord)}
}

func key(userID int64, platform string, day time.Time) string {
	return fmt.Sprintf("%d|%s|%s", userID, platform, day.Format("2006-01-02"))
}

func (m *memAnalyticsRepo) GetByKey(ctx context.Context, userID int64, platform string, day time.Time) (*models.AnalyticsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[key(userID, platform, day)]
	if !ok {
		return nil, nil
	}
	clone := *rec
	clone.HourlyEngagement = make(map[int]float64, len(rec.HourlyEngagement))
	for h, v := range rec.HourlyEngagement {
		clone.HourlyEngagement[h] = v
	}
	return &clone, nil
}

func (m *memAnalyticsRepo) Upsert(ctx context.Context, rec *models.AnalyticsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rec
	clone.HourlyEngagement = make(map[int]float64, len(rec.HourlyEngagement))
	for h, v := range rec.HourlyEngagement {
		clone.HourlyEngagement[h] = v
	}
	m.rows[key(rec.UserID, rec.Platform, rec.RecordDate)] = &clone
	return nil
}

func (m *memAnalyticsRepo) ListByRange(ctx context.Context, userID int64, platform string, from, to time.Time) ([]*models.AnalyticsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AnalyticsRecord
	for _, rec := range m.rows {
		if rec.UserID == userID && rec.Platform == platform &&
			!rec.RecordDate.Before(from) && !rec.RecordDate.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func at(hour int) time.Time {
	return time.Date(2024, time.March, 10, hour, 15, 0, 0, time.UTC)
}

func TestAggregator_SameHourOverwrites(t *testing.T) {
	repo := newMemAnalyticsRepo()
	agg := NewAggregator(repo)
	ctx := context.Background()

	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9), Sample{
		Impressions: 100, EngagementRate: 2.5, Followers: 500,
	}))
	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9), Sample{
		Impressions: 40, EngagementRate: 3.1, Followers: 510,
	}))

	rec, err := repo.GetByKey(ctx, 1, "instagram", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.EqualValues(t, 140, rec.Impressions, "impressions from both samples sum")
	assert.Equal(t, 3.1, rec.EngagementRate, "engagement rate holds the latest sample")
	assert.EqualValues(t, 510, rec.Followers)

	require.Len(t, rec.HourlyEngagement, 1, "one entry for hour 9")
	assert.Equal(t, 3.1, rec.HourlyEngagement[9], "second sample's value wins")
}

func TestAggregator_DistinctHours(t *testing.T) {
	repo := newMemAnalyticsRepo()
	agg := NewAggregator(repo)
	ctx := context.Background()

	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9), Sample{EngagementRate: 2.0}))
	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(14), Sample{EngagementRate: 4.0}))

	rec, err := repo.GetByKey(ctx, 1, "instagram", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Len(t, rec.HourlyEngagement, 2)
	assert.Equal(t, 2.0, rec.HourlyEngagement[9])
	assert.Equal(t, 4.0, rec.HourlyEngagement[14])
}

func TestAggregator_SeparateDaysAndPlatforms(t *testing.T) {
	repo := newMemAnalyticsRepo()
	agg := NewAggregator(repo)
	ctx := context.Background()

	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9), Sample{Likes: 5}))
	require.NoError(t, agg.Ingest(ctx, 1, "tiktok", at(9), Sample{Likes: 7}))
	require.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9).AddDate(0, 0, 1), Sample{Likes: 11}))

	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	ig, _ := repo.GetByKey(ctx, 1, "instagram", day)
	require.NotNil(t, ig)
	assert.EqualValues(t, 5, ig.Likes)

	tk, _ := repo.GetByKey(ctx, 1, "tiktok", day)
	require.NotNil(t, tk)
	assert.EqualValues(t, 7, tk.Likes)

	next, _ := repo.GetByKey(ctx, 1, "instagram", day.AddDate(0, 0, 1))
	require.NotNil(t, next)
	assert.EqualValues(t, 11, next.Likes)
}

func TestAggregator_ConcurrentIngestsSameKey(t *testing.T) {
	repo := newMemAnalyticsRepo()
	agg := NewAggregator(repo)
	ctx := context.Background()

	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, agg.Ingest(ctx, 1, "instagram", at(9), Sample{Impressions: 1}))
		}()
	}
	wg.Wait()

	rec, err := repo.GetByKey(ctx, 1, "instagram", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, n, rec.Impressions, "no increments lost under concurrency")
}
