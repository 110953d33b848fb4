package publisher

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postpilot/internal/models"
)

type fakePublisher struct {
	platform string
	remoteID string
	err      error
	delay    time.Duration
}

func (f *fakePublisher) Platform() string { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, r *Request) (*Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Result{RemoteID: f.remoteID}, nil
}

type fakePostRepo struct {
	mu      sync.Mutex
	status  map[int64]string
	partial map[int64]bool
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{status: make(map[int64]string), partial: make(map[int64]bool)}
}

func (f *fakePostRepo) SetOutcome(ctx context.Context, id int64, status string, partial bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = status
	f.partial[id] = partial
	return nil
}

func (f *fakePostRepo) GetByID(context.Context, int64) (*models.Post, error) { return nil, nil }

func (f *fakePostRepo) Create(context.Context, *sql.Tx, *models.Post) (int64, error) {
	return 0, nil
}
func (f *fakePostRepo) GetByUserID(context.Context, int64) ([]*models.Post, error) { return nil, nil }
func (f *fakePostRepo) CheckByUserID(context.Context, int64, int64) (bool, error) { return false, nil }
func (f *fakePostRepo) Remove(context.Context, int64) error { return nil }
func (f *fakePostRepo) ListDue(context.Context, time.Time) ([]*models.Post, error) { return nil, nil }
func (f *fakePostRepo) Claim(context.Context, int64) (bool, error) { return false, nil }
func (f *fakePostRepo) Release(context.Context, int64) error { return nil }
func (f *fakePostRepo) Rearm(context.Context, int64, time.Time, int) error { return nil }

type fakePlatformPostRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.PlatformPost
}

func newFakePlatformPostRepo() *fakePlatformPostRepo {
	return &fakePlatformPostRepo{rows: make(map[int64]*models.PlatformPost)}
}

func (f *fakePlatformPostRepo) ResetForOccurrence(ctx context.Context, postID int64, pps []*models.PlatformPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, row := range f.rows {
		if row.PostID == postID {
			delete(f.rows, id)
		}
	}
	for _, pp := range pps {
		f.nextID++
		pp.ID = f.nextID
		clone := *pp
		f.rows[pp.ID] = &clone
	}
	return nil
}

func (f *fakePlatformPostRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PlatformPost
	for _, row := range f.rows {
		if row.PostID == postID {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakePlatformPostRepo) MarkPublished(ctx context.Context, id int64, remotePostID string, publishedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.Status = models.PlatformPostStatusPublished
	row.RemotePostID = remotePostID
	row.PublishedAt = &publishedAt
	return nil
}

func (f *fakePlatformPostRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.Status = models.PlatformPostStatusFailed
	row.ErrorMessage = errorMessage
	return nil
}

func (f *fakePlatformPostRepo) DeleteByPostID(ctx context.Context, postID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, row := range f.rows {
		if row.PostID == postID {
			delete(f.rows, id)
		}
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, ph)
	return int64(len(f.entries)), nil
}

func (f *fakeHistoryRepo) GetByID(context.Context, int64) (*models.PostingHistory, error) {
	return nil, nil
}

func (f *fakeHistoryRepo) GetByUserID(context.Context, int64) ([]*models.PostingHistory, error) {
	return nil, nil
}

func account(id int64, platform string) *models.SocialAccount {
	return &models.SocialAccount{ID: id, UserID: 7, Platform: platform}
}

func post() *models.Post {
	return &models.Post{ID: 42, UserID: 7, Caption: "hello", Status: models.PostStatusPublishing}
}

func TestCoordinator_AllSucceed(t *testing.T) {
	pr := newFakePostRepo()
	pp := newFakePlatformPostRepo()
	ph := &fakeHistoryRepo{}

	c := NewCoordinator(pr, pp, ph, time.Second,
		&fakePublisher{platform: "instagram", remoteID: "ig-1"},
		&fakePublisher{platform: "tiktok", remoteID: "tt-1"},
	)

	out, err := c.Publish(context.Background(), post(),
		[]*models.SocialAccount{account(1, "instagram"), account(2, "tiktok")}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusPublished, out.Status)
	assert.False(t, out.Partial)
	require.Len(t, out.PlatformPosts, 2)
	for _, row := range out.PlatformPosts {
		assert.Equal(t, models.PlatformPostStatusPublished, row.Status)
		assert.NotEmpty(t, row.RemotePostID)
		assert.NotNil(t, row.PublishedAt)
	}

	assert.Equal(t, models.PostStatusPublished, pr.status[42])
	assert.Len(t, ph.entries, 2)
}

func TestCoordinator_AllFail(t *testing.T) {
	pr := newFakePostRepo()
	pp := newFakePlatformPostRepo()
	ph := &fakeHistoryRepo{}

	c := NewCoordinator(pr, pp, ph, time.Second,
		&fakePublisher{platform: "instagram", err: errors.New("api down")},
		&fakePublisher{platform: "tiktok", err: errors.New("api down")},
	)

	out, err := c.Publish(context.Background(), post(),
		[]*models.SocialAccount{account(1, "instagram"), account(2, "tiktok")}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusFailed, out.Status)
	assert.False(t, out.Partial)
	assert.Equal(t, models.PostStatusFailed, pr.status[42])
}

func TestCoordinator_PartialFailureIsPublished(t *testing.T) {
	pr := newFakePostRepo()
	pp := newFakePlatformPostRepo()
	ph := &fakeHistoryRepo{}

	// Three targets: two succeed, one exceeds the per-call timeout.
	c := NewCoordinator(pr, pp, ph, 50*time.Millisecond,
		&fakePublisher{platform: "instagram", remoteID: "ig-1"},
		&fakePublisher{platform: "tiktok", remoteID: "tt-1"},
		&fakePublisher{platform: "youtube", remoteID: "yt-1", delay: time.Second},
	)

	out, err := c.Publish(context.Background(), post(),
		[]*models.SocialAccount{account(1, "instagram"), account(2, "tiktok"), account(3, "youtube")}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusPublished, out.Status)
	assert.True(t, out.Partial)

	statuses := map[string]string{}
	for _, row := range out.PlatformPosts {
		statuses[row.Platform] = row.Status
	}
	assert.Equal(t, models.PlatformPostStatusPublished, statuses["instagram"])
	assert.Equal(t, models.PlatformPostStatusPublished, statuses["tiktok"])
	assert.Equal(t, models.PlatformPostStatusFailed, statuses["youtube"])
}

func TestCoordinator_NoPendingRemains(t *testing.T) {
	pr := newFakePostRepo()
	pp := newFakePlatformPostRepo()
	ph := &fakeHistoryRepo{}

	c := NewCoordinator(pr, pp, ph, time.Second,
		&fakePublisher{platform: "instagram", remoteID: "ig-1"},
	)

	targets := []*models.SocialAccount{
		account(1, "instagram"),
		account(2, "unknown-platform"),
	}

	out, err := c.Publish(context.Background(), post(), targets, nil)
	require.NoError(t, err)
	require.Len(t, out.PlatformPosts, len(targets))

	rows, err := pp.ListByPostID(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rows, len(targets))
	for _, row := range rows {
		assert.NotEqual(t, models.PlatformPostStatusPending, row.Status)
	}
}

func TestCoordinator_NoTargets(t *testing.T) {
	c := NewCoordinator(newFakePostRepo(), newFakePlatformPostRepo(), &fakeHistoryRepo{}, time.Second)

	_, err := c.Publish(context.Background(), post(), nil, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
