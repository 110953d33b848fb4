package scheduler

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/recurrence"
)

// memPostRepo is an in-memory PostRepository whose Claim performs the same
// compare-and-set the SQL implementation does.
type memPostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
}

func newMemPostRepo(posts ...*models.Post) *memPostRepo {
	m := &memPostRepo{posts: make(map[int64]*models.Post)}
	for _, p := range posts {
		clone := *p
		m.posts[p.ID] = &clone
	}
	return m
}

func (m *memPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *memPostRepo) Create(ctx context.Context, tx *sql.Tx, p *models.Post) (int64, error) {
	return 0, nil
}

func (m *memPostRepo) GetByUserID(context.Context, int64) ([]*models.Post, error) { return nil, nil }
func (m *memPostRepo) CheckByUserID(context.Context, int64, int64) (bool, error) { return false, nil }
func (m *memPostRepo) Remove(context.Context, int64) error { return nil }

func (m *memPostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Post
	for _, p := range m.posts {
		if p.Status == models.PostStatusScheduled && !p.TriggerTime().After(now) {
			clone := *p
			due = append(due, &clone)
		}
	}
	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].TriggerTime().Before(due[i].TriggerTime()) {
				due[i], due[j] = due[j], due[i]
			}
		}
	}
	return due, nil
}

func (m *memPostRepo) Claim(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusPublishing
	return true, nil
}

func (m *memPostRepo) Release(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok && p.Status == models.PostStatusPublishing {
		p.Status = models.PostStatusScheduled
	}
	return nil
}

func (m *memPostRepo) SetOutcome(ctx context.Context, id int64, status string, partial bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	p.Status = status
	p.Partial = partial
	return nil
}

func (m *memPostRepo) Rearm(ctx context.Context, id int64, next time.Time, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	p.Status = models.PostStatusScheduled
	p.NextOccurrence = &next
	p.OccurrenceCount = count
	p.Partial = false
	return nil
}

type memPlatformPostRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.PlatformPost
}

func (m *memPlatformPostRepo) ResetForOccurrence(ctx context.Context, postID int64, pps []*models.PlatformPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.PostID != postID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	for _, pp := range pps {
		m.nextID++
		pp.ID = m.nextID
		clone := *pp
		m.rows = append(m.rows, &clone)
	}
	return nil
}

func (m *memPlatformPostRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PlatformPost
	for _, row := range m.rows {
		if row.PostID == postID {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memPlatformPostRepo) MarkPublished(ctx context.Context, id int64, remoteID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			row.Status = models.PlatformPostStatusPublished
			row.RemotePostID = remoteID
			row.PublishedAt = &at
		}
	}
	return nil
}

func (m *memPlatformPostRepo) MarkFailed(ctx context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			row.Status = models.PlatformPostStatusFailed
			row.ErrorMessage = msg
		}
	}
	return nil
}

func (m *memPlatformPostRepo) DeleteByPostID(ctx context.Context, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if row.PostID != postID {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

type memSelectedRepo struct {
	byPost map[int64][]*models.SelectedAccount
	err    error
}

func (m *memSelectedRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.SelectedAccount, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byPost[postID], nil
}

func (m *memSelectedRepo) Create(context.Context, *sql.Tx, *models.SelectedAccount) error { return nil }

func (m *memSelectedRepo) GetByID(context.Context, int64, int64) (*models.SelectedAccount, error) {
	return nil, nil
}

func (m *memSelectedRepo) ListByAccountID(context.Context, int64) ([]*models.SelectedAccount, error) {
	return nil, nil
}

func (m *memSelectedRepo) Remove(context.Context, int64, int64) error { return nil }

type memAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (m *memAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return m.accounts[id], nil
}

func (m *memAccountRepo) Create(context.Context, *sql.Tx, *models.SocialAccount) (int64, error) {
	return 0, nil
}

func (m *memAccountRepo) ListByUserID(context.Context, int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *memAccountRepo) ListInfoByUserID(context.Context, int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *memAccountRepo) ListByTimeInterval(context.Context, time.Time, time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *memAccountRepo) ListActive(context.Context) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *memAccountRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (m *memAccountRepo) SetToken(context.Context, int64, string, *models.SocialAccount) error {
	return nil
}

func (m *memAccountRepo) Remove(context.Context, int64) error { return nil }

type memPostMediaRepo struct{}

func (memPostMediaRepo) Create(context.Context, *sql.Tx, *models.PostMedia) error { return nil }
func (memPostMediaRepo) GetByPostID(context.Context, int64) (*models.PostMedia, error) {
	return nil, nil
}

func (memPostMediaRepo) ListByPostID(context.Context, int64) ([]*models.PostMedia, error) {
	return nil, nil
}

func (memPostMediaRepo) Update(context.Context, *models.PostMedia) error { return nil }
func (memPostMediaRepo) Remove(context.Context, int64) error { return nil }

type memAssetRepo struct{}

func (memAssetRepo) Create(context.Context, *sql.Tx, *models.MediaAsset) (int64, error) {
	return 0, nil
}
func (memAssetRepo) GetByID(context.Context, int64) (*models.MediaAsset, error) { return nil, nil }
func (memAssetRepo) Remove(context.Context, int64) error { return nil }

type okPublisher struct{ platform string }

func (p okPublisher) Platform() string { return p.platform }

func (p okPublisher) Publish(ctx context.Context, r *publisher.Request) (*publisher.Result, error) {
	return &publisher.Result{RemoteID: "remote-1"}, nil
}

func newTestScheduler(pr *memPostRepo, sel *memSelectedRepo, acc *memAccountRepo) (*Scheduler, *memPlatformPostRepo) {
	pp := &memPlatformPostRepo{}
	hist := &memHistoryRepo{}
	coord := publisher.NewCoordinator(pr, pp, hist, time.Second, okPublisher{platform: "instagram"})
	return New(pr, pp, sel, acc, memPostMediaRepo{}, memAssetRepo{}, coord), pp
}

type memHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (m *memHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, ph)
	return int64(len(m.entries)), nil
}

func (m *memHistoryRepo) GetByID(context.Context, int64) (*models.PostingHistory, error) {
	return nil, nil
}

func (m *memHistoryRepo) GetByUserID(context.Context, int64) ([]*models.PostingHistory, error) {
	return nil, nil
}

func scheduledPost(id int64, at time.Time) *models.Post {
	return &models.Post{
		ID:            id,
		UserID:        7,
		Caption:       "caption",
		ScheduledTime: at,
		Status:        models.PostStatusScheduled,
	}
}

func selection(posts ...*models.Post) *memSelectedRepo {
	byPost := make(map[int64][]*models.SelectedAccount)
	for _, p := range posts {
		byPost[p.ID] = []*models.SelectedAccount{{PostID: p.ID, AccountID: 1}}
	}
	return &memSelectedRepo{byPost: byPost}
}

func instagramAccounts() *memAccountRepo {
	return &memAccountRepo{accounts: map[int64]*models.SocialAccount{
		1: {ID: 1, UserID: 7, Platform: "instagram"},
	}}
}

func TestScheduler_TickProcessesDueInOrder(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	early := scheduledPost(1, now.Add(-2*time.Hour))
	late := scheduledPost(2, now.Add(-1*time.Hour))
	future := scheduledPost(3, now.Add(time.Hour))

	pr := newMemPostRepo(late, early, future)
	s, _ := newTestScheduler(pr, selection(early, late, future), instagramAccounts())

	processed, err := s.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, processed)

	p1, _ := pr.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusPublished, p1.Status)

	p3, _ := pr.GetByID(context.Background(), 3)
	assert.Equal(t, models.PostStatusScheduled, p3.Status, "future post untouched")
}

func TestScheduler_ConcurrentClaimsSingleWinner(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	post := scheduledPost(1, now.Add(-time.Minute))

	pr := newMemPostRepo(post)
	s, _ := newTestScheduler(pr, selection(post), instagramAccounts())

	const runs = 8
	results := make([]error, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.ProcessPost(context.Background(), post.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrNotClaimed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one claim succeeds")
}

func TestScheduler_RearmsRecurringPost(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	post := scheduledPost(1, now.Add(-time.Minute))
	post.Recurrence = &recurrence.Rule{
		Enabled:   true,
		Frequency: recurrence.FrequencyDaily,
		Interval:  1,
	}

	pr := newMemPostRepo(post)
	s, pp := newTestScheduler(pr, selection(post), instagramAccounts())

	require.NoError(t, s.ProcessPost(context.Background(), post.ID))

	got, _ := pr.GetByID(context.Background(), post.ID)
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	require.NotNil(t, got.NextOccurrence)
	assert.Equal(t, post.ScheduledTime.AddDate(0, 0, 1), *got.NextOccurrence)
	assert.Equal(t, 1, got.OccurrenceCount)

	rows, _ := pp.ListByPostID(context.Background(), post.ID)
	assert.Empty(t, rows, "platform posts reset for the next occurrence")
}

func TestScheduler_SeriesEndedStaysTerminal(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	post := scheduledPost(1, now.Add(-time.Minute))
	post.Recurrence = &recurrence.Rule{
		Enabled:   true,
		Frequency: recurrence.FrequencyDaily,
		Interval:  1,
		End:       recurrence.End{Kind: recurrence.EndAfter, Count: 1},
	}

	pr := newMemPostRepo(post)
	s, _ := newTestScheduler(pr, selection(post), instagramAccounts())

	require.NoError(t, s.ProcessPost(context.Background(), post.ID))

	got, _ := pr.GetByID(context.Background(), post.ID)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Nil(t, got.NextOccurrence)
}

func TestScheduler_UnavailableCollaboratorReleasesClaim(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	post := scheduledPost(1, now.Add(-time.Minute))

	pr := newMemPostRepo(post)
	sel := &memSelectedRepo{err: context.DeadlineExceeded}
	s, _ := newTestScheduler(pr, sel, instagramAccounts())

	err := s.ProcessPost(context.Background(), post.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, publisher.ErrUnavailable)

	got, _ := pr.GetByID(context.Background(), post.ID)
	assert.Equal(t, models.PostStatusScheduled, got.Status, "post stays scheduled for the next tick")
}
