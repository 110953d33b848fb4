package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// Outcome is the settled result of one occurrence's fan-out.
type Outcome struct {
	Status        string // models.PostStatusPublished or models.PostStatusFailed
	Partial       bool
	PlatformPosts []*models.PlatformPost
}

type Coordinator struct {
	pr      repository.PostRepository
	pp      repository.PlatformPostRepository
	ph      repository.PostingHistoryRepository
	pubs    map[string]Publisher
	timeout time.Duration
	sem     chan struct{} // bounds in-flight platform calls
}

func NewCoordinator(
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	ph repository.PostingHistoryRepository,
	timeout time.Duration,
	pubs ...Publisher) *Coordinator {

	m := make(map[string]Publisher, len(pubs))
	for _, p := range pubs {
		m[p.Platform()] = p
	}

	return &Coordinator{
		pr:      pr,
		pp:      pp,
		ph:      ph,
		pubs:    m,
		timeout: timeout,
		sem:     make(chan struct{}, 10),
	}
}

// Publish attempts the post on every target account independently: a failure
// on one platform never blocks or rolls back the others. Each attempt gets a
// fresh pending platform post that settles exactly once to published or
// failed. The overall post status is failed only when every attempt failed;
// any success reports published, partially when some targets failed.
//
// Publish is the only writer of platform post rows and the only component
// that moves a post's status off scheduled/publishing.
func (c *Coordinator) Publish(ctx context.Context, post *models.Post, targets []*models.SocialAccount, mediaURLs []string) (*Outcome, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no target accounts resolved for post %d", ErrUnavailable, post.ID)
	}

	pps := make([]*models.PlatformPost, len(targets))
	for i, acc := range targets {
		pps[i] = &models.PlatformPost{
			PostID:    post.ID,
			AccountID: acc.ID,
			Platform:  acc.Platform,
			Status:    models.PlatformPostStatusPending,
		}
	}

	// The current occurrence owns its platform posts wholesale; rows from a
	// previous attempt are replaced before any network call happens.
	if err := c.pp.ResetForOccurrence(ctx, post.ID, pps); err != nil {
		return nil, fmt.Errorf("%w: reset platform posts: %v", ErrUnavailable, err)
	}

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		c.sem <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-c.sem }()

			c.publishOne(ctx, post, targets[i], mediaURLs, pps[i])
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, pp := range pps {
		if err := c.settle(ctx, post, pp); err != nil {
			slog.Error("unable to record platform post outcome",
				"post_id", post.ID, "platform", pp.Platform, "error", err.Error())
		}
		if pp.Status == models.PlatformPostStatusFailed {
			failed++
		}
	}

	out := &Outcome{PlatformPosts: pps}
	if failed == len(pps) {
		out.Status = models.PostStatusFailed
	} else {
		out.Status = models.PostStatusPublished
		out.Partial = failed > 0
	}

	if err := c.pr.SetOutcome(ctx, post.ID, out.Status, out.Partial); err != nil {
		return nil, fmt.Errorf("set post outcome: %w", err)
	}

	return out, nil
}

// publishOne runs a single platform attempt under a bounded timeout and
// fills pp with its terminal state. A timeout counts as a failed attempt,
// not a coordinator error.
func (c *Coordinator) publishOne(ctx context.Context, post *models.Post, acc *models.SocialAccount, mediaURLs []string, pp *models.PlatformPost) {
	pub, ok := c.pubs[acc.Platform]
	if !ok {
		pp.Status = models.PlatformPostStatusFailed
		pp.ErrorMessage = (&Error{Kind: ErrKindUnsupported,
			Err: fmt.Errorf("no publisher registered for %q", acc.Platform)}).Error()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := pub.Publish(ctx, &Request{Post: post, Account: acc, MediaURLs: mediaURLs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &Error{Kind: ErrKindTimeout, Retryable: true, Err: err}
		}
		pp.Status = models.PlatformPostStatusFailed
		pp.ErrorMessage = err.Error()
		slog.Info("platform publish failed",
			"post_id", post.ID, "platform", acc.Platform, "error", err.Error())
		return
	}

	now := time.Now()
	pp.Status = models.PlatformPostStatusPublished
	pp.RemotePostID = res.RemoteID
	pp.PublishedAt = &now
}

// settle persists the attempt's terminal state and appends it to the
// posting history trail.
func (c *Coordinator) settle(ctx context.Context, post *models.Post, pp *models.PlatformPost) error {
	switch pp.Status {
	case models.PlatformPostStatusPublished:
		if err := c.pp.MarkPublished(ctx, pp.ID, pp.RemotePostID, *pp.PublishedAt); err != nil {
			return err
		}
	case models.PlatformPostStatusFailed:
		if err := c.pp.MarkFailed(ctx, pp.ID, pp.ErrorMessage); err != nil {
			return err
		}
	}

	_, err := c.ph.Create(ctx, &models.PostingHistory{
		UserID:       post.UserID,
		PostID:       post.ID,
		AccountID:    pp.AccountID,
		Platform:     pp.Platform,
		RemotePostID: pp.RemotePostID,
		ErrorMessage: pp.ErrorMessage,
	})
	return err
}
