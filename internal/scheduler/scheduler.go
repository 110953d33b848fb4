// Package scheduler discovers due posts, claims them exactly once and
// drives each claimed occurrence through the publish fan-out, re-arming
// recurring posts afterwards.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/recurrence"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// ErrNotClaimed reports that another scheduler run already owns the post.
// The loser of a concurrent claim skips the post; this is expected, not a
// failure.
var ErrNotClaimed = errors.New("scheduler: post already claimed")

type Scheduler struct {
	pr repository.PostRepository
	pp repository.PlatformPostRepository
	sa repository.SelectedAccountRepository
	ac repository.SocialAccountRepository
	pm repository.PostMediaRepository
	ma repository.MediaAssetRepository
	c  *publisher.Coordinator
}

func New(
	pr repository.PostRepository,
	pp repository.PlatformPostRepository,
	sa repository.SelectedAccountRepository,
	ac repository.SocialAccountRepository,
	pm repository.PostMediaRepository,
	ma repository.MediaAssetRepository,
	c *publisher.Coordinator) *Scheduler {
	return &Scheduler{
		pr: pr,
		pp: pp,
		sa: sa,
		ac: ac,
		pm: pm,
		ma: ma,
		c:  c,
	}
}

// Tick processes every post due at now, in ascending trigger-time order,
// and returns the ids it published. Posts another run claimed first are
// skipped silently; posts whose collaborators were unreachable stay
// scheduled for the next tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]int64, error) {
	due, err := s.pr.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}

	var processed []int64
	for _, post := range due {
		if err := s.ProcessPost(ctx, post.ID); err != nil {
			if !errors.Is(err, ErrNotClaimed) {
				slog.Info("skipping due post", "post_id", post.ID, "error", err.Error())
			}
			continue
		}
		processed = append(processed, post.ID)
	}

	return processed, nil
}

// ProcessPost publishes one occurrence of the post. The claim is a
// conditional status update, so concurrent runs (a sweeper tick racing a
// queued task) agree on a single owner. When the fan-out cannot start at
// all the claim is released and the occurrence retried on a later tick.
func (s *Scheduler) ProcessPost(ctx context.Context, postID int64) error {
	claimed, err := s.pr.Claim(ctx, postID)
	if err != nil {
		return fmt.Errorf("claim post %d: %w", postID, err)
	}
	if !claimed {
		return ErrNotClaimed
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil || post == nil {
		s.release(ctx, postID)
		return fmt.Errorf("load post %d: %w", postID, err)
	}

	targets, mediaURLs, err := s.resolveOccurrence(ctx, post)
	if err != nil {
		s.release(ctx, postID)
		return fmt.Errorf("%w: %v", publisher.ErrUnavailable, err)
	}

	outcome, err := s.c.Publish(ctx, post, targets, mediaURLs)
	if err != nil {
		if errors.Is(err, publisher.ErrUnavailable) {
			s.release(ctx, postID)
		}
		return fmt.Errorf("publish post %d: %w", postID, err)
	}

	slog.Info("occurrence published",
		"post_id", postID, "status", outcome.Status, "partial", outcome.Partial)

	return s.rearm(ctx, post)
}

// resolveOccurrence loads the selected accounts and media locations for the
// occurrence. Any failure here means the fan-out never started.
func (s *Scheduler) resolveOccurrence(ctx context.Context, post *models.Post) ([]*models.SocialAccount, []string, error) {
	selected, err := s.sa.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list selected accounts: %w", err)
	}
	if len(selected) == 0 {
		return nil, nil, fmt.Errorf("no accounts selected for post %d", post.ID)
	}

	targets := make([]*models.SocialAccount, 0, len(selected))
	for _, sel := range selected {
		acc, err := s.ac.GetByID(ctx, sel.AccountID)
		if err != nil {
			return nil, nil, fmt.Errorf("load social account %d: %w", sel.AccountID, err)
		}
		if acc == nil {
			slog.Info("selected account no longer exists",
				"post_id", post.ID, "account_id", sel.AccountID)
			continue
		}
		targets = append(targets, acc)
	}

	media, err := s.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list post media: %w", err)
	}

	mediaURLs := make([]string, 0, len(media))
	for _, pm := range media {
		asset, err := s.ma.GetByID(ctx, pm.AssetID)
		if err != nil {
			return nil, nil, fmt.Errorf("load media asset %d: %w", pm.AssetID, err)
		}
		if asset != nil && asset.FileURL != "" {
			mediaURLs = append(mediaURLs, asset.FileURL)
		}
	}

	return targets, mediaURLs, nil
}

// rearm computes the next occurrence of a recurring post and puts it back
// in the scheduled state with a cleared platform post set. For one-shot
// posts and exhausted series the terminal status set by the coordinator
// stands.
func (s *Scheduler) rearm(ctx context.Context, post *models.Post) error {
	if !post.IsRecurring() {
		return nil
	}

	// occurrence_count is the number of firings so far; the one that just
	// completed is not persisted yet, hence +1.
	fired := post.OccurrenceCount + 1

	occ, err := recurrence.Next(*post.Recurrence, post.TriggerTime(), fired)
	if err != nil {
		if errors.Is(err, recurrence.ErrSeriesEnded) {
			slog.Info("recurrence series ended", "post_id", post.ID)
			return nil
		}
		return fmt.Errorf("compute next occurrence for post %d: %w", post.ID, err)
	}

	if err := s.pp.DeleteByPostID(ctx, post.ID); err != nil {
		return fmt.Errorf("reset platform posts for post %d: %w", post.ID, err)
	}

	if err := s.pr.Rearm(ctx, post.ID, occ.At, fired); err != nil {
		return fmt.Errorf("rearm post %d: %w", post.ID, err)
	}

	slog.Info("post rearmed", "post_id", post.ID, "next_occurrence", occ.At)
	return nil
}

func (s *Scheduler) release(ctx context.Context, postID int64) {
	if err := s.pr.Release(ctx, postID); err != nil {
		slog.Error("unable to release claimed post", "post_id", postID, "error", err.Error())
	}
}
