package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/scheduler"
)

// HandlePublishPostTask fires one occurrence of a post. The delayed task and
// the cron sweep race for the same claim, so losing the claim is a normal
// outcome here, not a failure.
func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	err := j.sched.ProcessPost(ctx, payload.PostID)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotClaimed) {
			log.Printf("Post %d already claimed by another run", payload.PostID)
			return nil
		}
		if errors.Is(err, publisher.ErrUnavailable) {
			// Returning the error makes asynq retry the occurrence later.
			slog.Info(err.Error())
			return err
		}
		return err
	}

	j.enqueueNextOccurrence(ctx, payload.PostID)

	return nil
}

// enqueueNextOccurrence schedules a delayed task for the post's next firing
// when the occurrence just processed re-armed the series. The cron sweep
// picks the occurrence up regardless, the task just fires it sooner.
func (j *Queue) enqueueNextOccurrence(ctx context.Context, postID int64) {
	post, err := j.pr.GetByID(ctx, postID)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if post == nil || post.NextOccurrence == nil || post.Status != models.PostStatusScheduled {
		return
	}

	delay := time.Until(*post.NextOccurrence)
	if delay < 0 {
		delay = 0
	}

	if err := EnqueuePost(j.client, PublishPostPayload{PostID: postID}, delay); err != nil {
		slog.Info(err.Error())
	}
}
