package queue

import (
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/scheduler"
)

type Queue struct {
	sched  *scheduler.Scheduler
	pr     repository.PostRepository
	client *asynq.Client
}

func NewQueue(sched *scheduler.Scheduler, pr repository.PostRepository, client *asynq.Client) *Queue {
	return &Queue{
		sched:  sched,
		pr:     pr,
		client: client,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
