// Package publisher fans one post occurrence out to every selected social
// account and derives the post's overall status from the per-platform
// outcomes.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/maheshrc27/postpilot/internal/models"
)

// ErrUnavailable reports that the fan-out could not start at all, e.g. a
// collaborator or the database was unreachable. The occurrence stays
// unprocessed and the scheduler retries it on a later tick. Platform-level
// publish failures are terminal for the occurrence and never wrapped in it.
var ErrUnavailable = errors.New("publisher: unavailable")

// Request carries everything a platform needs to place one post.
type Request struct {
	Post      *models.Post
	Account   *models.SocialAccount
	MediaURLs []string
}

// Result is a successful remote publish.
type Result struct {
	RemoteID string
}

// Publisher places content on a single platform. One implementation exists
// per platform; callers select an implementation and never branch on
// platform identity beyond that.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, r *Request) (*Result, error)
}

const (
	ErrKindTimeout     = "timeout"
	ErrKindRemote      = "remote"
	ErrKindAuth        = "auth"
	ErrKindUnsupported = "unsupported"
)

// Error describes a failed publish attempt on one platform.
type Error struct {
	Kind      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("publish failed (%s)", e.Kind)
	}
	return fmt.Sprintf("publish failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
