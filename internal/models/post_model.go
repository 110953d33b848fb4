package models

import (
	"time"

	"github.com/maheshrc27/postpilot/internal/recurrence"
)

type Post struct {
	ID              int64            `db:"id" json:"id"`
	UserID          int64            `db:"user_id" json:"user_id"`
	PostType        string           `db:"post_type" json:"post_type"`
	Caption         string           `db:"caption" json:"caption"`
	Title           string           `db:"title" json:"title"`
	Hashtags        []string         `db:"hashtags" json:"hashtags"`
	ScheduledTime   time.Time        `db:"scheduled_time" json:"scheduled_time"`
	NextOccurrence  *time.Time       `db:"next_occurrence" json:"next_occurrence,omitempty"`
	Recurrence      *recurrence.Rule `db:"recurrence" json:"recurrence,omitempty"`
	OccurrenceCount int              `db:"occurrence_count" json:"occurrence_count"`
	Status          string           `db:"status" json:"status"` // draft, scheduled, publishing, published, failed
	Partial         bool             `db:"partial" json:"partial"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// TriggerTime is the instant the current occurrence is due. Recurring posts
// carry it in next_occurrence after the first firing, one-shot posts always
// in scheduled_time.
func (p *Post) TriggerTime() time.Time {
	if p.NextOccurrence != nil {
		return *p.NextOccurrence
	}
	return p.ScheduledTime
}

func (p *Post) IsRecurring() bool {
	return p.Recurrence != nil && p.Recurrence.Enabled
}

type PlatformPost struct {
	ID           int64      `db:"id" json:"id"`
	PostID       int64      `db:"post_id" json:"post_id"`
	AccountID    int64      `db:"account_id" json:"account_id"`
	Platform     string     `db:"platform" json:"platform"`
	RemotePostID string     `db:"remote_post_id" json:"remote_post_id,omitempty"`
	Status       string     `db:"status" json:"status"` // pending, published, failed
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type MediaAsset struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	FileName     string    `db:"file_name"`
	FileType     string    `db:"file_type"`
	FileSize     int64     `db:"file_size"`
	FileURL      string    `db:"file_url"`
	ThumbnailURL string    `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostTypeSingle   = "single"
	PostTypeMultiple = "multiple"
)

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing" // claimed by a scheduler run
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	PlatformPostStatusPending   = "pending"
	PlatformPostStatusPublished = "published"
	PlatformPostStatusFailed    = "failed"
)
