package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type PlatformPostRepository interface {
	// ResetForOccurrence replaces the post's platform posts wholesale with
	// a fresh pending set and fills in the generated ids.
	ResetForOccurrence(ctx context.Context, postID int64, pps []*models.PlatformPost) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error)
	MarkPublished(ctx context.Context, id int64, remotePostID string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	DeleteByPostID(ctx context.Context, postID int64) error
}

type platformPostRepository struct {
	db *sql.DB
}

func NewPlatformPostRepository(db *sql.DB) PlatformPostRepository {
	return &platformPostRepository{db: db}
}

func (r *platformPostRepository) ResetForOccurrence(ctx context.Context, postID int64, pps []*models.PlatformPost) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM platform_posts WHERE post_id = $1`, postID); err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO platform_posts (post_id, account_id, platform, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	for _, pp := range pps {
		err := tx.QueryRowContext(ctx, query, pp.PostID, pp.AccountID, pp.Platform, pp.Status).Scan(&pp.ID)
		if err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	return tx.Commit()
}

func (r *platformPostRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformPost, error) {
	query := `
		SELECT id, post_id, account_id, platform, remote_post_id, status, error_message, published_at, created_at
		FROM platform_posts
		WHERE post_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var pps []*models.PlatformPost
	for rows.Next() {
		var (
			pp       models.PlatformPost
			remoteID sql.NullString
			errMsg   sql.NullString
		)
		err := rows.Scan(&pp.ID, &pp.PostID, &pp.AccountID, &pp.Platform, &remoteID,
			&pp.Status, &errMsg, &pp.PublishedAt, &pp.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		pp.RemotePostID = remoteID.String
		pp.ErrorMessage = errMsg.String
		pps = append(pps, &pp)
	}
	return pps, rows.Err()
}

func (r *platformPostRepository) MarkPublished(ctx context.Context, id int64, remotePostID string, publishedAt time.Time) error {
	query := `
		UPDATE platform_posts
		SET status = $1, remote_post_id = $2, published_at = $3
		WHERE id = $4 AND status = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		models.PlatformPostStatusPublished, remotePostID, publishedAt, id, models.PlatformPostStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformPostRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE platform_posts
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		models.PlatformPostStatusFailed, errorMessage, id, models.PlatformPostStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformPostRepository) DeleteByPostID(ctx context.Context, postID int64) error {
	query := `DELETE FROM platform_posts WHERE post_id = $1`
	_, err := r.db.ExecContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
