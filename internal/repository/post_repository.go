package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/recurrence"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error

	// ListDue returns scheduled posts whose trigger time is at or before
	// now, in ascending trigger-time order.
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	// Claim atomically moves a post from scheduled to publishing. It
	// reports false when another scheduler run already owns the post.
	Claim(ctx context.Context, id int64) (bool, error)
	// Release puts a claimed post back to scheduled, untouched, so a later
	// tick retries the whole occurrence.
	Release(ctx context.Context, id int64) error
	SetOutcome(ctx context.Context, id int64, status string, partial bool) error
	// Rearm schedules the next occurrence of a recurring post.
	Rearm(ctx context.Context, id int64, nextOccurrence time.Time, occurrenceCount int) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, post_type, caption, title, hashtags, scheduled_time,
	next_occurrence, recurrence, occurrence_count, status, partial, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var (
		post    models.Post
		recJSON []byte
	)
	err := row.Scan(&post.ID, &post.UserID, &post.PostType, &post.Caption, &post.Title,
		pq.Array(&post.Hashtags), &post.ScheduledTime, &post.NextOccurrence, &recJSON,
		&post.OccurrenceCount, &post.Status, &post.Partial, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(recJSON) > 0 {
		var rule recurrence.Rule
		if err := json.Unmarshal(recJSON, &rule); err != nil {
			return nil, err
		}
		post.Recurrence = &rule
	}

	return &post, nil
}

func recurrenceJSON(post *models.Post) (interface{}, error) {
	if post.Recurrence == nil {
		return nil, nil
	}
	return json.Marshal(post.Recurrence)
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, post_type, caption, title, hashtags, scheduled_time, recurrence, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	rec, err := recurrenceJSON(post)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	args := []interface{}{post.UserID, post.PostType, post.Caption, post.Title,
		pq.Array(post.Hashtags), post.ScheduledTime, rec, post.Status}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_time DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND COALESCE(next_occurrence, scheduled_time) <= $2
		ORDER BY COALESCE(next_occurrence, scheduled_time) ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Claim(ctx context.Context, id int64) (bool, error) {
	// Conditional update keyed on the expected prior status. Of two
	// concurrent claims exactly one matches the WHERE clause.
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query,
		models.PostStatusPublishing, time.Now(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return n == 1, nil
}

func (r *postRepository) Release(ctx context.Context, id int64) error {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		models.PostStatusScheduled, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetOutcome(ctx context.Context, id int64, status string, partial bool) error {
	query := `
		UPDATE posts
		SET status = $1, partial = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, status, partial, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Rearm(ctx context.Context, id int64, nextOccurrence time.Time, occurrenceCount int) error {
	query := `
		UPDATE posts
		SET status = $1, next_occurrence = $2, occurrence_count = $3, partial = false, updated_at = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(ctx, query,
		models.PostStatusScheduled, nextOccurrence, occurrenceCount, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
