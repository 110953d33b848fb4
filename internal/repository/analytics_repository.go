package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type AnalyticsRepository interface {
	// GetByKey returns the record for (user, platform, day) or nil when no
	// sample has arrived for that day yet.
	GetByKey(ctx context.Context, userID int64, platform string, day time.Time) (*models.AnalyticsRecord, error)
	// Upsert inserts the record or overwrites the existing row for its
	// (user, platform, day) key with the merged values.
	Upsert(ctx context.Context, rec *models.AnalyticsRecord) error
	ListByRange(ctx context.Context, userID int64, platform string, from, to time.Time) ([]*models.AnalyticsRecord, error)
}

type analyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

const analyticsColumns = `id, user_id, platform, record_date, engagement_rate, impressions,
	reach, followers, likes, comments, shares, hourly_engagement, created_at, updated_at`

func scanAnalyticsRecord(row interface{ Scan(...interface{}) error }) (*models.AnalyticsRecord, error) {
	var (
		rec        models.AnalyticsRecord
		hourlyJSON []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Platform, &rec.RecordDate, &rec.EngagementRate,
		&rec.Impressions, &rec.Reach, &rec.Followers, &rec.Likes, &rec.Comments, &rec.Shares,
		&hourlyJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.HourlyEngagement = make(map[int]float64)
	if len(hourlyJSON) > 0 {
		if err := json.Unmarshal(hourlyJSON, &rec.HourlyEngagement); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

func (r *analyticsRepository) GetByKey(ctx context.Context, userID int64, platform string, day time.Time) (*models.AnalyticsRecord, error) {
	query := `SELECT ` + analyticsColumns + ` FROM analytics_records
		WHERE user_id = $1 AND platform = $2 AND record_date = $3`

	rec, err := scanAnalyticsRecord(r.db.QueryRowContext(ctx, query, userID, platform, day))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return rec, nil
}

func (r *analyticsRepository) Upsert(ctx context.Context, rec *models.AnalyticsRecord) error {
	query := `
		INSERT INTO analytics_records
			(user_id, platform, record_date, engagement_rate, impressions, reach,
			 followers, likes, comments, shares, hourly_engagement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, platform, record_date) DO UPDATE SET
			engagement_rate = EXCLUDED.engagement_rate,
			impressions = EXCLUDED.impressions,
			reach = EXCLUDED.reach,
			followers = EXCLUDED.followers,
			likes = EXCLUDED.likes,
			comments = EXCLUDED.comments,
			shares = EXCLUDED.shares,
			hourly_engagement = EXCLUDED.hourly_engagement,
			updated_at = NOW()
	`

	hourlyJSON, err := json.Marshal(rec.HourlyEngagement)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	_, err = r.db.ExecContext(ctx, query, rec.UserID, rec.Platform, rec.RecordDate,
		rec.EngagementRate, rec.Impressions, rec.Reach, rec.Followers,
		rec.Likes, rec.Comments, rec.Shares, hourlyJSON)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *analyticsRepository) ListByRange(ctx context.Context, userID int64, platform string, from, to time.Time) ([]*models.AnalyticsRecord, error) {
	query := `SELECT ` + analyticsColumns + ` FROM analytics_records
		WHERE user_id = $1 AND ($2 = '' OR platform = $2)
		AND record_date BETWEEN $3 AND $4
		ORDER BY record_date ASC, platform ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, platform, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var recs []*models.AnalyticsRecord
	for rows.Next() {
		rec, err := scanAnalyticsRecord(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
