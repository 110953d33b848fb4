package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/analytics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type AnalyticsService interface {
	ListRecords(ctx context.Context, userID int64, platform string, from, to time.Time) ([]*models.AnalyticsRecord, error)
	IngestSample(ctx context.Context, userID int64, ingest *transfer.MetricSampleIngest) error
}

type analyticsService struct {
	ar repository.AnalyticsRepository
	ag *analytics.Aggregator
}

func NewAnalyticsService(ar repository.AnalyticsRepository, ag *analytics.Aggregator) AnalyticsService {
	return &analyticsService{
		ar: ar,
		ag: ag,
	}
}

func (s *analyticsService) ListRecords(ctx context.Context, userID int64, platform string, from, to time.Time) ([]*models.AnalyticsRecord, error) {
	if userID == 0 {
		err := errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if to.Before(from) {
		err := errors.New("range end is before range start")
		slog.Info(err.Error())
		return nil, err
	}

	records, err := s.ar.ListByRange(ctx, userID, platform, from, to)
	if err != nil {
		return nil, fmt.Errorf("Error getting analytics records")
	}
	return records, nil
}

func (s *analyticsService) IngestSample(ctx context.Context, userID int64, ingest *transfer.MetricSampleIngest) error {
	if ingest == nil {
		err := errors.New("sample is nil")
		slog.Info(err.Error())
		return err
	}

	if ingest.Platform == "" {
		err := errors.New("platform is empty")
		slog.Info(err.Error())
		return err
	}

	at := time.Now()
	if ingest.RecordedAt != "" {
		parsed, err := time.Parse(time.RFC3339, ingest.RecordedAt)
		if err != nil {
			err = fmt.Errorf("invalid recorded_at format: %w", err)
			slog.Info(err.Error())
			return err
		}
		at = parsed
	}

	sample := analytics.Sample{
		Impressions:    ingest.Impressions,
		Reach:          ingest.Reach,
		Likes:          ingest.Likes,
		Comments:       ingest.Comments,
		Shares:         ingest.Shares,
		EngagementRate: ingest.EngagementRate,
		Followers:      ingest.Followers,
	}

	return s.ag.Ingest(ctx, userID, ingest.Platform, at, sample)
}
