package job

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/maheshrc27/postpilot/internal/analytics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

// MetricsJob polls engagement metrics for every active social account and
// funnels the samples into the analytics aggregator.
type MetricsJob struct {
	sr      repository.SocialAccountRepository
	ag      *analytics.Aggregator
	sources map[string]analytics.MetricsSource
}

func NewMetricsJob(sr repository.SocialAccountRepository, ag *analytics.Aggregator, sources ...analytics.MetricsSource) *MetricsJob {
	byPlatform := make(map[string]analytics.MetricsSource, len(sources))
	for _, src := range sources {
		byPlatform[src.Platform()] = src
	}
	return &MetricsJob{
		sr:      sr,
		ag:      ag,
		sources: byPlatform,
	}
}

func (c *MetricsJob) PollMetrics() {
	ctx := context.Background()

	accounts, err := c.sr.ListActive(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		src, ok := c.sources[acc.Platform]
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount, src analytics.MetricsSource) {
			defer wg.Done()
			defer func() { <-semaphore }()

			samples, err := src.Poll(ctx, acc)
			if err != nil {
				slog.Info("Unable to poll metrics for " + acc.Platform + " account " + strconv.FormatInt(acc.ID, 10))
				return
			}

			for _, sample := range samples {
				if err := c.ag.Ingest(ctx, acc.UserID, acc.Platform, sample.At, sample.Sample); err != nil {
					slog.Info(err.Error())
				}
			}
		}(acc, src)
	}

	wg.Wait()
}
