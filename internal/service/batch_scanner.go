package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clubops/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultBatchScanInterval = 5 * time.Second
	defaultBatchScanLimit    = 50
)

// Expander starts expansion of one due campaign.
type Expander interface {
	Expand(ctx context.Context, batchID string) error
}

// BatchScanner periodically expands pending campaigns whose schedule time
// has been reached.
type BatchScanner struct {
	campaigns repository.CampaignRepository
	expander  Expander
	logger    *zap.Logger
	interval  time.Duration
	limit     int
	now       func() time.Time
}

func NewBatchScanner(
	campaigns repository.CampaignRepository,
	expander Expander,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*BatchScanner, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if expander == nil {
		return nil, fmt.Errorf("expander is required")
	}
	if interval <= 0 {
		interval = defaultBatchScanInterval
	}
	if limit <= 0 {
		limit = defaultBatchScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchScanner{
		campaigns: campaigns,
		expander:  expander,
		logger:    logger,
		interval:  interval,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (s *BatchScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due campaigns do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("batch scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("batch scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *BatchScanner) scanDue(ctx context.Context) error {
	dueCampaigns, err := s.campaigns.GetDuePending(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due campaigns: %w", err)
	}

	for i := range dueCampaigns {
		batch := dueCampaigns[i]
		if err := s.expander.Expand(ctx, batch.ID); err != nil {
			s.logger.Error("failed to expand due campaign",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
