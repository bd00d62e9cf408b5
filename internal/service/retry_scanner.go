package service

import (
	"context"
	"fmt"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/queue"
	"github.com/clubops/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRetryScanInterval = 5 * time.Second
	defaultRetryScanLimit    = 100
)

// RetryScanner periodically re-enqueues delivery records marked for retry.
type RetryScanner struct {
	deliveries repository.DeliveryRepository
	campaigns  repository.CampaignRepository
	bindings   repository.BindingRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	limit      int
	now        func() time.Time
}

func NewRetryScanner(
	deliveries repository.DeliveryRepository,
	campaigns repository.CampaignRepository,
	bindings repository.BindingRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if deliveries == nil || campaigns == nil || bindings == nil {
		return nil, fmt.Errorf("delivery, campaign, and binding repositories are required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		deliveries: deliveries,
		campaigns:  campaigns,
		bindings:   bindings,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		limit:      limit,
		now:        time.Now,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
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
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	dueRecords, err := s.deliveries.GetDueForRetry(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	// One channel lookup per batch; due records cluster within batches.
	channels := make(map[string]domain.Channel)

	for i := range dueRecords {
		record := dueRecords[i]

		channel, err := s.channelForBatch(ctx, channels, record.BatchID)
		if err != nil {
			s.logger.Error("failed to resolve channel for retry record",
				zap.String("recordId", record.ID),
				zap.String("batchId", record.BatchID),
				zap.Error(err),
			)
			continue
		}

		msg := queue.DispatchMessage{
			RecordID: record.ID,
			BatchID:  record.BatchID,
			Channel:  channel,
		}

		queueName := queue.QueueName(channel)
		if err := s.publisher.Publish(ctx, queueName, msg); err != nil {
			s.logger.Error("failed to enqueue retry record",
				zap.String("recordId", record.ID),
				zap.String("queue", queueName),
				zap.Error(err),
			)
			continue
		}

		if err := s.deliveries.ClearNextRetryAt(ctx, record.ID); err != nil {
			s.logger.Error("failed to clear next retry timestamp after enqueue",
				zap.String("recordId", record.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}

func (s *RetryScanner) channelForBatch(ctx context.Context, cache map[string]domain.Channel, batchID string) (domain.Channel, error) {
	if channel, ok := cache[batchID]; ok {
		return channel, nil
	}

	batch, err := s.campaigns.GetByID(ctx, batchID)
	if err != nil {
		return "", fmt.Errorf("failed to load campaign: %w", err)
	}

	binding, err := s.bindings.GetByID(ctx, batch.BindingID)
	if err != nil {
		return "", fmt.Errorf("failed to load template binding: %w", err)
	}

	cache[batchID] = binding.Channel
	return binding.Channel, nil
}
