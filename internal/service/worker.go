package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/observability"
	"github.com/clubops/notify-engine/internal/provider"
	"github.com/clubops/notify-engine/internal/queue"
	"github.com/clubops/notify-engine/internal/ratelimit"
	"github.com/clubops/notify-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

// CompletionRefresher re-evaluates batch completion after a delivery record
// reaches a terminal status.
type CompletionRefresher interface {
	RefreshCompletion(ctx context.Context, batchID string) error
}

// WorkerService consumes the channel queues and submits delivery records to
// the provider, walking routing rules in declared order for fallback.
type WorkerService struct {
	deliveries  repository.DeliveryRepository
	campaigns   repository.CampaignRepository
	bindings    repository.BindingRepository
	consumer    queue.Consumer
	provider    provider.Client
	rateLimiter ratelimit.RateLimiter
	completion  CompletionRefresher
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	randIntn    func(n int) int
}

func NewWorkerService(
	deliveries repository.DeliveryRepository,
	campaigns repository.CampaignRepository,
	bindings repository.BindingRepository,
	consumer queue.Consumer,
	providerClient provider.Client,
	rateLimiter ratelimit.RateLimiter,
	completion CompletionRefresher,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if deliveries == nil || campaigns == nil || bindings == nil {
		return nil, fmt.Errorf("delivery, campaign, and binding repositories are required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if providerClient == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		deliveries:  deliveries,
		campaigns:   campaigns,
		bindings:    bindings,
		consumer:    consumer,
		provider:    providerClient,
		rateLimiter: rateLimiter,
		completion:  completion,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		randIntn:    rand.Intn,
	}, nil
}

// Start consumes the channel work queues until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DispatchMessage) error {
	logger := observability.WithContextLogger(s.logger, ctx)

	record, err := s.deliveries.LockForSending(ctx, msg.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("delivery record not found during lock, skipping",
				zap.String("recordId", msg.RecordID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock delivery record: %w", err)
	}

	// Nil means another consumer holds the claim or the record already
	// left the queue; ack and skip.
	if record == nil {
		return nil
	}

	batch, err := s.campaigns.GetByID(ctx, record.BatchID)
	if err != nil {
		return fmt.Errorf("failed to load campaign for record %s: %w", record.ID, err)
	}
	if batch.Status == domain.CampaignCancelled {
		// The cancel sweep only touches queued rows; a record claimed
		// here must be resolved by the worker holding the claim.
		if cancelErr := s.deliveries.MarkCancelled(ctx, record.ID); cancelErr != nil {
			logger.Error("failed to cancel claimed record",
				zap.String("recordId", record.ID),
				zap.Error(cancelErr),
			)
		}
		return nil
	}

	channelName := strings.ToLower(msg.Channel.String())
	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(channelName)
		defer s.metrics.DecWorkerInFlight(channelName)
	}

	binding, err := s.bindings.GetByID(ctx, batch.BindingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("template binding deleted, failing record",
				zap.String("recordId", record.ID),
				zap.String("bindingId", batch.BindingID),
			)
			return s.failRecord(ctx, record, channelName, "binding_deleted")
		}
		return fmt.Errorf("failed to load template binding: %w", err)
	}

	if err := s.rateLimiter.Wait(ctx, channelName); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	rules := routingCandidates(batch, binding)
	var sendErr error
	routesExhausted := true

	for _, rule := range rules {
		req := provider.SendRequest{
			RoutingRule:  rule,
			TemplateCode: binding.TemplateCode,
			TemplateKey:  binding.TemplateKey,
			Recipient:    record.Recipient,
			Params:       record.Params,
		}

		sendStart := s.now()
		resp, err := s.provider.Send(ctx, req)
		if s.metrics != nil {
			s.metrics.ObserveDispatchSendDuration(channelName, s.now().Sub(sendStart))
		}

		if err == nil {
			info := repository.SentInfo{
				RoutingRuleUsed:  rule,
				TemplateCodeUsed: templateIdentifier(binding),
				ProcessedAt:      s.now().UTC(),
			}
			if resp != nil {
				info.ProviderMessageID = resp.MessageID
				info.TelcoID = resp.TelcoID
				info.ChannelID = resp.ChannelID
				info.Charged = resp.Charged
			}
			if err := s.deliveries.MarkSent(ctx, record.ID, info); err != nil {
				return fmt.Errorf("failed to mark record sent: %w", err)
			}
			if s.metrics != nil {
				s.metrics.IncDispatchSent(channelName)
			}
			return nil
		}

		sendErr = err
		if provider.IsRouteUnusable(err) {
			logger.Info("routing rule unusable, trying next",
				zap.String("recordId", record.ID),
				zap.String("routingRule", rule),
				zap.Error(err),
			)
			continue
		}
		routesExhausted = false
		break
	}

	if routesExhausted {
		// Every declared route was unusable for this recipient; a retry
		// would walk the same list again.
		return s.failRecord(ctx, record, channelName, "route_exhausted")
	}

	isTransient := provider.IsTransient(sendErr)
	maxRetries := record.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	attemptNumber := record.RetryCount + 1
	if isTransient && attemptNumber < maxRetries {
		nextRetryAt := s.now().Add(s.computeRetryDelay(attemptNumber))
		if err := s.deliveries.UpdateForRetry(ctx, record.ID, nextRetryAt); err != nil {
			return fmt.Errorf("failed to update record for retry: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncRetryScheduled(channelName)
		}
		return nil
	}

	reason := "permanent_error"
	if isTransient {
		reason = "retry_exhausted"
	}
	return s.failRecord(ctx, record, channelName, reason)
}

func (s *WorkerService) failRecord(ctx context.Context, record *domain.DeliveryRecord, channelName, reason string) error {
	if err := s.deliveries.MarkFailed(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to mark record failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncDispatchFailed(channelName, reason)
	}

	if s.completion != nil {
		if err := s.completion.RefreshCompletion(ctx, record.BatchID); err != nil {
			observability.WithContextLogger(s.logger, ctx).Error("failed to refresh campaign completion",
				zap.String("batchId", record.BatchID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WorkerService) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

// routingCandidates returns the routes to try, in order. A campaign-level
// routing rule overrides the binding's list; direct-channel bindings have a
// single implicit route addressed by template key.
func routingCandidates(batch *domain.CampaignBatch, binding *domain.TemplateBinding) []string {
	if binding.Channel == domain.ChannelDirect {
		return []string{""}
	}
	if batch.RoutingRule != "" {
		return []string{batch.RoutingRule}
	}
	return binding.RoutingRules
}

func templateIdentifier(binding *domain.TemplateBinding) string {
	if binding.Channel == domain.ChannelDirect {
		return binding.TemplateKey
	}
	return binding.TemplateCode
}
