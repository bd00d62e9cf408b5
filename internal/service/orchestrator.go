package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/observability"
	"github.com/clubops/notify-engine/internal/queue"
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 5
	maxCampaignSize   = 10000
)

// ParamResolver resolves a logical source column for a set of equality
// filters. A miss is reported via the boolean, not an error.
type ParamResolver interface {
	Resolve(ctx context.Context, table, column string, filters map[string]string) (string, bool, error)
}

// DispatchOrchestrator coordinates campaign expansion: it freezes parameter
// payloads, creates delivery records, and hands them to the channel queues.
type DispatchOrchestrator struct {
	bindings   repository.BindingRepository
	campaigns  repository.CampaignRepository
	deliveries repository.DeliveryRepository
	resolver   ParamResolver
	publisher  queue.Publisher
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

// CampaignSummary is the read model for one campaign's progress.
type CampaignSummary struct {
	BatchID      string
	Name         string
	Status       domain.CampaignStatus
	Total        int
	TotalSuccess int
	Counts       []repository.StatusCount
}

func NewDispatchOrchestrator(
	bindings repository.BindingRepository,
	campaigns repository.CampaignRepository,
	deliveries repository.DeliveryRepository,
	resolver ParamResolver,
	publisher queue.Publisher,
	maxRetries int,
	logger *zap.Logger,
) (*DispatchOrchestrator, error) {
	if bindings == nil || campaigns == nil || deliveries == nil {
		return nil, fmt.Errorf("binding, campaign, and delivery repositories are required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("parameter resolver is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchOrchestrator{
		bindings:   bindings,
		campaigns:  campaigns,
		deliveries: deliveries,
		resolver:   resolver,
		publisher:  publisher,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// CreateCampaign persists a pending campaign and expands it immediately when
// its schedule time is absent or already past.
func (s *DispatchOrchestrator) CreateCampaign(ctx context.Context, batch *domain.CampaignBatch) (*domain.CampaignBatch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}

	prepareCampaignForCreate(batch)
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if len(batch.Recipients) > maxCampaignSize {
		return nil, fmt.Errorf("%w: campaign size exceeds %d", domain.ErrValidation, maxCampaignSize)
	}

	binding, err := s.bindings.GetByID(ctx, batch.BindingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template binding: %w", err)
	}
	if !binding.Enabled {
		return nil, fmt.Errorf("%w: template binding %s is disabled", domain.ErrValidation, binding.ID)
	}

	if err := s.campaigns.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	if shouldExpandImmediately(batch.ScheduledAt, s.now().UTC()) {
		if err := s.Expand(ctx, batch.ID); err != nil {
			return nil, fmt.Errorf("campaign created but expansion failed: %w", err)
		}
		refreshed, err := s.campaigns.GetByID(ctx, batch.ID)
		if err == nil {
			*batch = *refreshed
		}
	}

	return batch, nil
}

// Expand moves a pending campaign to running and creates one queued delivery
// record per recipient with the parameter payload frozen at this moment.
// Re-running an expansion is safe: record creation deduplicates on
// (batch, recipient), and already-claimed running campaigns continue from
// wherever the previous pass stopped.
func (s *DispatchOrchestrator) Expand(ctx context.Context, batchID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	batch, err := s.campaigns.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}
	if batch.Status.IsTerminal() {
		return nil
	}

	if batch.Status == domain.CampaignPending {
		claimed, err := s.campaigns.MarkRunning(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("failed to mark campaign running: %w", err)
		}
		if !claimed {
			batch, err = s.campaigns.GetByID(ctx, batchID)
			if err != nil {
				return fmt.Errorf("failed to reload campaign: %w", err)
			}
			if batch.Status != domain.CampaignRunning {
				return nil
			}
		}
	}

	binding, err := s.bindings.GetByID(ctx, batch.BindingID)
	if err != nil {
		return fmt.Errorf("failed to load template binding: %w", err)
	}
	if err := binding.Validate(); err != nil {
		return fmt.Errorf("template binding %s is misconfigured: %w", binding.ID, err)
	}

	records := make([]*domain.DeliveryRecord, 0, len(batch.Recipients))
	for _, recipient := range batch.Recipients {
		payload, err := s.BuildParameterPayload(ctx, binding, map[string]string{"recipient": recipient})
		if err != nil {
			return fmt.Errorf("failed to build payload for %s: %w", recipient, err)
		}

		records = append(records, &domain.DeliveryRecord{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			Recipient:   recipient,
			Params:      payload,
			Status:      domain.DeliveryQueued,
			MaxRetries:  s.maxRetries,
			ScheduledAt: batch.ScheduledAt,
		})
	}

	if err := s.deliveries.CreateBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to create delivery records: %w", err)
	}

	// Publish from the persisted rows, not the slice above: on a re-run the
	// conflicting inserts were skipped and the surviving row ids differ.
	persisted, err := s.deliveries.ListByBatch(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("failed to list delivery records: %w", err)
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	published := 0
	for i := range persisted {
		record := persisted[i]
		if record.Status != domain.DeliveryQueued || record.NextRetryAt != nil {
			continue
		}

		msg := queue.DispatchMessage{
			RecordID:      record.ID,
			BatchID:       record.BatchID,
			CorrelationID: correlationID,
			Channel:       binding.Channel,
		}
		if err := s.publisher.Publish(ctx, queue.QueueName(binding.Channel), msg); err != nil {
			s.logger.Error("failed to publish delivery record",
				zap.String("recordId", record.ID),
				zap.String("batchId", record.BatchID),
				zap.Error(err),
			)
			// Hand the record to the retry scanner instead of leaving it
			// queued with no way back into the pipeline. The provider was
			// never attempted, so the retry budget is not consumed.
			if retryErr := s.deliveries.ScheduleRepublish(ctx, record.ID, s.now().UTC()); retryErr != nil {
				s.logger.Error("failed to schedule record for re-publish",
					zap.String("recordId", record.ID),
					zap.Error(retryErr),
				)
			}
			continue
		}
		published++
	}

	s.logger.Info("campaign expanded",
		zap.String("batchId", batch.ID),
		zap.Int("recipients", len(batch.Recipients)),
		zap.Int("published", published),
	)
	return nil
}

// BuildParameterPayload fills every declared parameter, in declared order.
// A resolver hit wins, then the binding's default value, then empty string.
// Only a backing store failure aborts the build.
func (s *DispatchOrchestrator) BuildParameterPayload(
	ctx context.Context,
	binding *domain.TemplateBinding,
	filters map[string]string,
) (map[string]string, error) {
	payload := make(map[string]string, len(binding.Params))
	for _, param := range binding.Params {
		value := param.DefaultValue
		if param.SourceTable != "" && param.SourceColumn != "" {
			resolved, found, err := s.resolver.Resolve(ctx, param.SourceTable, param.SourceColumn, filters)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve parameter %q: %w", param.Name, err)
			}
			if found {
				value = resolved
			}
		}
		payload[param.Name] = value
	}
	return payload, nil
}

// RefreshCompletion marks the campaign done once every delivery record has
// reached a terminal status. totalSuccess is the count of delivered records.
func (s *DispatchOrchestrator) RefreshCompletion(ctx context.Context, batchID string) error {
	counts, err := s.deliveries.GetBatchStatusCounts(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load delivery status counts: %w", err)
	}
	if len(counts) == 0 {
		return nil
	}

	delivered := 0
	for _, count := range counts {
		if !count.Status.IsTerminal() {
			return nil
		}
		if count.Status == domain.DeliveryDelivered {
			delivered = count.Count
		}
	}

	done, err := s.campaigns.MarkDone(ctx, batchID, delivered)
	if err != nil {
		return fmt.Errorf("failed to mark campaign done: %w", err)
	}
	if done {
		s.logger.Info("campaign completed",
			zap.String("batchId", batchID),
			zap.Int("delivered", delivered),
		)
	}
	return nil
}

// Cancel aborts a pending or running campaign. Records already handed to the
// provider keep their status; only still-queued records are suppressed.
func (s *DispatchOrchestrator) Cancel(ctx context.Context, batchID string) error {
	if strings.TrimSpace(batchID) == "" {
		return fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	if err := s.campaigns.Cancel(ctx, batchID); err != nil {
		return err
	}

	cancelled, err := s.deliveries.CancelQueuedByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("campaign cancelled but queued records were not suppressed: %w", err)
	}

	s.logger.Info("campaign cancelled",
		zap.String("batchId", batchID),
		zap.Int64("suppressedRecords", cancelled),
	)
	return nil
}

// Reschedule moves a pending campaign's process time; the previous schedule
// is retained for audit.
func (s *DispatchOrchestrator) Reschedule(ctx context.Context, batchID string, at time.Time) error {
	if strings.TrimSpace(batchID) == "" {
		return fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}
	return s.campaigns.Reschedule(ctx, batchID, at)
}

func (s *DispatchOrchestrator) GetCampaign(ctx context.Context, batchID string) (*domain.CampaignBatch, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}
	return s.campaigns.GetByID(ctx, strings.TrimSpace(batchID))
}

func (s *DispatchOrchestrator) GetSummary(ctx context.Context, batchID string) (*CampaignSummary, error) {
	batch, err := s.GetCampaign(ctx, batchID)
	if err != nil {
		return nil, err
	}

	counts, err := s.deliveries.GetBatchStatusCounts(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	return &CampaignSummary{
		BatchID:      batch.ID,
		Name:         batch.Name,
		Status:       batch.Status,
		Total:        batch.Total,
		TotalSuccess: batch.TotalSuccess,
		Counts:       counts,
	}, nil
}

func (s *DispatchOrchestrator) ListCampaigns(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error) {
	return s.campaigns.List(ctx, status)
}

func prepareCampaignForCreate(batch *domain.CampaignBatch) {
	batch.ID = strings.TrimSpace(batch.ID)
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	batch.Name = strings.TrimSpace(batch.Name)
	batch.BindingID = strings.TrimSpace(batch.BindingID)
	batch.RoutingRule = strings.TrimSpace(batch.RoutingRule)

	seen := make(map[string]struct{}, len(batch.Recipients))
	recipients := make([]string, 0, len(batch.Recipients))
	for _, recipient := range batch.Recipients {
		trimmed := strings.TrimSpace(recipient)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		recipients = append(recipients, trimmed)
	}
	batch.Recipients = recipients

	batch.Status = domain.CampaignPending
	batch.Total = len(recipients)
	batch.TotalSuccess = 0
	batch.UpdateCount = 0
	batch.PrevScheduledAt = nil
}

func shouldExpandImmediately(scheduledAt *time.Time, now time.Time) bool {
	if scheduledAt == nil {
		return true
	}
	return !scheduledAt.After(now)
}
