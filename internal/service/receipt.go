package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/observability"
	"github.com/clubops/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// ReceiptIngestor applies asynchronous provider receipts to delivery
// records. It only reflects reported state; it never re-dispatches.
type ReceiptIngestor struct {
	deliveries repository.DeliveryRepository
	completion CompletionRefresher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewReceiptIngestor(
	deliveries repository.DeliveryRepository,
	completion CompletionRefresher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ReceiptIngestor, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReceiptIngestor{
		deliveries: deliveries,
		completion: completion,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Ingest applies one receipt. Receipts for records this system does not know
// are logged and acknowledged; the provider must not be made to retry them.
// A duplicate receipt id leaves the record untouched.
func (s *ReceiptIngestor) Ingest(ctx context.Context, receipt domain.Receipt) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(receipt.ReceiptID) == "" {
		return fmt.Errorf("%w: receipt id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(receipt.ProviderMessageID) == "" &&
		(strings.TrimSpace(receipt.BatchID) == "" || strings.TrimSpace(receipt.Recipient) == "") {
		return fmt.Errorf("%w: receipt requires a provider message id or batch and recipient", domain.ErrValidation)
	}

	record, err := s.findRecord(ctx, receipt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("receipt for unknown record acknowledged",
				zap.String("receiptId", receipt.ReceiptID),
				zap.String("providerMessageId", receipt.ProviderMessageID),
				zap.String("batchId", receipt.BatchID),
			)
			s.metrics.IncReceipt("unknown")
			return nil
		}
		return fmt.Errorf("failed to locate delivery record for receipt: %w", err)
	}

	applied, err := s.deliveries.ApplyReceipt(ctx, record.ID, receipt)
	if err != nil {
		return fmt.Errorf("failed to apply receipt: %w", err)
	}
	if !applied {
		s.logger.Info("duplicate receipt ignored",
			zap.String("receiptId", receipt.ReceiptID),
			zap.String("recordId", record.ID),
		)
		s.metrics.IncReceipt("duplicate")
		return nil
	}

	s.metrics.IncReceipt("applied")

	if receipt.Outcome().IsTerminal() && s.completion != nil {
		if err := s.completion.RefreshCompletion(ctx, record.BatchID); err != nil {
			s.logger.Error("failed to refresh campaign completion after receipt",
				zap.String("batchId", record.BatchID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *ReceiptIngestor) findRecord(ctx context.Context, receipt domain.Receipt) (*domain.DeliveryRecord, error) {
	if providerMsgID := strings.TrimSpace(receipt.ProviderMessageID); providerMsgID != "" {
		record, err := s.deliveries.GetByProviderMessageID(ctx, providerMsgID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Fall through to the batch/recipient correlation when present.
	}

	batchID := strings.TrimSpace(receipt.BatchID)
	recipient := strings.TrimSpace(receipt.Recipient)
	if batchID == "" || recipient == "" {
		return nil, domain.ErrNotFound
	}

	return s.deliveries.GetLatestByBatchRecipient(ctx, batchID, recipient)
}
