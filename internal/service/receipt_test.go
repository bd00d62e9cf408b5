package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
)

func deliveredReceipt() domain.Receipt {
	return domain.Receipt{
		ReceiptID:         "rcpt-1",
		ProviderMessageID: "prov-msg-1",
		StatusCode:        1,
		TelcoID:           "telco-7",
		ReportedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReceiptIngestAppliesByProviderMessageID(t *testing.T) {
	t.Parallel()

	applied := false
	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			if providerMsgID != "prov-msg-1" {
				t.Fatalf("provider message id = %s, want prov-msg-1", providerMsgID)
			}
			return &domain.DeliveryRecord{ID: "rec-1", BatchID: "batch-1", Status: domain.DeliverySent}, nil
		},
		applyReceiptFn: func(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
			if recordID != "rec-1" {
				t.Fatalf("record id = %s, want rec-1", recordID)
			}
			applied = true
			return true, nil
		},
	}

	completion := &fakeCompletionRefresher{}
	svc, err := NewReceiptIngestor(deliveries, completion, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	if err := svc.Ingest(context.Background(), deliveredReceipt()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !applied {
		t.Fatal("expected receipt to be applied")
	}
	if completion.calls != 1 {
		t.Fatalf("completion refreshed %d times, want 1", completion.calls)
	}
}

func TestReceiptIngestFallsBackToBatchRecipient(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			return nil, domain.ErrNotFound
		},
		getLatestByBatchRecipientFn: func(ctx context.Context, batchID, recipient string) (*domain.DeliveryRecord, error) {
			if batchID != "batch-1" || recipient != "+84901" {
				t.Fatalf("lookup = (%s, %s), want (batch-1, +84901)", batchID, recipient)
			}
			return &domain.DeliveryRecord{ID: "rec-1", BatchID: batchID, Status: domain.DeliverySent}, nil
		},
	}

	svc, err := NewReceiptIngestor(deliveries, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	receipt := deliveredReceipt()
	receipt.BatchID = "batch-1"
	receipt.Recipient = "+84901"

	if err := svc.Ingest(context.Background(), receipt); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

func TestReceiptIngestUnknownRecordAcknowledged(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			return nil, domain.ErrNotFound
		},
		applyReceiptFn: func(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
			t.Fatal("nothing should be applied for an unknown record")
			return false, nil
		},
	}

	svc, err := NewReceiptIngestor(deliveries, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	if err := svc.Ingest(context.Background(), deliveredReceipt()); err != nil {
		t.Fatalf("Ingest() error = %v, want nil ack for unknown record", err)
	}
}

func TestReceiptIngestDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			return &domain.DeliveryRecord{ID: "rec-1", BatchID: "batch-1", Status: domain.DeliveryDelivered}, nil
		},
		applyReceiptFn: func(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
			return false, nil
		},
	}

	completion := &fakeCompletionRefresher{}
	svc, err := NewReceiptIngestor(deliveries, completion, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	if err := svc.Ingest(context.Background(), deliveredReceipt()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if completion.calls != 0 {
		t.Fatal("duplicate receipt should not trigger a completion refresh")
	}
}

func TestReceiptIngestSentOutcomeDoesNotRefreshCompletion(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			return &domain.DeliveryRecord{ID: "rec-1", BatchID: "batch-1", Status: domain.DeliverySent}, nil
		},
	}

	completion := &fakeCompletionRefresher{}
	svc, err := NewReceiptIngestor(deliveries, completion, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	receipt := deliveredReceipt()
	receipt.StatusCode = 0

	if err := svc.Ingest(context.Background(), receipt); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if completion.calls != 0 {
		t.Fatal("sent outcome is not terminal and should not refresh completion")
	}
}

func TestReceiptIngestRejectsMissingReceiptID(t *testing.T) {
	t.Parallel()

	svc, err := NewReceiptIngestor(&fakeDeliveryRepo{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	receipt := deliveredReceipt()
	receipt.ReceiptID = ""

	if err := svc.Ingest(context.Background(), receipt); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Ingest() error = %v, want ErrValidation", err)
	}
}

func TestReceiptIngestRejectsUncorrelatableReceipt(t *testing.T) {
	t.Parallel()

	svc, err := NewReceiptIngestor(&fakeDeliveryRepo{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	receipt := domain.Receipt{ReceiptID: "rcpt-1", StatusCode: 1}

	if err := svc.Ingest(context.Background(), receipt); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Ingest() error = %v, want ErrValidation", err)
	}
}

func TestReceiptIngestStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	deliveries := &fakeDeliveryRepo{
		getByProviderMessageIDFn: func(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
			return &domain.DeliveryRecord{ID: "rec-1", BatchID: "batch-1"}, nil
		},
		applyReceiptFn: func(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
			return false, errors.New("deadlock detected")
		},
	}

	svc, err := NewReceiptIngestor(deliveries, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReceiptIngestor() error = %v", err)
	}

	if err := svc.Ingest(context.Background(), deliveredReceipt()); err == nil {
		t.Fatal("Ingest() expected error for store failure, got nil")
	}
}
