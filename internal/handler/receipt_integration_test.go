package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func TestReceiptIntegration_IngestReceipt(t *testing.T) {
	t.Parallel()

	var captured domain.Receipt
	ingestor := &stubReceiptIngestor{
		ingestFn: func(ctx context.Context, receipt domain.Receipt) error {
			captured = receipt
			return nil
		},
	}

	app := newReceiptTestApp(t, ingestor)

	body := `{"receiptId":"r-1","providerMessageId":"pm-77","statusCode":1,"telcoId":"op-3","reportedAt":"2026-03-01T10:05:00Z"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/receipts", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed["status"] != "accepted" {
		t.Fatalf("status = %v, want accepted", parsed["status"])
	}

	if captured.ReceiptID != "r-1" {
		t.Fatalf("ReceiptID = %q, want r-1", captured.ReceiptID)
	}
	if captured.ProviderMessageID != "pm-77" {
		t.Fatalf("ProviderMessageID = %q, want pm-77", captured.ProviderMessageID)
	}
	if captured.StatusCode != 1 {
		t.Fatalf("StatusCode = %d, want 1", captured.StatusCode)
	}
	expectedReportedAt, _ := time.Parse(time.RFC3339, "2026-03-01T10:05:00Z")
	if !captured.ReportedAt.Equal(expectedReportedAt) {
		t.Fatalf("ReportedAt = %v, want %v", captured.ReportedAt, expectedReportedAt)
	}
}

func TestReceiptIntegration_IngestReceiptDefaultsReportedAt(t *testing.T) {
	t.Parallel()

	var captured domain.Receipt
	ingestor := &stubReceiptIngestor{
		ingestFn: func(ctx context.Context, receipt domain.Receipt) error {
			captured = receipt
			return nil
		},
	}

	app := newReceiptTestApp(t, ingestor)

	body := `{"receiptId":"r-2","batchId":"batch-1","recipient":"+905551112233","statusCode":0}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/receipts", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if captured.ReportedAt.IsZero() {
		t.Fatal("ReportedAt should default to the ingest time")
	}
	if captured.BatchID != "batch-1" || captured.Recipient != "+905551112233" {
		t.Fatalf("correlation fields = (%q, %q), want (batch-1, +905551112233)", captured.BatchID, captured.Recipient)
	}
}

func TestReceiptIntegration_IngestReceiptValidation(t *testing.T) {
	t.Parallel()

	ingestor := &stubReceiptIngestor{
		ingestFn: func(ctx context.Context, receipt domain.Receipt) error {
			return domain.ErrValidation
		},
	}

	app := newReceiptTestApp(t, ingestor)

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/receipts", `{"statusCode":1}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/receipts", `{"receiptId":"r-1","reportedAt":"nope"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid reportedAt", resp.StatusCode)
	}
}

type stubReceiptIngestor struct {
	ingestFn func(ctx context.Context, receipt domain.Receipt) error
}

func (s *stubReceiptIngestor) Ingest(ctx context.Context, receipt domain.Receipt) error {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, receipt)
	}
	return nil
}

func newReceiptTestApp(t *testing.T, ingestor ReceiptIngestor) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterReceiptRoutes(app, ingestor); err != nil {
		t.Fatalf("RegisterReceiptRoutes() error = %v", err)
	}

	return app
}
