package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// ReceiptIngestor applies one provider delivery callback.
type ReceiptIngestor interface {
	Ingest(ctx context.Context, receipt domain.Receipt) error
}

// ReceiptHandler is the provider-facing webhook. Receipts for unknown
// records return 200 so the provider stops retrying them.
type ReceiptHandler struct {
	ingestor ReceiptIngestor
}

func NewReceiptHandler(ingestor ReceiptIngestor) (*ReceiptHandler, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("receipt ingestor is required")
	}
	return &ReceiptHandler{ingestor: ingestor}, nil
}

func RegisterReceiptRoutes(router fiber.Router, ingestor ReceiptIngestor) error {
	h, err := NewReceiptHandler(ingestor)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/receipts", h.IngestReceipt)

	return nil
}

type receiptRequest struct {
	ReceiptID         string  `json:"receiptId"`
	ProviderMessageID string  `json:"providerMessageId,omitempty"`
	BatchID           string  `json:"batchId,omitempty"`
	Recipient         string  `json:"recipient,omitempty"`
	StatusCode        int     `json:"statusCode"`
	TelcoID           string  `json:"telcoId,omitempty"`
	ChannelID         string  `json:"channelId,omitempty"`
	ReportedAt        *string `json:"reportedAt,omitempty"`
}

func (h *ReceiptHandler) IngestReceipt(c *fiber.Ctx) error {
	var req receiptRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	reportedAt := time.Now().UTC()
	if req.ReportedAt != nil {
		parsed, err := parseOptionalRFC3339(req.ReportedAt, "reportedAt")
		if err != nil {
			return toHTTPError(err)
		}
		if parsed != nil {
			reportedAt = *parsed
		}
	}

	receipt := domain.Receipt{
		ReceiptID:         strings.TrimSpace(req.ReceiptID),
		ProviderMessageID: strings.TrimSpace(req.ProviderMessageID),
		BatchID:           strings.TrimSpace(req.BatchID),
		Recipient:         strings.TrimSpace(req.Recipient),
		StatusCode:        req.StatusCode,
		TelcoID:           strings.TrimSpace(req.TelcoID),
		ChannelID:         strings.TrimSpace(req.ChannelID),
		ReportedAt:        reportedAt,
	}

	if err := h.ingestor.Ingest(c.UserContext(), receipt); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "accepted",
	})
}
