package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

type CampaignService interface {
	CreateCampaign(ctx context.Context, batch *domain.CampaignBatch) (*domain.CampaignBatch, error)
	GetCampaign(ctx context.Context, id string) (*domain.CampaignBatch, error)
	GetSummary(ctx context.Context, id string) (*service.CampaignSummary, error)
	ListCampaigns(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error)
	Expand(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, at time.Time) error
}

type CampaignHandler struct {
	service CampaignService
}

func NewCampaignHandler(service CampaignService) (*CampaignHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{service: service}, nil
}

func RegisterCampaignRoutes(router fiber.Router, service CampaignService) error {
	h, err := NewCampaignHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Get("/campaigns", h.ListCampaigns)
	v1.Get("/campaigns/:id", h.GetCampaign)
	v1.Post("/campaigns/:id/expand", h.ExpandCampaign)
	v1.Post("/campaigns/:id/cancel", h.CancelCampaign)
	v1.Post("/campaigns/:id/reschedule", h.RescheduleCampaign)

	return nil
}

type createCampaignRequest struct {
	Name        string   `json:"name"`
	BindingID   string   `json:"bindingId"`
	RoutingRule string   `json:"routingRule,omitempty"`
	Recipients  []string `json:"recipients"`
	ScheduledAt *string  `json:"scheduledAt,omitempty"`
}

type rescheduleCampaignRequest struct {
	ScheduledAt string `json:"scheduledAt"`
}

type campaignResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	BindingID       string     `json:"bindingId"`
	RoutingRule     string     `json:"routingRule,omitempty"`
	Status          string     `json:"status"`
	Total           int        `json:"total"`
	TotalSuccess    int        `json:"totalSuccess"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	PrevScheduledAt *time.Time `json:"prevScheduledAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
}

type campaignSummaryResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	Total        int               `json:"total"`
	TotalSuccess int               `json:"totalSuccess"`
	Counts       []statusCountItem `json:"counts"`
}

type statusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type listCampaignsResponse struct {
	Data []campaignResponse `json:"data"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	scheduledAt, err := parseOptionalRFC3339(req.ScheduledAt, "scheduledAt")
	if err != nil {
		return toHTTPError(err)
	}

	batch := &domain.CampaignBatch{
		Name:        strings.TrimSpace(req.Name),
		BindingID:   strings.TrimSpace(req.BindingID),
		RoutingRule: strings.TrimSpace(req.RoutingRule),
		Recipients:  req.Recipients,
		ScheduledAt: scheduledAt,
	}

	created, err := h.service.CreateCampaign(c.UserContext(), batch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toCampaignResponse(created))
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	summary, err := h.service.GetSummary(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]statusCountItem, 0, len(summary.Counts))
	for _, count := range summary.Counts {
		items = append(items, statusCountItem{
			Status: count.Status.String(),
			Count:  count.Count,
		})
	}

	return c.Status(fiber.StatusOK).JSON(campaignSummaryResponse{
		ID:           summary.BatchID,
		Name:         summary.Name,
		Status:       summary.Status.String(),
		Total:        summary.Total,
		TotalSuccess: summary.TotalSuccess,
		Counts:       items,
	})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	var status *domain.CampaignStatus
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		parsed, err := domain.ParseCampaignStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		status = &parsed
	}

	campaigns, err := h.service.ListCampaigns(c.UserContext(), status)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		data = append(data, toCampaignResponse(&campaigns[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listCampaignsResponse{Data: data})
}

// ExpandCampaign forces expansion without waiting for the schedule scan.
// Safe to call repeatedly; record creation deduplicates per recipient.
func (h *CampaignHandler) ExpandCampaign(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Expand(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"campaignId": id,
	})
}

func (h *CampaignHandler) CancelCampaign(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Cancel(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"campaignId": id,
		"status":     domain.CampaignCancelled.String(),
	})
}

func (h *CampaignHandler) RescheduleCampaign(c *fiber.Ctx) error {
	var req rescheduleCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	at, err := parseOptionalRFC3339(&req.ScheduledAt, "scheduledAt")
	if err != nil {
		return toHTTPError(err)
	}
	if at == nil {
		return toHTTPError(fmt.Errorf("%w: scheduledAt is required", domain.ErrValidation))
	}

	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Reschedule(c.UserContext(), id, *at); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"campaignId":  id,
		"scheduledAt": at,
	})
}

func parseOptionalRFC3339(value *string, field string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toCampaignResponse(batch *domain.CampaignBatch) campaignResponse {
	if batch == nil {
		return campaignResponse{}
	}

	return campaignResponse{
		ID:              batch.ID,
		Name:            batch.Name,
		BindingID:       batch.BindingID,
		RoutingRule:     batch.RoutingRule,
		Status:          batch.Status.String(),
		Total:           batch.Total,
		TotalSuccess:    batch.TotalSuccess,
		ScheduledAt:     batch.ScheduledAt,
		PrevScheduledAt: batch.PrevScheduledAt,
		CreatedAt:       batch.CreatedAt,
		UpdatedAt:       batch.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
