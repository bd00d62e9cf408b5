package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/repository"
	"github.com/gofiber/fiber/v2"
)

// BindingHandler exposes the template binding configuration surface. The
// dispatch core only ever consumes a validated binding by id.
type BindingHandler struct {
	bindings repository.BindingRepository
}

func NewBindingHandler(bindings repository.BindingRepository) (*BindingHandler, error) {
	if bindings == nil {
		return nil, fmt.Errorf("binding repository is required")
	}
	return &BindingHandler{bindings: bindings}, nil
}

func RegisterBindingRoutes(router fiber.Router, bindings repository.BindingRepository) error {
	h, err := NewBindingHandler(bindings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/bindings", h.CreateBinding)
	v1.Get("/bindings", h.ListBindings)
	v1.Get("/bindings/:id", h.GetBinding)
	v1.Put("/bindings/:id", h.UpdateBinding)
	v1.Delete("/bindings/:id", h.DeleteBinding)

	return nil
}

type paramBindingItem struct {
	Name         string `json:"name"`
	DefaultValue string `json:"defaultValue,omitempty"`
	SourceTable  string `json:"sourceTable,omitempty"`
	SourceColumn string `json:"sourceColumn,omitempty"`
}

type bindingRequest struct {
	Trigger      string             `json:"trigger"`
	Enabled      *bool              `json:"enabled,omitempty"`
	Condition    string             `json:"condition,omitempty"`
	Channel      string             `json:"channel"`
	RoutingRules []string           `json:"routingRules,omitempty"`
	TemplateCode string             `json:"templateCode,omitempty"`
	TemplateKey  string             `json:"templateKey,omitempty"`
	Params       []paramBindingItem `json:"params,omitempty"`
}

type bindingResponse struct {
	ID           string             `json:"id"`
	Trigger      string             `json:"trigger"`
	Enabled      bool               `json:"enabled"`
	Condition    string             `json:"condition,omitempty"`
	Channel      string             `json:"channel"`
	RoutingRules []string           `json:"routingRules,omitempty"`
	TemplateCode string             `json:"templateCode,omitempty"`
	TemplateKey  string             `json:"templateKey,omitempty"`
	Params       []paramBindingItem `json:"params"`
	CreatedAt    time.Time          `json:"createdAt,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt,omitempty"`
}

type listBindingsResponse struct {
	Data []bindingResponse `json:"data"`
}

func (h *BindingHandler) CreateBinding(c *fiber.Ctx) error {
	var req bindingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	binding, err := requestToDomainBinding(req)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.bindings.Create(c.UserContext(), &binding); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBindingResponse(&binding))
}

func (h *BindingHandler) GetBinding(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	binding, err := h.bindings.GetByID(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBindingResponse(binding))
}

func (h *BindingHandler) ListBindings(c *fiber.Ctx) error {
	bindings, err := h.bindings.List(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]bindingResponse, 0, len(bindings))
	for i := range bindings {
		data = append(data, toBindingResponse(&bindings[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBindingsResponse{Data: data})
}

func (h *BindingHandler) UpdateBinding(c *fiber.Ctx) error {
	var req bindingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	binding, err := requestToDomainBinding(req)
	if err != nil {
		return toHTTPError(err)
	}
	binding.ID = strings.TrimSpace(c.Params("id"))

	if err := h.bindings.Update(c.UserContext(), &binding); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBindingResponse(&binding))
}

// DeleteBinding removes the configuration. Delivery records created from it
// keep their snapshotted payloads; only future dispatch is invalidated.
func (h *BindingHandler) DeleteBinding(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.bindings.Delete(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func requestToDomainBinding(req bindingRequest) (domain.TemplateBinding, error) {
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return domain.TemplateBinding{}, err
	}

	params := make([]domain.ParamBinding, 0, len(req.Params))
	for _, item := range req.Params {
		params = append(params, domain.ParamBinding{
			Name:         strings.TrimSpace(item.Name),
			DefaultValue: item.DefaultValue,
			SourceTable:  strings.TrimSpace(item.SourceTable),
			SourceColumn: strings.TrimSpace(item.SourceColumn),
		})
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	binding := domain.TemplateBinding{
		Trigger:      strings.TrimSpace(req.Trigger),
		Enabled:      enabled,
		Condition:    strings.TrimSpace(req.Condition),
		Channel:      channel,
		RoutingRules: req.RoutingRules,
		TemplateCode: strings.TrimSpace(req.TemplateCode),
		TemplateKey:  strings.TrimSpace(req.TemplateKey),
		Params:       params,
	}

	if err := binding.Validate(); err != nil {
		return domain.TemplateBinding{}, err
	}

	return binding, nil
}

func toBindingResponse(binding *domain.TemplateBinding) bindingResponse {
	if binding == nil {
		return bindingResponse{}
	}

	params := make([]paramBindingItem, 0, len(binding.Params))
	for _, param := range binding.Params {
		params = append(params, paramBindingItem{
			Name:         param.Name,
			DefaultValue: param.DefaultValue,
			SourceTable:  param.SourceTable,
			SourceColumn: param.SourceColumn,
		})
	}

	return bindingResponse{
		ID:           binding.ID,
		Trigger:      binding.Trigger,
		Enabled:      binding.Enabled,
		Condition:    binding.Condition,
		Channel:      binding.Channel.String(),
		RoutingRules: binding.RoutingRules,
		TemplateCode: binding.TemplateCode,
		TemplateKey:  binding.TemplateKey,
		Params:       params,
		CreatedAt:    binding.CreatedAt,
		UpdatedAt:    binding.UpdatedAt,
	}
}
