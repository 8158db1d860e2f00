package api

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"vigil-go/internal/domain"
	"vigil-go/internal/engine"
	"vigil-go/internal/hook"
	"vigil-go/internal/lifecycle"
	"vigil-go/internal/store"
)

// AlertHandler handles HTTP requests for alert operations.
type AlertHandler struct {
	engine         *engine.Service
	defaultTimeout int
	logger         *slog.Logger
}

// NewAlertHandler creates a new alert handler. The default timeout is applied
// to inbound alerts that leave the field unset; an explicit zero disables
// auto-expiry.
func NewAlertHandler(svc *engine.Service, defaultTimeout int, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		engine:         svc,
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// receiveAlertRequest is the inbound alert payload.
type receiveAlertRequest struct {
	Environment string         `json:"environment"`
	Resource    string         `json:"resource"`
	Event       string         `json:"event"`
	Severity    string         `json:"severity"`
	Correlate   []string       `json:"correlate"`
	Status      string         `json:"status"`
	Value       string         `json:"value"`
	Text        string         `json:"text"`
	Group       string         `json:"group"`
	Origin      string         `json:"origin"`
	Service     []string       `json:"service"`
	Tags        []string       `json:"tags"`
	Attributes  map[string]any `json:"attributes"`
	Customer    string         `json:"customer"`
	Timeout     *int           `json:"timeout"`
	CreateTime  *time.Time     `json:"createTime"`
}

// receiveAlertResponse carries the post-write record and how it was classified.
type receiveAlertResponse struct {
	Alert   *domain.Alert `json:"alert"`
	Outcome string        `json:"outcome"`
}

// actionRequest is the payload for operator actions on an alert.
type actionRequest struct {
	Action  string `json:"action"`
	Text    string `json:"text"`
	Timeout *int   `json:"timeout"`
}

// Receive handles POST /v1/alerts
// Ingests one alert through the full pipeline.
func (h *AlertHandler) Receive(c *fiber.Ctx) error {
	var req receiveAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	alert := &domain.Alert{
		Environment: req.Environment,
		Resource:    req.Resource,
		Event:       req.Event,
		Severity:    domain.Severity(req.Severity),
		Correlate:   req.Correlate,
		Status:      domain.Status(req.Status),
		Value:       req.Value,
		Text:        req.Text,
		Group:       req.Group,
		Origin:      req.Origin,
		Service:     req.Service,
		Tags:        req.Tags,
		Attributes:  req.Attributes,
		Customer:    req.Customer,
	}
	if req.Timeout != nil {
		alert.Timeout = *req.Timeout
	} else {
		alert.Timeout = h.defaultTimeout
	}
	if req.CreateTime != nil {
		alert.CreateTime = *req.CreateTime
	}

	stored, outcome, err := h.engine.Receive(c.Context(), alert)
	if err != nil {
		return h.mapReceiveError(c, err)
	}

	resp := receiveAlertResponse{Alert: stored, Outcome: string(outcome)}
	if outcome == engine.OutcomeCreated {
		return Created(c, resp)
	}
	return Success(c, resp)
}

// List handles GET /v1/alerts
// Returns alerts matching query parameters, newest first.
func (h *AlertHandler) List(c *fiber.Ctx) error {
	filter := domain.AlertFilter{
		Environment: c.Query("environment"),
		Resource:    c.Query("resource"),
		Customer:    c.Query("customer"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = domain.Status(status)
	}
	if severity := c.Query("severity"); severity != "" {
		filter.Severity = domain.Severity(severity)
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	alerts, err := h.engine.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		return InternalError(c, "failed to list alerts")
	}
	return Success(c, alerts)
}

// GetByID handles GET /v1/alerts/:id
// The id may be a full id or a unique short-id prefix.
func (h *AlertHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	alert, err := h.engine.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to get alert", "id", id, "error", err)
		return InternalError(c, "failed to get alert")
	}
	return Success(c, alert)
}

// Action handles PUT /v1/alerts/:id/action
// Applies an operator action to an alert.
func (h *AlertHandler) Action(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	action := domain.Action(req.Action)
	if !action.IsValid() {
		return ValidationError(c, "action is not a recognized action")
	}

	alert, err := h.engine.Action(c.Context(), id, action, req.Text, req.Timeout)
	if err != nil {
		var invalid *lifecycle.InvalidActionError
		switch {
		case errors.Is(err, domain.ErrAlertNotFound):
			return NotFound(c, "alert not found")
		case errors.As(err, &invalid):
			return InvalidAction(c, invalid.Error())
		case errors.Is(err, store.ErrConflict):
			return Conflict(c, "alert was modified concurrently, retry")
		case errors.Is(err, store.ErrUnavailable):
			return Unavailable(c, "storage unavailable")
		default:
			h.logger.Error("failed to apply action", "id", id, "action", action, "error", err)
			return InternalError(c, "failed to apply action")
		}
	}
	return Success(c, alert)
}

// Delete handles DELETE /v1/alerts/:id
// Permanently removes an alert.
func (h *AlertHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.engine.Delete(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return NotFound(c, "alert not found")
		}
		h.logger.Error("failed to delete alert", "id", id, "error", err)
		return InternalError(c, "failed to delete alert")
	}
	return NoContent(c)
}

// mapReceiveError translates pipeline errors to HTTP responses.
func (h *AlertHandler) mapReceiveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return ValidationError(c, err.Error())
	case hook.IsReject(err):
		return Rejected(c, err.Error())
	case errors.Is(err, store.ErrConflict):
		return Conflict(c, "alert was modified concurrently, retry")
	case errors.Is(err, store.ErrUnavailable):
		return Unavailable(c, "storage unavailable")
	default:
		h.logger.Error("failed to receive alert", "error", err)
		return InternalError(c, "failed to receive alert")
	}
}
