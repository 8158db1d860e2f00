package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"vigil-go/internal/domain"
	"vigil-go/internal/store"
)

// defaultSuppressionDuration applies when a window has no end time.
const defaultSuppressionDuration = time.Hour

// SuppressionHandler handles HTTP requests for blackout windows.
type SuppressionHandler struct {
	suppressions store.SuppressionStore
	logger       *slog.Logger
}

// NewSuppressionHandler creates a new suppression handler.
func NewSuppressionHandler(suppressions store.SuppressionStore, logger *slog.Logger) *SuppressionHandler {
	return &SuppressionHandler{
		suppressions: suppressions,
		logger:       logger,
	}
}

// createSuppressionRequest is the payload for creating a blackout window.
type createSuppressionRequest struct {
	Environment string     `json:"environment"`
	Resource    string     `json:"resource"`
	Event       string     `json:"event"`
	Group       string     `json:"group"`
	Tags        []string   `json:"tags"`
	Customer    string     `json:"customer"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`

	// Duration in seconds, used when endTime is unset.
	Duration int    `json:"duration"`
	Text     string `json:"text"`
}

// Create handles POST /v1/suppressions
// Opens a new blackout window. Start defaults to now, end to start plus the
// given duration (one hour when neither is set).
func (h *SuppressionHandler) Create(c *fiber.Ctx) error {
	var req createSuppressionRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	now := time.Now().UTC()
	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	end := start.Add(defaultSuppressionDuration)
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	} else if req.Duration > 0 {
		end = start.Add(time.Duration(req.Duration) * time.Second)
	}

	suppression := &domain.Suppression{
		ID:          uuid.New().String(),
		Environment: req.Environment,
		Resource:    req.Resource,
		Event:       req.Event,
		Group:       req.Group,
		Tags:        req.Tags,
		Customer:    req.Customer,
		StartTime:   start,
		EndTime:     end,
		Text:        req.Text,
	}
	if err := suppression.Validate(); err != nil {
		return ValidationError(c, err.Error())
	}

	if err := h.suppressions.Create(c.Context(), suppression); err != nil {
		h.logger.Error("failed to create suppression", "error", err)
		return InternalError(c, "failed to create suppression")
	}
	return Created(c, suppression)
}

// List handles GET /v1/suppressions
// Returns all windows still active now or in the future.
func (h *SuppressionHandler) List(c *fiber.Ctx) error {
	suppressions, err := h.suppressions.List(c.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to list suppressions", "error", err)
		return InternalError(c, "failed to list suppressions")
	}
	return Success(c, suppressions)
}

// GetByID handles GET /v1/suppressions/:id
func (h *SuppressionHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	suppression, err := h.suppressions.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSuppressionNotFound) {
			return NotFound(c, "suppression not found")
		}
		h.logger.Error("failed to get suppression", "id", id, "error", err)
		return InternalError(c, "failed to get suppression")
	}
	return Success(c, suppression)
}

// Delete handles DELETE /v1/suppressions/:id
func (h *SuppressionHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.suppressions.Delete(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrSuppressionNotFound) {
			return NotFound(c, "suppression not found")
		}
		h.logger.Error("failed to delete suppression", "id", id, "error", err)
		return InternalError(c, "failed to delete suppression")
	}
	return NoContent(c)
}
