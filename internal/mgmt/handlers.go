package mgmt

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/record"
)

// Handlers holds the route handlers.
type Handlers struct {
	cfg    ServerConfig
	deps   Deps
	logger zerolog.Logger
}

// NewHandlers creates route handlers.
func NewHandlers(cfg ServerConfig, deps Deps, logger zerolog.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "mgmt_handlers").Logger(),
	}
}

// Readiness runs the health checks.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.deps.Checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	return h.deps.Checker.ReadinessHandler()(c)
}

// ListTabs returns the visible override controls.
func (h *Handlers) ListTabs(c *fiber.Ctx) error {
	return c.JSON(h.deps.Controls.List())
}

// ToggleTab clicks the override control of a tab.
func (h *Handlers) ToggleTab(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_tab_id", "Bad Request", "Tab id must be an integer")
	}

	if err := h.deps.Controls.Click(c.UserContext(), id); err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"control_not_found", "Not Found", err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "queued"})
}

// GetSettings returns the max-age form state. An unset value shows the
// form default.
func (h *Handlers) GetSettings(c *fiber.Ctx) error {
	minutes, set, err := h.deps.Records.Threshold(c.UserContext())
	if err != nil {
		return err
	}
	if !set {
		minutes = record.DefaultMaxAgeMinutes
	}
	return c.JSON(SettingsResponse{MaxAgeMinutes: minutes, Set: set})
}

// PutSettings saves the max-age form.
func (h *Handlers) PutSettings(c *fiber.Ctx) error {
	var req SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Body must be JSON with max_age_minutes")
	}

	if err := h.deps.Records.SetThreshold(c.UserContext(), req.MaxAgeMinutes); err != nil {
		if errors.Is(err, perrors.ErrInvalidInput) {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_max_age", "Bad Request", err.Error())
		}
		return err
	}

	h.logger.Info().Int("max_age_minutes", req.MaxAgeMinutes).Msg("max age updated")
	return c.JSON(SettingsResponse{MaxAgeMinutes: req.MaxAgeMinutes, Set: true})
}

// ListRecords returns every stored lifecycle record.
func (h *Handlers) ListRecords(c *fiber.Ctx) error {
	entries, err := h.deps.Records.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

// ListArchive returns the newest entries of the archive folder.
func (h *Handlers) ListArchive(c *fiber.Ctx) error {
	dest, ok := h.deps.Destination.Destination()
	if !ok {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"not_ready", "Service Unavailable", perrors.ErrNotReady.Error())
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_limit", "Bad Request", "limit must be a positive integer")
		}
		limit = n
	}

	entries, err := h.deps.Archive.List(c.UserContext(), dest.FolderID, limit)
	if err != nil {
		return err
	}
	return c.JSON(ArchiveResponse{Folder: dest, Entries: entries})
}

// TriggerSweep queues a sweep on the event bus.
func (h *Handlers) TriggerSweep(c *fiber.Ctx) error {
	ev := event.Fired(event.SourceMgmt, h.cfg.TimerName)
	if err := h.deps.Events.Publish(c.UserContext(), ev); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "queued", EventID: ev.ID})
}
