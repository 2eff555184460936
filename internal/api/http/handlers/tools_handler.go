package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/ticket-upgrade-agent/internal/dataprovider"
	"github.com/spec-kit/ticket-upgrade-agent/internal/toolcall"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/validation"
)

// ToolsHandler exposes the data provider over HTTP for remote orchestrators.
type ToolsHandler struct {
	provider *dataprovider.Provider
}

// NewToolsHandler constructs handler.
func NewToolsHandler(provider *dataprovider.Provider) *ToolsHandler {
	return &ToolsHandler{provider: provider}
}

// Catalog GET /tools.
func (h *ToolsHandler) Catalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dataprovider.Catalog()})
}

// Invoke POST /tools/invoke. Tool failures are part of the response envelope
// and always answer 200; only transport problems use other statuses.
func (h *ToolsHandler) Invoke(c *fiber.Ctx) error {
	var req toolcall.Request
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(toolcall.Fail(toolcall.KindValidation, "invalid payload"))
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(toolcall.FailFrom(err))
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return c.JSON(h.provider.Handle(c.UserContext(), req))
}
