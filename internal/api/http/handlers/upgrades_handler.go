package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-upgrade-agent/internal/api/dto"
	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
	apperrors "github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/validation"
)

// UpgradesHandler exposes the upgrade workflow as REST endpoints.
type UpgradesHandler struct {
	service *service.UpgradeService
	now     func() time.Time
}

// NewUpgradesHandler constructs handler.
func NewUpgradesHandler(upgradeService *service.UpgradeService) *UpgradesHandler {
	return &UpgradesHandler{service: upgradeService, now: time.Now}
}

// Tiers GET /tickets/:id/tiers?customer_id=&date=&budget=.
func (h *UpgradesHandler) Tiers(c *fiber.Ctx) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		return err
	}
	var prefs service.Preferences
	if raw := strings.TrimSpace(c.Query("budget")); raw != "" {
		budget, err := domain.ParseMoney(raw)
		if err != nil || !budget.IsPositive() {
			return apperrors.NewValidationError("budget must be a positive amount", map[string]any{"budget": raw})
		}
		prefs.BudgetCeiling = &budget
	}

	res := h.service.Quote(c.UserContext(), service.QuoteRequest{
		TicketRef:   c.Params("id"),
		CustomerID:  customerID,
		Date:        date,
		Preferences: prefs,
	})
	if res.Err != nil {
		return workflowError(res)
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkflowResponse(res, h.now())})
}

// Calendar GET /tickets/:id/calendar?customer_id=&from=.
func (h *UpgradesHandler) Calendar(c *fiber.Ctx) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		return err
	}
	res := h.service.Calendar(c.UserContext(), c.Params("id"), customerID, from)
	if res.Err != nil {
		return workflowError(res.WorkflowResult)
	}
	out := dto.NewWorkflowResponse(res.WorkflowResult, h.now())
	out.Days = res.Days
	return c.JSON(fiber.Map{"data": out})
}

// BestDates GET /tickets/:id/best-dates?customer_id=&tier=&days=&limit=.
func (h *UpgradesHandler) BestDates(c *fiber.Ctx) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	tier := strings.TrimSpace(c.Query("tier"))
	if tier == "" {
		return apperrors.NewValidationError("tier is required", nil)
	}
	days, limit := c.QueryInt("days", 0), c.QueryInt("limit", 0)
	if days < 0 || days > maxBestDatesDays || limit < 0 {
		return apperrors.NewValidationError("days must be between 1 and 90 and limit must be positive",
			map[string]any{"days": c.Query("days"), "limit": c.Query("limit")})
	}
	res := h.service.BestDates(c.UserContext(), service.BestDatesRequest{
		TicketRef:  c.Params("id"),
		CustomerID: customerID,
		Choice:     tier,
		Days:       days,
		Limit:      limit,
	})
	if res.Err != nil {
		return workflowError(res.WorkflowResult)
	}
	out := dto.NewWorkflowResponse(res.WorkflowResult, h.now())
	out.BestDates = res.Dates
	return c.JSON(fiber.Map{"data": out})
}

const maxBestDatesDays = 90

// CreateOrder POST /tickets/:id/upgrade-orders. The Idempotency-Key header
// takes precedence over the payload field.
func (h *UpgradesHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateUpgradeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if key := strings.TrimSpace(c.Get("Idempotency-Key")); key != "" {
		req.IdempotencyKey = key
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return err
	}

	res := h.service.Select(c.UserContext(), service.SelectRequest{
		TicketRef:      c.Params("id"),
		CustomerID:     req.CustomerID,
		Choice:         req.Tier,
		Date:           date,
		IdempotencyKey: req.IdempotencyKey,
	})
	if res.Err != nil {
		return workflowError(res)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewWorkflowResponse(res, h.now())})
}

// Confirm POST /upgrade-orders/:id/confirm.
func (h *UpgradesHandler) Confirm(c *fiber.Ctx) error {
	var req dto.ConfirmOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	res := h.service.Confirm(c.UserContext(), service.ConfirmRequest{
		OrderID:    c.Params("id"),
		CustomerID: req.CustomerID,
	})
	if res.Err != nil {
		return workflowError(res)
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkflowResponse(res, h.now())})
}

// GetOrder GET /upgrade-orders/:id?customer_id=.
func (h *UpgradesHandler) GetOrder(c *fiber.Ctx) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}
	order, err := h.service.Order(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if order.Order.CustomerID != customerID {
		return apperrors.NewNotFound("upgrade order", map[string]any{"order_id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": order})
}

// CustomerTickets GET /customers/:id/tickets.
func (h *UpgradesHandler) CustomerTickets(c *fiber.Ctx) error {
	tickets, err := h.service.CustomerTickets(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// UpdateCustomer PATCH /customers/:id.
func (h *UpgradesHandler) UpdateCustomer(c *fiber.Ctx) error {
	var req dto.UpdateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	customer, err := h.service.UpdateContact(c.UserContext(), c.Params("id"), req.Update())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customer})
}

// Integrity GET /ops/integrity.
func (h *UpgradesHandler) Integrity(c *fiber.Ctx) error {
	report, err := h.service.CheckIntegrity(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
