package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/api/dto"
	"github.com/spec-kit/ticket-upgrade-agent/internal/chat"
	"github.com/spec-kit/ticket-upgrade-agent/internal/session"
	apperrors "github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/validation"
)

// ChatHandler serves the conversational endpoint.
type ChatHandler struct {
	router *chat.Router
	locker session.Locker
	logger *zap.Logger
}

// NewChatHandler constructs handler.
func NewChatHandler(router *chat.Router, locker session.Locker, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{router: router, locker: locker, logger: logger}
}

// Chat POST /chat. Requests sharing a session id are processed one at a time.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validation.Struct(req); err != nil {
		return err
	}
	if req.Context.SessionID == "" {
		req.Context.SessionID = uuid.NewString()
	}

	ctx := c.UserContext()
	release, err := h.locker.Acquire(ctx, req.Context.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			return apperrors.NewSessionBusy(req.Context.SessionID)
		}
		return apperrors.NewUpstreamUnavailable("session lock unavailable", err)
	}
	defer release()

	resp := h.router.Handle(ctx, chat.Request{
		Message: req.Message,
		History: req.History,
		Context: req.Context,
	})
	h.logger.Debug("chat turn",
		zap.String("session_id", req.Context.SessionID),
		zap.String("intent", string(resp.Intent)),
	)
	return c.JSON(resp)
}
