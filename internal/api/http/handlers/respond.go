package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-upgrade-agent/internal/api/dto"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
	apperrors "github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// workflowError renders a rejected or failed run as an HTTP error carrying
// the final state and whether the caller may retry.
func workflowError(res service.WorkflowResult) error {
	src := res.Err
	if src == nil {
		src = apperrors.NewInternalInconsistency("workflow ended without a result", nil)
	}
	out := *src
	details := make(map[string]any, len(src.Details)+2)
	for k, v := range src.Details {
		details[k] = v
	}
	details["state"] = string(res.State)
	if res.Retryable {
		details["retryable"] = true
	}
	out.Details = details
	if out.Code == apperrors.CodeInternalInconsistency {
		// never expose the violated invariant
		out.Message = "something went wrong on our side"
		out.Details = map[string]any{"state": string(res.State)}
	}
	return &out
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date must be formatted as YYYY-MM-DD", map[string]any{"date": raw})
	}
	return d, nil
}

func requireCustomer(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Query("customer_id"))
	if id == "" {
		return "", apperrors.NewValidationError("customer_id is required", nil)
	}
	return id, nil
}
