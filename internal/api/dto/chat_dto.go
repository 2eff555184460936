package dto

import "github.com/spec-kit/ticket-upgrade-agent/internal/domain"

// ChatRequest payload for POST /chat.
type ChatRequest struct {
	Message string                     `json:"message" validate:"required,max=2000"`
	History []domain.Message           `json:"history" validate:"max=200,dive"`
	Context domain.ConversationContext `json:"context"`
}
