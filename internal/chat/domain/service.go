package domain

import (
	"context"
	"errors"

	"github.com/parleylabs/parley/internal/providers/completion"
)

var (
	ErrInvalidContent = errors.New("invalid_content")
	ErrInvalidPrompt  = errors.New("invalid_prompt")
)

type SendMessageRequest struct {
	ExternalID     string
	Content        string
	UserOriginated bool
	Attachments    []completion.Attachment
}

type SendMessageResponse struct {
	UserTurn      *ChatTurn `json:"user_turn,omitempty"`
	AssistantTurn *ChatTurn `json:"assistant_turn,omitempty"`
}

type Service interface {
	// Send persists a turn. User-originated turns are quota-gated and answered
	// by the completion provider; assistant-originated turns are appended
	// verbatim.
	Send(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
	// History returns the account's turns in ascending created_at order.
	History(ctx context.Context, externalID string) ([]ChatTurn, error)
	// GenerateImage produces base64 image bytes for a prompt. Counts against
	// the free-tier quota like a user turn.
	GenerateImage(ctx context.Context, externalID, prompt string) (string, error)
}
