package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chatdomain "github.com/parleylabs/parley/internal/chat/domain"
	obscontext "github.com/parleylabs/parley/internal/observability/context"
	"github.com/parleylabs/parley/internal/providers/completion"
)

type postMessageRequest struct {
	ExternalID       string                  `json:"external_id"`
	Content          string                  `json:"content"`
	IsUserOriginated *bool                   `json:"is_user_originated"`
	Attachments      []completion.Attachment `json:"attachments"`
}

func (s *Server) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Messages are user-originated unless the client says otherwise.
	userOriginated := true
	if req.IsUserOriginated != nil {
		userOriginated = *req.IsUserOriginated
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	resp, err := s.chatSvc.Send(ctx, chatdomain.SendMessageRequest{
		ExternalID:     strings.TrimSpace(req.ExternalID),
		Content:        req.Content,
		UserOriginated: userOriginated,
		Attachments:    req.Attachments,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMessages(c *gin.Context) {
	externalID := strings.TrimSpace(c.Param("externalId"))
	if externalID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), externalID)
	turns, err := s.chatSvc.History(ctx, externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": turns})
}
