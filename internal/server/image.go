package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/parleylabs/parley/internal/observability/context"
)

type postImageRequest struct {
	ExternalID string `json:"external_id"`
	Prompt     string `json:"prompt"`
}

func (s *Server) PostImage(c *gin.Context) {
	var req postImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	image, err := s.chatSvc.GenerateImage(ctx, strings.TrimSpace(req.ExternalID), req.Prompt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"image_base64": image}})
}
