package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/parleylabs/parley/internal/observability/context"
)

// GetUser resolves the external id to an account, creating it on first sight.
func (s *Server) GetUser(c *gin.Context) {
	externalID := strings.TrimSpace(c.Param("externalId"))
	if externalID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), externalID)
	account, err := s.accountSvc.Resolve(ctx, externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}
