package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/parleylabs/parley/internal/observability/context"
	paymentdomain "github.com/parleylabs/parley/internal/payment/domain"
)

func (s *Server) VerifyPayment(c *gin.Context) {
	var req paymentdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrMissingFields)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	result, err := s.paymentSvc.Verify(ctx, req)
	if err != nil {
		status, payload := mapError(err)
		c.JSON(status, gin.H{
			"success": false,
			"error":   payload,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": result.Success})
}

func (s *Server) ListPayments(c *gin.Context) {
	externalID := strings.TrimSpace(c.Param("externalId"))
	if externalID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), externalID)
	records, err := s.paymentSvc.ListByAccount(ctx, externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}
