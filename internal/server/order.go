package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/parleylabs/parley/internal/observability/context"
	orderdomain "github.com/parleylabs/parley/internal/order/domain"
)

type createOrderRequest struct {
	ExternalID       string `json:"external_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := obscontext.WithExternalID(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	order, err := s.orderSvc.Create(ctx, orderdomain.CreateOrderRequest{
		ExternalID:       strings.TrimSpace(req.ExternalID),
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}
