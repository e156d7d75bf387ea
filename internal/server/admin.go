package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListOrphanUpgrades reports pro accounts that carry no completed payment
// record, for operators reconciling after a crash mid-upgrade.
func (s *Server) ListOrphanUpgrades(c *gin.Context) {
	accounts, err := s.paymentSvc.OrphanUpgrades(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": accounts})
}
