package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunBillingCycle triggers one guarded billing tick out of schedule. A tick
// already in flight is not queued behind; the response says so.
func (s *Server) RunBillingCycle(c *gin.Context) {
	result, ran, err := s.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ran {
		c.JSON(http.StatusConflict, gin.H{"data": gin.H{"ran": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"ran":       true,
		"due":       result.Due,
		"charged":   result.Charged,
		"suspended": result.Suspended,
		"fees":      result.Fees,
	}})
}
