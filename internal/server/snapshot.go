package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	snapshotdomain "github.com/smallbiznis/patronage/internal/snapshot/domain"
	"go.uber.org/zap"
)

func (s *Server) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.snapshotSvc.Take()})
}

func (s *Server) RestoreSnapshot(c *gin.Context) {
	var snap snapshotdomain.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.snapshotSvc.Restore(snap)
	account, _ := callerAccount(c)
	s.log.Warn("state restored from client-supplied snapshot",
		zap.String("account", string(account)),
		zap.Time("taken_at", snap.TakenAt),
	)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"restored": true}})
}
