package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetBalance(c *gin.Context) {
	account, ok := callerAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account": account,
		"balance": s.ledgerSvc.BalanceOf(account),
	}})
}

func (s *Server) GetTreasury(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"treasury": s.ledgerSvc.Treasury(),
	}})
}
