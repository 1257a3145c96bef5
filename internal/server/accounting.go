package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountingdomain "github.com/smallbiznis/patronage/internal/accounting/domain"
)

type confirmDepositRequest struct {
	ExpectedAmount uint64 `json:"expected_amount"`
}

func (s *Server) ConfirmDeposit(c *gin.Context) {
	account, ok := callerAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req confirmDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.ExpectedAmount == 0 {
		AbortWithError(c, newValidationError("expected_amount", "invalid_expected_amount", "expected_amount must be positive"))
		return
	}

	credited, err := s.accountingSvc.ConfirmDeposit(c.Request.Context(), accountingdomain.ConfirmDepositRequest{
		Account:  account,
		Expected: req.ExpectedAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"account":  account,
		"credited": credited,
		"balance":  s.ledgerSvc.BalanceOf(account),
	}})
}

type withdrawRequest struct {
	Amount         uint64 `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) Withdraw(c *gin.Context) {
	account, ok := callerAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Amount == 0 {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be positive"))
		return
	}

	result, err := s.accountingSvc.Withdraw(c.Request.Context(), accountingdomain.WithdrawRequest{
		Account:        account,
		Amount:         req.Amount,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
