package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	subscriptiondomain "github.com/smallbiznis/patronage/internal/subscription/domain"
)

// subscriptionView is the API rendering of a subscription; cadence goes out
// as a duration string instead of raw nanoseconds.
type subscriptionView struct {
	ID           int64     `json:"id"`
	Patron       string    `json:"patron"`
	Creator      string    `json:"creator"`
	Amount       uint64    `json:"amount"`
	Cadence      string    `json:"cadence"`
	NextChargeAt time.Time `json:"next_charge_at"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func newSubscriptionView(sub subscriptiondomain.Subscription) subscriptionView {
	return subscriptionView{
		ID:           sub.ID,
		Patron:       string(sub.Patron),
		Creator:      string(sub.Creator),
		Amount:       sub.Amount,
		Cadence:      sub.Cadence.String(),
		NextChargeAt: sub.NextChargeAt,
		Active:       sub.Active,
		CreatedAt:    sub.CreatedAt,
	}
}

type createSubscriptionRequest struct {
	Creator string `json:"creator"`
	Amount  uint64 `json:"amount"`
	Cadence string `json:"cadence"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	patron, ok := callerAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creator := strings.TrimSpace(req.Creator)
	if creator == "" {
		AbortWithError(c, newValidationError("creator", "invalid_creator", "creator is required"))
		return
	}

	cadence, err := time.ParseDuration(strings.TrimSpace(req.Cadence))
	if err != nil {
		AbortWithError(c, newValidationError("cadence", "invalid_cadence", "cadence must be a duration such as 720h"))
		return
	}

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		Patron:  patron,
		Creator: ledgerdomain.AccountID(creator),
		Amount:  req.Amount,
		Cadence: cadence,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newSubscriptionView(sub)})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	subs := s.subscriptionSvc.ListActive()
	views := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, newSubscriptionView(sub))
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id, err := parseSubscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.Get(id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newSubscriptionView(sub)})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	patron, ok := callerAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseSubscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.subscriptionSvc.Cancel(c.Request.Context(), id, patron); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "active": false}})
}

func parseSubscriptionID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}
