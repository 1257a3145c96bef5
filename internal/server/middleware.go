package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/patronage/internal/identity/domain"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

const contextAccountKey = "account_id"

// AuthRequired authenticates the request with a bearer token and injects the
// resolved account into the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		account, err := s.authn.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAccountKey, string(account))
		c.Request = c.Request.WithContext(identitydomain.WithAccount(c.Request.Context(), account))
		c.Next()
	}
}

func callerAccount(c *gin.Context) (ledgerdomain.AccountID, bool) {
	return identitydomain.AccountFromContext(c.Request.Context())
}
