package domain

import (
	"context"
	"errors"

	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
)

var ErrInvalidToken = errors.New("invalid_token")

// Authenticator resolves a bearer token to the account it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (ledgerdomain.AccountID, error)
}

type accountContextKey struct{}

func WithAccount(ctx context.Context, id ledgerdomain.AccountID) context.Context {
	return context.WithValue(ctx, accountContextKey{}, id)
}

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (ledgerdomain.AccountID, bool) {
	id, ok := ctx.Value(accountContextKey{}).(ledgerdomain.AccountID)
	return id, ok
}
