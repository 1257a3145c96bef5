package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/smallbiznis/patronage/internal/config"
	identitydomain "github.com/smallbiznis/patronage/internal/identity/domain"
	ledgerdomain "github.com/smallbiznis/patronage/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// StaticAuthenticator maps pre-shared bearer tokens to accounts. Tokens
// come from PATRONAGE_AUTH_TOKENS as "token=account" pairs separated by
// commas.
type StaticAuthenticator struct {
	log    *zap.Logger
	tokens map[string]ledgerdomain.AccountID
}

func New(p Params) identitydomain.Authenticator {
	return NewStatic(p.Log, p.Cfg.AuthTokens)
}

func NewStatic(log *zap.Logger, raw string) *StaticAuthenticator {
	a := &StaticAuthenticator{
		log:    log.Named("identity.service"),
		tokens: make(map[string]ledgerdomain.AccountID),
	}
	for _, pair := range strings.Split(raw, ",") {
		token, account, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || token == "" || account == "" {
			continue
		}
		a.tokens[token] = ledgerdomain.AccountID(account)
	}
	if len(a.tokens) == 0 {
		a.log.Warn("no auth tokens configured, all authenticated routes will reject")
	}
	return a
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (ledgerdomain.AccountID, error) {
	if strings.TrimSpace(token) == "" {
		return "", identitydomain.ErrInvalidToken
	}
	for candidate, account := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return account, nil
		}
	}
	return "", identitydomain.ErrInvalidToken
}
