// Package httpclient implements the transfer gateway boundary over JSON/HTTP.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/patronage/internal/config"
	gatewaydomain "github.com/smallbiznis/patronage/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Client struct {
	base    string
	http    *http.Client
	log     *zap.Logger
	genID   *snowflake.Node
	timeout time.Duration
}

func New(p Params) gatewaydomain.Gateway {
	timeout := p.Cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    p.Cfg.GatewayBaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     p.Log.Named("gateway.client"),
		genID:   p.GenID,
		timeout: timeout,
	}
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

func (c *Client) QueryExternalBalance(ctx context.Context, ref string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/balance", c.base, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("external balance query failed", zap.String("ref", ref), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("external balance query returned unexpected status",
			zap.String("ref", ref),
			zap.Int("status", resp.StatusCode),
		)
		return 0, fmt.Errorf("%w: status %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	return body.Balance, nil
}

type transferRequest struct {
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

type transferResponse struct {
	Status string `json:"status"`
	TxRef  string `json:"tx_ref"`
	Reason string `json:"reason"`
}

func (c *Client) SendTransfer(ctx context.Context, ref string, amount uint64) (gatewaydomain.TransferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(transferRequest{Destination: ref, Amount: amount})
	if err != nil {
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/v1/transfers", c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", c.genID.Generate().String())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("transfer request failed", zap.String("ref", ref), zap.Uint64("amount", amount), zap.Error(err))
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: status %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var body transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}

	switch body.Status {
	case string(gatewaydomain.TransferCompleted):
		return gatewaydomain.TransferResult{Status: gatewaydomain.TransferCompleted, TxRef: body.TxRef}, nil
	case string(gatewaydomain.TransferRejected):
		return gatewaydomain.TransferResult{Status: gatewaydomain.TransferRejected, Reason: body.Reason}, nil
	default:
		// An answer we cannot interpret is an unknown outcome.
		return gatewaydomain.TransferResult{}, fmt.Errorf("%w: unrecognized status %q", gatewaydomain.ErrGatewayUnavailable, body.Status)
	}
}
