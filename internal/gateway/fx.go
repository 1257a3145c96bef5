package gateway

import (
	"github.com/smallbiznis/patronage/internal/gateway/httpclient"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.client",
	fx.Provide(httpclient.New),
)
