package identity

import (
	"github.com/smallbiznis/patronage/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(service.New),
)
