package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/patronage/internal/accounting"
	"github.com/smallbiznis/patronage/internal/clock"
	"github.com/smallbiznis/patronage/internal/config"
	"github.com/smallbiznis/patronage/internal/gateway"
	"github.com/smallbiznis/patronage/internal/identity"
	"github.com/smallbiznis/patronage/internal/ledger"
	obsmetrics "github.com/smallbiznis/patronage/internal/observability/metrics"
	"github.com/smallbiznis/patronage/internal/scheduler"
	"github.com/smallbiznis/patronage/internal/server"
	"github.com/smallbiznis/patronage/internal/snapshot"
	"github.com/smallbiznis/patronage/internal/subscription"
	"github.com/smallbiznis/patronage/pkg/db"
	pkglog "github.com/smallbiznis/patronage/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		pkglog.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(obsmetrics.Default, obsmetrics.HTTP),
		db.Module,
		clock.Module,

		// Functional domains
		ledger.Module,
		gateway.Module,
		accounting.Module,
		subscription.Module,
		identity.Module,
		scheduler.Module,
		snapshot.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
