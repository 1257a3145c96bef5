package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/patronage/internal/clock"
	"github.com/smallbiznis/patronage/internal/config"
	"github.com/smallbiznis/patronage/internal/ledger"
	obsmetrics "github.com/smallbiznis/patronage/internal/observability/metrics"
	"github.com/smallbiznis/patronage/internal/scheduler"
	"github.com/smallbiznis/patronage/internal/snapshot"
	"github.com/smallbiznis/patronage/internal/subscription"
	"github.com/smallbiznis/patronage/pkg/db"
	pkglog "github.com/smallbiznis/patronage/pkg/log"
	"go.uber.org/fx"
)

// The standalone billing worker: runs the charge cycle and snapshot loop
// without serving HTTP. The redis tick lock keeps it safe to run next to the
// monolith.
func main() {
	app := fx.New(
		config.Module,
		pkglog.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(obsmetrics.Default),
		db.Module,
		clock.Module,

		ledger.Module,
		subscription.Module,
		scheduler.Module,
		snapshot.Module,
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
