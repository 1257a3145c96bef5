package snapshot

import (
	"context"
	"time"

	"github.com/smallbiznis/patronage/internal/config"
	snapshotdomain "github.com/smallbiznis/patronage/internal/snapshot/domain"
	"github.com/smallbiznis/patronage/internal/snapshot/repository"
	"github.com/smallbiznis/patronage/internal/snapshot/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("snapshot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(Run),
)

// Run restores the latest snapshot on start, persists periodically while the
// process is up, and persists once more on shutdown.
func Run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, svc snapshotdomain.Service) {
	log = log.Named("snapshot")
	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			found, err := svc.LoadAndRestore(ctx)
			if err != nil {
				return err
			}
			if !found {
				log.Info("no snapshot found, starting with empty state")
			}

			var loopCtx context.Context
			loopCtx, cancel = context.WithCancel(context.Background())
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-loopCtx.Done():
						return
					case <-ticker.C:
						if err := svc.Persist(loopCtx); err != nil {
							log.Error("periodic snapshot failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return svc.Persist(ctx)
		},
	})
}
