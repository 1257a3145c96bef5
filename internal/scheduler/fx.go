package scheduler

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/patronage/internal/config"
	snapshotdomain "github.com/smallbiznis/patronage/internal/snapshot/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewRedisClient),
	fx.Provide(NewTickLock),
	fx.Provide(New),
	fx.Provide(func(s *Scheduler) snapshotdomain.TickGuard { return s }),
	fx.Invoke(StartScheduler),
)

// NewRedisClient returns nil when no redis address is configured; the tick
// lock then degrades to the in-process guard.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go sched.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
