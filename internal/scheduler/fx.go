package scheduler

import (
	"context"
	"time"

	"github.com/kudibooks/kudibooks/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(start),
)

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	if cfg.SchedulerIntervalSeconds > 0 {
		c.RunInterval = time.Duration(cfg.SchedulerIntervalSeconds) * time.Second
	}
	return c
}

func start(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
