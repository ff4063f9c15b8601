package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"lotpool/internal/pkg/config"
	"lotpool/internal/usecase/commands"

	"go.uber.org/fx"
)

// JobsModule optionally runs the batch closer on an in-process ticker.
// Production leaves JOBS_TICK_INTERVAL at 0 and drives the job endpoints from
// the external scheduler; the ticker exists for development and small deploys.
var JobsModule = fx.Module("jobs",
	fx.Invoke(startTicker),
)

func startTicker(lc fx.Lifecycle, cfg config.Config, closer commands.BatchCloser) {
	if cfg.Jobs.TickInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			slog.Info("in-process closer ticker enabled", "interval", cfg.Jobs.TickInterval)
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Jobs.TickInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if _, err := closer.Run(ctx); err != nil {
							slog.Error("scheduled closer run failed", "error", err)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
