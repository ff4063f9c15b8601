package components

import (
	"lotpool/internal/handler"
	"lotpool/internal/handler/api"
	"lotpool/internal/handler/middleware"
	"lotpool/internal/pkg/config"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewReservationHandler,
		api.NewLotHandler,
		api.NewJobHandler,
		newAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)

func newAuthMiddleware(cfg config.Config) *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
}
