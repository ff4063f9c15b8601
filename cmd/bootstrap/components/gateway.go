package components

import (
	"lotpool/internal/infra/gateway"
	"lotpool/internal/pkg/config"
	"lotpool/internal/usecase/commands"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var GatewayModule = fx.Module("gateway",
	fx.Provide(
		fx.Annotate(
			newPaymentClient,
			fx.As(new(commands.PaymentGateway)),
		),
		fx.Annotate(
			newEmailClient,
			fx.As(new(commands.Notifier)),
		),
		fx.Annotate(
			newDistanceClient,
			fx.As(new(commands.DistanceService)),
		),
		fx.Annotate(
			newCommissionClient,
			fx.As(new(commands.CommissionRates)),
		),
	),
)

func newPaymentClient(cfg config.Config) *gateway.PaymentClient {
	return gateway.NewPaymentClient(cfg.Gateway.PaymentURL, cfg.Gateway.PaymentAPIKey, cfg.Gateway.Timeout)
}

func newEmailClient(cfg config.Config) *gateway.EmailClient {
	return gateway.NewEmailClient(cfg.Gateway.EmailURL, cfg.Gateway.EmailAPIKey, cfg.Gateway.EmailBatchSize, cfg.Gateway.Timeout)
}

func newDistanceClient(cfg config.Config) *gateway.DistanceClient {
	return gateway.NewDistanceClient(cfg.Gateway.DistanceURL, cfg.Gateway.Timeout)
}

func newCommissionClient(cfg config.Config, cache *redis.Client) *gateway.CommissionClient {
	return gateway.NewCommissionClient(cfg.Gateway.ScoringURL, cfg.Shipping.CommissionRateTTL, cfg.Gateway.Timeout, cache)
}
