package components

import (
	"time"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/domain/shipping"
	"lotpool/internal/pkg/clock"
	"lotpool/internal/pkg/config"
	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/commands"
	"lotpool/internal/usecase/queries"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	newShippingPricing,
	newDefaultCommissionRate,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewLotLedger,
		newReservationCommands,
		newReconciler,
		newBatchCloser,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewReservationQueries,
		queries.NewLotQueries,
	),
)

func newShippingPricing(cfg config.Config) shipping.Pricing {
	return shipping.Pricing{
		BaseFeeCents: cfg.Shipping.BaseFeeCents,
		PerKmCents:   cfg.Shipping.PerKmCents,
	}
}

func newDefaultCommissionRate(cfg config.Config) (decimal.Decimal, error) {
	rate, err := reservation.ParseCommissionRate(cfg.Shipping.DefaultCommissionRate)
	if err != nil {
		return decimal.Zero, errs.Wrap(err, "invalid default commission rate")
	}
	return rate, nil
}

func newReservationCommands(
	pool *pgxpool.Pool,
	reservations commands.ReservationRepository,
	buyers commands.BuyerReads,
	products commands.ProductReads,
	ledger *commands.LotLedger,
	distance commands.DistanceService,
	commissions commands.CommissionRates,
	pricing shipping.Pricing,
	defaultRate decimal.Decimal,
	clk clock.Clock,
) commands.ReservationCommands {
	return commands.NewReservationCommands(
		pool, reservations, buyers, products, ledger,
		distance, commissions, pricing, defaultRate, clk,
	)
}

func newReconciler(
	cfg config.Config,
	pool *pgxpool.Pool,
	reservations commands.ReservationRepository,
	products commands.ProductReads,
	ledger *commands.LotLedger,
	clk clock.Clock,
) commands.Reconciler {
	return commands.NewReconciler(pool, reservations, products, ledger,
		commands.ReconcilerConfig{
			Grace:       cfg.Jobs.ReconcileGrace,
			MaxAttempts: 3,
			MaxInterval: 5 * time.Second,
		}, clk)
}

func newBatchCloser(
	cfg config.Config,
	pool *pgxpool.Pool,
	lots commands.LotRepository,
	reservations commands.ReservationRepository,
	reconciler commands.Reconciler,
	gw commands.PaymentGateway,
	notifier commands.Notifier,
	distance commands.DistanceService,
	pricing shipping.Pricing,
	clk clock.Clock,
) commands.BatchCloser {
	return commands.NewBatchCloser(pool, lots, reservations, reconciler, gw, notifier, distance, pricing,
		commands.CloserConfig{
			CloseGrace:      cfg.Jobs.CloseGrace,
			StaleAfter:      cfg.Jobs.StaleAfter,
			LotConcurrency:  cfg.Jobs.LotConcurrency,
			ProductPageBase: cfg.Gateway.ProductPageBase,
		}, clk)
}
