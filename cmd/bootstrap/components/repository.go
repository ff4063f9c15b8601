package components

import (
	"lotpool/internal/infra/readstore"
	repo_impl "lotpool/internal/infra/repository"
	"lotpool/internal/usecase/commands"
	"lotpool/internal/usecase/queries"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		fx.Annotate(
			repo_impl.NewReservationRepository,
			fx.As(new(commands.ReservationRepository)),
		),
		fx.Annotate(
			repo_impl.NewLotRepository,
			fx.As(new(commands.LotRepository)),
		),
		fx.Annotate(
			readstore.NewCatalogReadStore,
			fx.As(new(commands.BuyerReads)),
			fx.As(new(commands.ProductReads)),
		),
		// Read-side repositories for queries
		fx.Annotate(
			readstore.NewReservationReadStore,
			fx.As(new(queries.ReservationViewRepo)),
		),
		fx.Annotate(
			readstore.NewLotReadStore,
			fx.As(new(queries.LotViewRepo)),
		),
	),
)
