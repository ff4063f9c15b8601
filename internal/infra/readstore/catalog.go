package readstore

import (
	"context"
	"errors"

	"lotpool/internal/infra"
	"lotpool/internal/usecase/commands"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogReadStore provides the intake's buyer and product snapshots.
type CatalogReadStore struct {
	pool *pgxpool.Pool
}

func NewCatalogReadStore(pool *pgxpool.Pool) *CatalogReadStore {
	return &CatalogReadStore{pool: pool}
}

func (s *CatalogReadStore) BuyerByID(ctx context.Context, id uuid.UUID) (*commands.BuyerSnapshot, error) {
	var b commands.BuyerSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(postal_code, ''), COALESCE(street_address, '')
		FROM buyers
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Email, &b.PostalCode, &b.StreetAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("buyer not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to fetch buyer", err)
	}
	return &b, nil
}

func (s *CatalogReadStore) ProductByID(ctx context.Context, id uuid.UUID) (*commands.ProductSnapshot, error) {
	var p commands.ProductSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.factory_id, p.name, p.price_cents, p.min_quantity,
		       f.postal_code, f.street_address
		FROM products p
		JOIN factories f ON f.id = p.factory_id
		WHERE p.id = $1
	`, id).Scan(&p.ID, &p.FactoryID, &p.Name, &p.PriceCents, &p.MinQuantity,
		&p.FactoryPostal, &p.FactoryStreet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("product not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to fetch product", err)
	}
	return &p, nil
}
