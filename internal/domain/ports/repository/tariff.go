package repository

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

type TariffRepository interface {
	// Save inserts when t.ID == 0 (and sets it), updates otherwise.
	Save(ctx context.Context, tx Tx, t *model.Tariff) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Tariff, error)
	// ListActive returns active tariffs sorted by price ascending.
	ListActive(ctx context.Context, tx Tx) ([]*model.Tariff, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Tariff, error)
	Deactivate(ctx context.Context, tx Tx, id int64) error
}
