package usecase

import (
	"context"
	"strings"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
	"vpn-subscription-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ TariffUseCase = (*tariffUC)(nil)

type TariffUseCase interface {
	Create(ctx context.Context, name string, price int64, durationDays int) (*model.Tariff, error)
	Update(ctx context.Context, t *model.Tariff) error
	// Delete only deactivates; paid notifications may still reference the tariff.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Tariff, error)
	ListActive(ctx context.Context) ([]*model.Tariff, error)
	ListAll(ctx context.Context) ([]*model.Tariff, error)
}

type tariffUC struct {
	repo repository.TariffRepository
	log  *zerolog.Logger
}

func NewTariffUseCase(repo repository.TariffRepository, logger *zerolog.Logger) *tariffUC {
	return &tariffUC{repo: repo, log: logger}
}

func (u *tariffUC) Create(ctx context.Context, name string, price int64, durationDays int) (*model.Tariff, error) {
	defer logging.TraceDuration(u.log, "TariffUC.Create")()

	t, err := model.NewTariff(name, price, durationDays)
	if err != nil {
		return nil, err
	}
	if err := u.repo.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	u.log.Info().Int64("tariff_id", t.ID).Str("name", t.Name).Int64("price", t.Price).Msg("tariff created")
	return t, nil
}

func (u *tariffUC) Update(ctx context.Context, t *model.Tariff) error {
	defer logging.TraceDuration(u.log, "TariffUC.Update")()

	if t == nil || t.ID == 0 || strings.TrimSpace(t.Name) == "" || t.Price <= 0 || t.DurationDays <= 0 {
		return domain.ErrInvalidArgument
	}
	if _, err := u.repo.FindByID(ctx, repository.NoTX, t.ID); err != nil {
		return err
	}
	return u.repo.Save(ctx, repository.NoTX, t)
}

func (u *tariffUC) Delete(ctx context.Context, id int64) error {
	defer logging.TraceDuration(u.log, "TariffUC.Delete")()
	return u.repo.Deactivate(ctx, repository.NoTX, id)
}

func (u *tariffUC) Get(ctx context.Context, id int64) (*model.Tariff, error) {
	return u.repo.FindByID(ctx, repository.NoTX, id)
}

func (u *tariffUC) ListActive(ctx context.Context) ([]*model.Tariff, error) {
	return u.repo.ListActive(ctx, repository.NoTX)
}

func (u *tariffUC) ListAll(ctx context.Context) ([]*model.Tariff, error) {
	return u.repo.ListAll(ctx, repository.NoTX)
}
