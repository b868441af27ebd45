package repository

import (
	"context"

	"vpn-subscription-bot/internal/domain/model"
)

type ChannelRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Channel) error
	Delete(ctx context.Context, tx Tx, id int64) error
	ListAll(ctx context.Context, tx Tx) ([]*model.Channel, error)
}
