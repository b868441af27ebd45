package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.ChannelRepository = (*PostgresChannelRepo)(nil)

type PostgresChannelRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresChannelRepo(pool *pgxpool.Pool) *PostgresChannelRepo {
	return &PostgresChannelRepo{pool: pool}
}

func (r *PostgresChannelRepo) Save(ctx context.Context, tx repository.Tx, c *model.Channel) error {
	const q = `
INSERT INTO channels (id, title, invite_link) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, invite_link=EXCLUDED.invite_link;`
	if _, err := execSQL(ctx, r.pool, tx, q, c.ID, c.Title, c.InviteLink); err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

func (r *PostgresChannelRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	ct, err := execSQL(ctx, r.pool, tx, `DELETE FROM channels WHERE id=$1;`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresChannelRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Channel, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT id, title, invite_link FROM channels ORDER BY title;`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	var out []*model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.Title, &c.InviteLink); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
