package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-bot/internal/domain"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `
id, full_name, username, email, password_hash, subscription_end, panel_username,
referrer_id, referral_bonus_days, is_first_payment_made, has_received_trial,
support_topic_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u            model.User
		email, pname *string
	)
	if err := row.Scan(
		&u.ID, &u.FullName, &u.Username, &email, &u.PasswordHash, &u.SubscriptionEnd, &pname,
		&u.ReferrerID, &u.ReferralBonusDays, &u.IsFirstPaymentMade, &u.HasReceivedTrial,
		&u.SupportTopicID, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Email = derefString(email)
	u.PanelUsername = derefString(pname)
	return &u, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, full_name, username, email, password_hash, subscription_end, panel_username,
  referrer_id, referral_bonus_days, is_first_payment_made, has_received_trial,
  support_topic_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  full_name=EXCLUDED.full_name, username=EXCLUDED.username, email=EXCLUDED.email,
  password_hash=EXCLUDED.password_hash, subscription_end=EXCLUDED.subscription_end,
  panel_username=EXCLUDED.panel_username, referrer_id=EXCLUDED.referrer_id,
  referral_bonus_days=EXCLUDED.referral_bonus_days,
  is_first_payment_made=EXCLUDED.is_first_payment_made,
  has_received_trial=EXCLUDED.has_received_trial,
  support_topic_id=EXCLUDED.support_topic_id;`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.FullName, u.Username, nullString(u.Email), u.PasswordHash, u.SubscriptionEnd,
		nullString(u.PanelUsername), u.ReferrerID, u.ReferralBonusDays, u.IsFirstPaymentMade,
		u.HasReceivedTrial, u.SupportTopicID, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
}

func (r *PostgresUserRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	if tx == nil {
		return r.FindByID(ctx, tx, id)
	}
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE;`, id)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email=lower($1);`, email)
}

func (r *PostgresUserRepo) FindBySupportTopic(ctx context.Context, tx repository.Tx, topicID int64) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE support_topic_id=$1;`, topicID)
}

func (r *PostgresUserRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	ct, err := execSQL(ctx, r.pool, tx, `DELETE FROM users WHERE id=$1;`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// updateOne runs a single-row UPDATE and maps "no row" to domain.ErrNotFound.
func (r *PostgresUserRepo) updateOne(ctx context.Context, tx repository.Tx, op, q string, args ...interface{}) error {
	ct, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetSubscriptionEnd(ctx context.Context, tx repository.Tx, id int64, until time.Time) error {
	return r.updateOne(ctx, tx, "set subscription end",
		`UPDATE users SET subscription_end=$2 WHERE id=$1;`, id, until)
}

func (r *PostgresUserRepo) SetPanelUsername(ctx context.Context, tx repository.Tx, id int64, name string) error {
	return r.updateOne(ctx, tx, "set panel username",
		`UPDATE users SET panel_username=$2 WHERE id=$1;`, id, nullString(name))
}

func (r *PostgresUserRepo) SetReferrer(ctx context.Context, tx repository.Tx, id, referrerID int64) (bool, error) {
	if id == referrerID {
		return false, domain.ErrSelfReferral
	}
	ct, err := execSQL(ctx, r.pool, tx,
		`UPDATE users SET referrer_id=$2 WHERE id=$1 AND referrer_id IS NULL;`, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) SetPasswordHash(ctx context.Context, tx repository.Tx, id int64, hash string) error {
	return r.updateOne(ctx, tx, "set password hash",
		`UPDATE users SET password_hash=$2 WHERE id=$1 AND email IS NOT NULL;`, id, hash)
}

func (r *PostgresUserRepo) AddReferralBonusDays(ctx context.Context, tx repository.Tx, id int64, days int) error {
	return r.updateOne(ctx, tx, "add referral bonus",
		`UPDATE users SET referral_bonus_days=referral_bonus_days+$2 WHERE id=$1;`, id, days)
}

func (r *PostgresUserRepo) ConsumeReferralBonusDays(ctx context.Context, tx repository.Tx, id int64, days int) error {
	return r.updateOne(ctx, tx, "consume referral bonus",
		`UPDATE users SET referral_bonus_days=referral_bonus_days-$2 WHERE id=$1 AND referral_bonus_days >= $2;`, id, days)
}

func (r *PostgresUserRepo) MarkFirstPaymentMade(ctx context.Context, tx repository.Tx, id int64) error {
	return r.updateOne(ctx, tx, "mark first payment",
		`UPDATE users SET is_first_payment_made=TRUE WHERE id=$1;`, id)
}

func (r *PostgresUserRepo) MarkTrialReceived(ctx context.Context, tx repository.Tx, id int64) (bool, error) {
	ct, err := execSQL(ctx, r.pool, tx,
		`UPDATE users SET has_received_trial=TRUE WHERE id=$1 AND has_received_trial=FALSE;`, id)
	if err != nil {
		return false, fmt.Errorf("mark trial: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) SetSupportTopic(ctx context.Context, tx repository.Tx, id int64, topicID *int64) error {
	return r.updateOne(ctx, tx, "set support topic",
		`UPDATE users SET support_topic_id=$2 WHERE id=$1;`, id, topicID)
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users;`)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountNewUsers(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE created_at >= $1;`, since)
	if err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountActive(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE subscription_end > $1;`, now)
	if err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountByFirstPayment(ctx context.Context, tx repository.Tx, made bool) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE is_first_payment_made=$1;`, made)
	if err != nil {
		return 0, fmt.Errorf("count by first payment: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountReferrals(ctx context.Context, tx repository.Tx) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE referrer_id IS NOT NULL;`)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountReferralsOf(ctx context.Context, tx repository.Tx, referrerID int64) (int, error) {
	n, err := scalarInt(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE referrer_id=$1;`, referrerID)
	if err != nil {
		return 0, fmt.Errorf("count referrals of: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) ListReferralsOf(ctx context.Context, tx repository.Tx, referrerID int64) ([]*model.User, error) {
	return r.list(ctx, tx,
		`SELECT `+userColumns+` FROM users WHERE referrer_id=$1 ORDER BY created_at;`, referrerID)
}

func (r *PostgresUserRepo) ListExpiringBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.User, error) {
	return r.list(ctx, tx, `SELECT `+userColumns+` FROM users
 WHERE subscription_end >= $1 AND subscription_end < $2
 ORDER BY subscription_end;`, from, to)
}

func (r *PostgresUserRepo) ListWithoutFirstPayment(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	return r.list(ctx, tx,
		`SELECT `+userColumns+` FROM users WHERE is_first_payment_made=FALSE ORDER BY id;`)
}

func (r *PostgresUserRepo) ListUnprovisioned(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	return r.list(ctx, tx, `SELECT `+userColumns+` FROM users
 WHERE panel_username IS NULL AND subscription_end > $1
 ORDER BY subscription_end LIMIT $2;`, now, limit)
}

func (r *PostgresUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	return r.list(ctx, tx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC OFFSET $1 LIMIT NULLIF($2, 0);`, offset, limit)
}
