package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepo struct {
	pool *pgxpool.Pool
}

type AccountRecord struct {
	UserID         int64
	Coins          int64
	VIP            bool
	PurchasedSpins int
	UpdatedAt      time.Time
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Get(ctx context.Context, userID int64) (AccountRecord, error) {
	if r.pool == nil {
		return AccountRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return AccountRecord{}, ErrAccountNotFound
	}

	var rec AccountRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, coins, vip, purchased_spins, updated_at
FROM accounts
WHERE user_id = $1
`, userID).Scan(&rec.UserID, &rec.Coins, &rec.VIP, &rec.PurchasedSpins, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrAccountNotFound
		}
		return AccountRecord{}, fmt.Errorf("get account: %w", err)
	}
	return rec, nil
}

// AwardCoins credits the balance and returns the new total. The account row
// is created on first touch.
func (r *AccountRepo) AwardCoins(ctx context.Context, userID, coins int64) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || coins < 0 {
		return 0, fmt.Errorf("invalid award coins payload")
	}

	var balance int64
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := ensureAccountTx(txCtx, tx, userID); err != nil {
			return err
		}
		return tx.QueryRow(txCtx, `
UPDATE accounts
SET coins = coins + $2, updated_at = NOW()
WHERE user_id = $1
RETURNING coins
`, userID, coins).Scan(&balance)
	})
	if err != nil {
		return 0, fmt.Errorf("award coins: %w", err)
	}
	return balance, nil
}

// SpendPurchasedSpinAndAward consumes one purchased spin and credits the prize
// in the same transaction. ok is false when no purchased spins remain; the
// conditional update is the guard against concurrent spins racing each other.
func (r *AccountRepo) SpendPurchasedSpinAndAward(ctx context.Context, userID, coins int64) (int64, bool, error) {
	if r.pool == nil {
		return 0, false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || coins < 0 {
		return 0, false, fmt.Errorf("invalid spin award payload")
	}

	var balance int64
	spent := false
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		scanErr := tx.QueryRow(txCtx, `
UPDATE accounts
SET purchased_spins = purchased_spins - 1,
	coins = coins + $2,
	updated_at = NOW()
WHERE user_id = $1
  AND purchased_spins > 0
RETURNING coins
`, userID, coins).Scan(&balance)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		spent = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("spend purchased spin: %w", err)
	}
	return balance, spent, nil
}

func ensureAccountTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO accounts (user_id, coins, vip, purchased_spins, updated_at)
VALUES ($1, 0, FALSE, 0, NOW())
ON CONFLICT (user_id) DO NOTHING
`, userID); err != nil {
		return fmt.Errorf("ensure account row: %w", err)
	}
	return nil
}
