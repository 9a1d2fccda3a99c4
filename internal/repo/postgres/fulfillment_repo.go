package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FulfillmentRepo applies a paid purchase to an account. Everything happens in
// one transaction: the charge marker, the product re-read and the effect. A
// marker that already exists short-circuits the whole call, which is what
// makes provider webhook redelivery a no-op.
type FulfillmentRepo struct {
	pool *pgxpool.Pool
}

type FulfillOutcome string

const (
	OutcomeApplied   FulfillOutcome = "applied"
	OutcomeDuplicate FulfillOutcome = "duplicate"
	OutcomeReview    FulfillOutcome = "review"
)

type FulfillParams struct {
	ChargeID   string
	UserID     int64
	ProductID  string
	Kind       string
	RawPayload string
	PaidStars  int64
}

type ReviewOrderRecord struct {
	ID        string
	UserID    int64
	ProductID string
	Kind      string
	ChargeID  string
	Payload   string
	Reason    string
	Status    string
	CreatedAt time.Time
}

func NewFulfillmentRepo(pool *pgxpool.Pool) *FulfillmentRepo {
	return &FulfillmentRepo{pool: pool}
}

func (r *FulfillmentRepo) Apply(ctx context.Context, p FulfillParams) (FulfillOutcome, error) {
	if r.pool == nil {
		return "", fmt.Errorf("postgres pool is nil")
	}

	chargeID := strings.TrimSpace(p.ChargeID)
	if chargeID == "" || p.UserID <= 0 || strings.TrimSpace(p.ProductID) == "" {
		return "", fmt.Errorf("invalid fulfillment payload")
	}

	outcome := OutcomeApplied
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(txCtx, `
INSERT INTO fulfillments (charge_id, user_id, product_id, kind, paid_stars, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (charge_id) DO NOTHING
`, chargeID, p.UserID, p.ProductID, p.Kind, p.PaidStars)
		if err != nil {
			return fmt.Errorf("insert fulfillment marker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			outcome = OutcomeDuplicate
			return nil
		}

		switch p.Kind {
		case "coins", "spins":
			return r.applyBundleTx(txCtx, tx, p, &outcome)
		case "sticker-purchase":
			return r.applyStickerTx(txCtx, tx, p)
		default:
			if err := insertReviewTx(txCtx, tx, p, "unknown purchase kind"); err != nil {
				return err
			}
			outcome = OutcomeReview
			return nil
		}
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// applyBundleTx re-reads the product inside the transaction so the granted
// amount reflects the catalog at fulfillment time, not at invoice time.
func (r *FulfillmentRepo) applyBundleTx(ctx context.Context, tx pgx.Tx, p FulfillParams, outcome *FulfillOutcome) error {
	var storedKind string
	var amount int64
	err := tx.QueryRow(ctx, `
SELECT kind, amount
FROM products
WHERE id = $1
`, p.ProductID).Scan(&storedKind, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("refetch product: %w", err)
	}

	if storedKind != p.Kind {
		if err := insertReviewTx(ctx, tx, p, "payload kind does not match catalog kind"); err != nil {
			return err
		}
		*outcome = OutcomeReview
		return nil
	}

	if err := ensureAccountTx(ctx, tx, p.UserID); err != nil {
		return err
	}

	switch p.Kind {
	case "coins":
		if _, err := tx.Exec(ctx, `
UPDATE accounts
SET coins = coins + $2, updated_at = NOW()
WHERE user_id = $1
`, p.UserID, amount); err != nil {
			return fmt.Errorf("credit coins: %w", err)
		}
	case "spins":
		if _, err := tx.Exec(ctx, `
UPDATE accounts
SET purchased_spins = purchased_spins + $2, updated_at = NOW()
WHERE user_id = $1
`, p.UserID, amount); err != nil {
			return fmt.Errorf("credit purchased spins: %w", err)
		}
	}

	return nil
}

func (r *FulfillmentRepo) applyStickerTx(ctx context.Context, tx pgx.Tx, p FulfillParams) error {
	var packID string
	err := tx.QueryRow(ctx, `
SELECT id
FROM sticker_packs
WHERE id = $1
`, p.ProductID).Scan(&packID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("refetch sticker pack: %w", err)
	}

	if err := ensureAccountTx(ctx, tx, p.UserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO user_stickers (user_id, pack_id, acquired_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, pack_id) DO NOTHING
`, p.UserID, packID); err != nil {
		return fmt.Errorf("grant sticker pack: %w", err)
	}

	return nil
}

func insertReviewTx(ctx context.Context, tx pgx.Tx, p FulfillParams, reason string) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO review_orders (id, user_id, product_id, kind, charge_id, payload, reason, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'manual_review', NOW())
`, uuid.NewString(), p.UserID, p.ProductID, p.Kind, p.ChargeID, p.RawPayload, reason); err != nil {
		return fmt.Errorf("insert review order: %w", err)
	}
	return nil
}

// PendingReviewStats feeds the reconciliation loop.
func (r *FulfillmentRepo) PendingReviewStats(ctx context.Context) (int64, *time.Time, error) {
	if r.pool == nil {
		return 0, nil, fmt.Errorf("postgres pool is nil")
	}

	var count int64
	var oldest *time.Time
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*), MIN(created_at)
FROM review_orders
WHERE status = 'manual_review'
`).Scan(&count, &oldest)
	if err != nil {
		return 0, nil, fmt.Errorf("count pending review orders: %w", err)
	}
	return count, oldest, nil
}
