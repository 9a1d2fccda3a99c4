package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

// Purchasable coin/spin bundles live in the products table; sticker packs
// form a separate catalog partition with their own pricing rules.
type ProductRepo struct {
	pool *pgxpool.Pool
}

type ProductRecord struct {
	ID          string
	Kind        string
	Title       string
	Description string
	PriceUSD    float64
	Amount      int64
	ImageKey    string
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) FindPurchasable(ctx context.Context, productID string) (ProductRecord, error) {
	if r.pool == nil {
		return ProductRecord{}, fmt.Errorf("postgres pool is nil")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductRecord{}, ErrProductNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT id, kind, title, description, price_usd, amount, COALESCE(image_key, '')
FROM products
WHERE id = $1
`, productID)

	rec, err := scanProductRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrProductNotFound
		}
		return ProductRecord{}, fmt.Errorf("find product: %w", err)
	}
	return rec, nil
}

func (r *ProductRepo) FindStickerPack(ctx context.Context, packID string) (ProductRecord, error) {
	if r.pool == nil {
		return ProductRecord{}, fmt.Errorf("postgres pool is nil")
	}
	packID = strings.TrimSpace(packID)
	if packID == "" {
		return ProductRecord{}, ErrProductNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT id, 'sticker-purchase', title, description, price, 1, COALESCE(image_key, '')
FROM sticker_packs
WHERE id = $1
`, packID)

	rec, err := scanProductRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRecord{}, ErrProductNotFound
		}
		return ProductRecord{}, fmt.Errorf("find sticker pack: %w", err)
	}
	return rec, nil
}

func scanProductRow(row pgx.Row) (ProductRecord, error) {
	var rec ProductRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Title,
		&rec.Description,
		&rec.PriceUSD,
		&rec.Amount,
		&rec.ImageKey,
	); err != nil {
		return ProductRecord{}, err
	}
	return rec, nil
}
