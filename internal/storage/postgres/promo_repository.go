package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type PromoRepository struct {
	db
}

func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{db{pool: pool}}
}

func (r *PromoRepository) GetPromo(ctx context.Context, code string) (domain.PromoCode, error) {
	const query = `
SELECT code, discount_type, value, starts_at, ends_at, usage_cap, usage_count
FROM promo_codes
WHERE code = $1`

	var p domain.PromoCode
	err := r.queryRow(ctx, query, code).Scan(
		&p.Code, &p.Type, &p.Value, &p.StartsAt, &p.EndsAt, &p.UsageCap, &p.UsageCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PromoCode{}, domain.ErrPromoNotFound
		}
		return domain.PromoCode{}, fmt.Errorf("get promo: %w", err)
	}
	return p, nil
}

// RedeemPromo bumps the usage counter with the cap enforced in the statement
// itself, so concurrent redemptions can never exceed the cap.
func (r *PromoRepository) RedeemPromo(ctx context.Context, code string) (bool, error) {
	const stmt = `
UPDATE promo_codes
SET usage_count = usage_count + 1
WHERE code = $1 AND (usage_cap = 0 OR usage_count < usage_cap)`

	tag, err := r.exec(ctx, stmt, code)
	if err != nil {
		return false, fmt.Errorf("redeem promo: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
