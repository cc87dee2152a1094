package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type ListingRepository struct {
	db
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{db{pool: pool}}
}

func (r *ListingRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	const query = `
SELECT id, public_id, seller_id, title, base_price, sale_price, sale_price_effective_at,
       reserve_price, quantity, delivery_category, status, is_held, held_until, held_by, created_at
FROM listings
WHERE id = $1`

	var l domain.Listing
	var heldBy *string
	err := r.queryRow(ctx, query, id).Scan(
		&l.ID, &l.PublicID, &l.SellerID, &l.Title, &l.BasePrice, &l.SalePrice, &l.SalePriceEffectiveAt,
		&l.ReservePrice, &l.Quantity, &l.DeliveryCategory, &l.Status, &l.IsHeld, &l.HeldUntil, &heldBy, &l.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Listing{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if heldBy != nil {
		l.HeldBy = *heldBy
	}

	markdowns, err := r.listMarkdowns(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Markdowns = markdowns
	return l, nil
}

func (r *ListingRepository) listMarkdowns(ctx context.Context, listingID string) ([]domain.MarkdownStep, error) {
	const query = `
SELECT after_days, price
FROM listing_markdowns
WHERE listing_id = $1
ORDER BY after_days`

	rows, err := r.query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("list markdowns: %w", err)
	}
	defer rows.Close()

	var steps []domain.MarkdownStep
	for rows.Next() {
		var step domain.MarkdownStep
		if err := rows.Scan(&step.AfterDays, &step.Price); err != nil {
			return nil, fmt.Errorf("scan markdown: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// AcquireHold is the single check-and-set that closes the two-buyer race: the
// availability check and the hold write happen in one statement. Only open
// listings match; a buyer's own live hold is never re-acquired, so one hold
// backs at most one pending order. Re-affirming a hold goes through ExtendHold.
func (r *ListingRepository) AcquireHold(ctx context.Context, listingID, buyerID string, qty int, until, now time.Time) (bool, error) {
	const stmt = `
UPDATE listings
SET status = 'processing', is_held = TRUE, held_until = $4, held_by = $2
WHERE id = $1
  AND quantity >= $3
  AND status = 'active'
  AND (is_held = FALSE OR held_until IS NULL OR held_until <= $5)`

	tag, err := r.exec(ctx, stmt, listingID, buyerID, qty, until, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("acquire hold: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ListingRepository) ExtendHold(ctx context.Context, listingID, buyerID string, until, now time.Time) (bool, error) {
	const stmt = `
UPDATE listings
SET held_until = $3
WHERE id = $1 AND status = 'processing' AND held_by = $2 AND is_held AND held_until > $4`

	tag, err := r.exec(ctx, stmt, listingID, buyerID, until, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("extend hold: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseHold restores a held listing to active. Matching zero rows is fine:
// the listing was already released, or sold and therefore never released.
func (r *ListingRepository) ReleaseHold(ctx context.Context, listingID string) error {
	const stmt = `
UPDATE listings
SET status = 'active', is_held = FALSE, held_until = NULL, held_by = NULL
WHERE id = $1 AND status = 'processing'`

	if _, err := r.exec(ctx, stmt, listingID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("release hold: %w", err)
	}
	return nil
}

// FinalizeHold marks a held listing sold. The hold stays in place with no
// expiry; sold items are never reclaimed.
func (r *ListingRepository) FinalizeHold(ctx context.Context, listingID string) error {
	const stmt = `
UPDATE listings
SET status = 'sold', held_until = NULL
WHERE id = $1 AND status = 'processing'`

	if _, err := r.exec(ctx, stmt, listingID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("finalize hold: %w", err)
	}
	return nil
}
