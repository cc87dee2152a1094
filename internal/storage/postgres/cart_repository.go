package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type CartRepository struct {
	db
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db{pool: pool}}
}

// AddItem is idempotent: re-adding a listing already in the buyer's cart
// leaves the existing row untouched. That keeps the release path's cart
// restore from ever duplicating an item.
func (r *CartRepository) AddItem(ctx context.Context, buyerID, listingID string, qty int) error {
	const stmt = `
INSERT INTO cart_items (buyer_id, listing_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (buyer_id, listing_id) DO NOTHING`

	if _, err := r.exec(ctx, stmt, buyerID, listingID, qty); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// RemoveItem reports whether a row was actually removed, so hold acquisition
// can record whether release should restore the item later.
func (r *CartRepository) RemoveItem(ctx context.Context, buyerID, listingID string) (bool, error) {
	const stmt = `DELETE FROM cart_items WHERE buyer_id = $1 AND listing_id = $2`

	tag, err := r.exec(ctx, stmt, buyerID, listingID)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CartRepository) ListItems(ctx context.Context, buyerID string) ([]domain.CartItem, error) {
	const query = `
SELECT buyer_id, listing_id, quantity, created_at
FROM cart_items
WHERE buyer_id = $1
ORDER BY created_at`

	rows, err := r.query(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.BuyerID, &item.ListingID, &item.Quantity, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
