package domain

import "time"

// CartItem is one listing in a buyer's cart. A listing referenced by the
// buyer's own PENDING order is never simultaneously in their cart.
type CartItem struct {
	BuyerID   string
	ListingID string
	Quantity  int
	CreatedAt time.Time
}
