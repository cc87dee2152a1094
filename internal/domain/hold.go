package domain

import "time"

// HoldToken is handed back to the caller after a successful hold acquisition.
// The listing row itself is the system of record; the token just carries what
// the checkout flow needs to reference the claim.
type HoldToken struct {
	ListingID string
	BuyerID   string
	ExpiresAt time.Time
}
