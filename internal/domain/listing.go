package domain

import "time"

type ListingStatus string

const (
	ListingStatusActive     ListingStatus = "active"
	ListingStatusProcessing ListingStatus = "processing"
	ListingStatusSold       ListingStatus = "sold"
)

// MarkdownStep lowers the listing price once the given number of days has
// elapsed since the listing was created. Steps are ordered by AfterDays.
type MarkdownStep struct {
	AfterDays int
	Price     float64
}

// Listing is a consigned item for sale. Hold-related fields (Status, IsHeld,
// HeldUntil, HeldBy) are only ever written through the reservation manager.
type Listing struct {
	ID                   string
	PublicID             string
	SellerID             string
	Title                string
	BasePrice            float64
	SalePrice            *float64
	SalePriceEffectiveAt *time.Time
	Markdowns            []MarkdownStep
	ReservePrice         float64
	Quantity             int
	DeliveryCategory     string
	Status               ListingStatus
	IsHeld               bool
	HeldUntil            *time.Time
	HeldBy               string
	CreatedAt            time.Time
}

// HeldAt reports whether the listing carries a live hold at t. Sold listings
// are held permanently; active holds expire at HeldUntil.
func (l Listing) HeldAt(t time.Time) bool {
	if l.Status == ListingStatusSold {
		return true
	}
	return l.IsHeld && l.HeldUntil != nil && l.HeldUntil.After(t)
}
