package app

import (
	"context"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/clock"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type ListingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	// AcquireHold is a single conditional update. It succeeds only when the
	// listing is active with no live hold and has enough quantity. Returns
	// false when the precondition did not match.
	AcquireHold(ctx context.Context, listingID, buyerID string, qty int, until, now time.Time) (bool, error)
	ExtendHold(ctx context.Context, listingID, buyerID string, until, now time.Time) (bool, error)
	ReleaseHold(ctx context.Context, listingID string) error
	FinalizeHold(ctx context.Context, listingID string) error
}

type CartRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AddItem(ctx context.Context, buyerID, listingID string, qty int) error
	RemoveItem(ctx context.Context, buyerID, listingID string) (bool, error)
	ListItems(ctx context.Context, buyerID string) ([]domain.CartItem, error)
}

// ReservationManager owns every write to the hold-related listing fields.
// No other code path touches status, is_held, held_until, or held_by.
type ReservationManager struct {
	listings ListingRepository
	carts    CartRepository
	clock    clock.Clock
	holdTTL  time.Duration
}

const defaultHoldTTL = 10 * time.Minute

func NewReservationManager(listings ListingRepository, carts CartRepository, clk clock.Clock, opts ...ReservationOption) *ReservationManager {
	m := &ReservationManager{
		listings: listings,
		carts:    carts,
		clock:    clk,
		holdTTL:  defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ReservationOption func(*ReservationManager)

// WithHoldTTL overrides the default lifetime of new holds.
func WithHoldTTL(d time.Duration) ReservationOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.holdTTL = d
		}
	}
}

// HoldTTL reports the lifetime applied to new holds.
func (m *ReservationManager) HoldTTL() time.Duration {
	return m.holdTTL
}

// HoldResult reports a granted hold and whether the listing was removed from
// the buyer's cart as part of acquisition.
type HoldResult struct {
	Token           domain.HoldToken
	RemovedFromCart bool
}

// AcquireHold atomically claims a listing for a buyer until now+TTL. A buyer
// who already holds the listing gets ErrCheckoutAlreadyOpen: one hold backs
// exactly one pending order, so the open checkout must be resumed, not
// re-acquired. On success the listing is removed from the buyer's cart in the
// same transaction.
func (m *ReservationManager) AcquireHold(ctx context.Context, listingID, buyerID string, qty int) (HoldResult, error) {
	if qty <= 0 {
		return HoldResult{}, domain.ErrInvalidQuantity
	}

	now := m.clock.Now()
	until := now.Add(m.holdTTL)
	var result HoldResult

	err := m.listings.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := m.listings.AcquireHold(txCtx, listingID, buyerID, qty, until, now)
		if err != nil {
			return err
		}
		if !ok {
			return m.classifyFailure(txCtx, listingID, buyerID, qty, now)
		}

		removed, err := m.carts.RemoveItem(txCtx, buyerID, listingID)
		if err != nil {
			return err
		}

		result = HoldResult{
			Token: domain.HoldToken{
				ListingID: listingID,
				BuyerID:   buyerID,
				ExpiresAt: until,
			},
			RemovedFromCart: removed,
		}
		return nil
	})
	if err != nil {
		return HoldResult{}, err
	}
	return result, nil
}

// ExtendHold re-affirms a live hold to expire at until. Only the holding
// buyer may extend.
func (m *ReservationManager) ExtendHold(ctx context.Context, listingID, buyerID string, until time.Time) error {
	ok, err := m.listings.ExtendHold(ctx, listingID, buyerID, until, m.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCheckoutNotValid
	}
	return nil
}

// ReleaseHold returns a held listing to active. Releasing a listing that is
// not held is a no-op, so the sweeper and a user cancel can race safely.
func (m *ReservationManager) ReleaseHold(ctx context.Context, listingID string) error {
	return m.listings.ReleaseHold(ctx, listingID)
}

// FinalizeHold marks a held listing sold. Sold listings stay held permanently
// and are never reclaimed by the sweeper.
func (m *ReservationManager) FinalizeHold(ctx context.Context, listingID string) error {
	return m.listings.FinalizeHold(ctx, listingID)
}

// classifyFailure turns a failed conditional update into the specific
// precondition error the caller can act on.
func (m *ReservationManager) classifyFailure(ctx context.Context, listingID, buyerID string, qty int, now time.Time) error {
	listing, err := m.listings.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	switch {
	case listing.Status == domain.ListingStatusSold:
		return domain.ErrListingNotAvailable
	case listing.Quantity < qty:
		return domain.ErrInsufficientQuantity
	case listing.HeldAt(now) && listing.HeldBy == buyerID:
		return domain.ErrCheckoutAlreadyOpen
	case listing.HeldAt(now):
		return domain.ErrListingAlreadyHeld
	default:
		return domain.ErrListingNotAvailable
	}
}
