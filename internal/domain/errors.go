package domain

import "errors"

var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingNotAvailable  = errors.New("listing not available")
	ErrListingAlreadyHeld   = errors.New("listing held by another buyer")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidID            = errors.New("invalid id")

	ErrCheckoutAlreadyOpen = errors.New("buyer already has an open checkout for this listing")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotPending   = errors.New("order not pending")
	ErrCheckoutExpired   = errors.New("checkout expired")
	ErrCheckoutNotValid  = errors.New("checkout no longer valid")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrDisputeWindowOver = errors.New("dispute window closed")
	ErrCartEmpty         = errors.New("cart is empty")

	ErrPromoNotFound  = errors.New("promo code not found")
	ErrPromoInactive  = errors.New("promo code not active")
	ErrPromoExhausted = errors.New("promo code usage cap reached")
)
