package domain

import "time"

type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixedAmount  DiscountType = "fixed_amount"
	DiscountTypeFreeDelivery DiscountType = "free_delivery"
)

type PromoCode struct {
	Code       string
	Type       DiscountType
	Value      float64
	StartsAt   time.Time
	EndsAt     time.Time
	UsageCap   int
	UsageCount int
}

// ActiveAt reports whether the code is inside its activity window at t.
// Usage-cap enforcement happens atomically at redemption time.
func (p PromoCode) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// Exhausted reports whether the usage cap has been reached.
func (p PromoCode) Exhausted() bool {
	return p.UsageCap > 0 && p.UsageCount >= p.UsageCap
}
