// Package pricing computes the authoritative sale price for a listing at a
// point in time. Everything here is a pure function of its inputs; currency
// amounts stay unrounded until RoundCents is applied to the final total.
package pricing

import (
	"math"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

const defaultDeliveryFee = 50.0

// Engine resolves listing prices, delivery fees, and tax.
type Engine struct {
	taxRate            float64
	deliveryFees       map[string]float64
	defaultDeliveryFee float64
}

func NewEngine(taxRate float64, opts ...Option) *Engine {
	e := &Engine{
		taxRate:            taxRate,
		deliveryFees:       map[string]float64{},
		defaultDeliveryFee: defaultDeliveryFee,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Option func(*Engine)

// WithDeliveryFee sets the flat fee for a delivery category.
func WithDeliveryFee(category string, fee float64) Option {
	return func(e *Engine) {
		e.deliveryFees[category] = fee
	}
}

// WithDefaultDeliveryFee overrides the fee used for unknown categories.
func WithDefaultDeliveryFee(fee float64) Option {
	return func(e *Engine) {
		if fee >= 0 {
			e.defaultDeliveryFee = fee
		}
	}
}

// Quote is the pre-promo price of a single listing unit.
type Quote struct {
	Subtotal    float64
	DeliveryFee float64
}

// Compute resolves the listing's unit price at now and its flat delivery fee.
// Resolution order: scheduled sale price once effective, then the markdown
// schedule clamped at the reserve price, then the base price.
func (e *Engine) Compute(l domain.Listing, now time.Time) Quote {
	return Quote{
		Subtotal:    e.Subtotal(l, now),
		DeliveryFee: e.DeliveryFee(l.DeliveryCategory),
	}
}

// Subtotal resolves the listing's unit price at now.
func (e *Engine) Subtotal(l domain.Listing, now time.Time) float64 {
	if l.SalePrice != nil && l.SalePriceEffectiveAt != nil && !l.SalePriceEffectiveAt.After(now) {
		return *l.SalePrice
	}

	price := l.BasePrice
	elapsedDays := int(now.Sub(l.CreatedAt).Hours() / 24)
	stepped := false
	for _, step := range l.Markdowns {
		if step.AfterDays > elapsedDays {
			break
		}
		price = step.Price
		stepped = true
	}
	if stepped && price < l.ReservePrice {
		price = l.ReservePrice
	}
	return price
}

// DeliveryFee looks up the flat fee for a delivery category.
func (e *Engine) DeliveryFee(category string) float64 {
	if fee, ok := e.deliveryFees[category]; ok {
		return fee
	}
	return e.defaultDeliveryFee
}

// Tax computes tax on an already-discounted amount at the engine's rate.
func (e *Engine) Tax(amount float64) float64 {
	return amount * e.taxRate
}

// PromoResult describes the effect of applying a promo code.
type PromoResult struct {
	Subtotal    float64
	DeliveryFee float64
	Discount    float64
	Type        domain.DiscountType
}

// ApplyPromo applies a promo code to a subtotal and delivery fee. Percentage
// and fixed discounts reduce the item subtotal only and are clamped to
// [0, subtotal]. Free delivery zeroes the fee and reports the waived amount
// as the discount, leaving the subtotal untouched.
func ApplyPromo(subtotal, deliveryFee float64, promo domain.PromoCode) PromoResult {
	res := PromoResult{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Type:        promo.Type,
	}

	switch promo.Type {
	case domain.DiscountTypePercentage:
		res.Discount = clamp(subtotal*promo.Value/100, 0, subtotal)
		res.Subtotal = subtotal - res.Discount
	case domain.DiscountTypeFixedAmount:
		res.Discount = clamp(promo.Value, 0, subtotal)
		res.Subtotal = subtotal - res.Discount
	case domain.DiscountTypeFreeDelivery:
		res.Discount = deliveryFee
		res.DeliveryFee = 0
	}
	return res
}

// RoundCents rounds a currency amount to two decimal places. Applied to the
// final total only so intermediate steps do not compound rounding error.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a currency amount to the smallest unit for the payment
// provider.
func Cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
