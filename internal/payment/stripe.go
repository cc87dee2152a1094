// Package payment adapts the external payment provider. It keeps no state of
// its own; every call is a pass-through carrying the order's computed total.
package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/app"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/pricing"
)

// StripeBridge opens Stripe Checkout sessions for order attempts. Sessions
// are never mutated after creation; a resumed checkout gets a new one.
type StripeBridge struct {
	successURL string
	cancelURL  string
	currency   string
}

func NewStripeBridge(apiKey, successURL, cancelURL string) *StripeBridge {
	stripe.Key = apiKey
	return &StripeBridge{
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   string(stripe.CurrencyUSD),
	}
}

func (b *StripeBridge) CreateSession(ctx context.Context, order domain.Order) (app.SessionRef, error) {
	// Itemize when the amounts line up one-to-one. A promo discount changes
	// the payable subtotal, so in that case the session carries a single
	// aggregate line matching the order amount exactly.
	var lineItems []*stripe.CheckoutSessionLineItemParams
	if order.PromoDiscount == 0 {
		lineItems = make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Lines)+1)
		for _, line := range order.Lines {
			lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(b.currency),
					UnitAmount: stripe.Int64(pricing.Cents(line.UnitPrice)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(line.Title),
					},
				},
				Quantity: stripe.Int64(int64(line.Quantity)),
			})
		}
		// Delivery and tax ride as one extra line so the session total
		// matches the order amount the pricing engine computed.
		if extra := order.Amount - lineTotal(order.Lines); extra > 0 {
			lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(b.currency),
					UnitAmount: stripe.Int64(pricing.Cents(extra)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Delivery & tax"),
					},
				},
				Quantity: stripe.Int64(1),
			})
		}
	} else {
		lineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(b.currency),
				UnitAmount: stripe.Int64(pricing.Cents(order.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(orderLabel(order)),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		SubmitType: stripe.String("pay"),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(b.successURL),
		CancelURL:  stripe.String(b.cancelURL),
		Metadata: map[string]string{
			"order_id": order.ID,
			"buyer_id": order.BuyerID,
		},
	}

	s, err := session.New(params)
	if err != nil {
		return app.SessionRef{}, fmt.Errorf("create stripe session: %w", err)
	}
	return app.SessionRef{ID: s.ID, RedirectURL: s.URL}, nil
}

// ExpireSession invalidates a superseded session so it cannot be paid after a
// resumed checkout replaced it.
func (b *StripeBridge) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := session.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire stripe session: %w", err)
	}
	return nil
}

func orderLabel(order domain.Order) string {
	if len(order.Lines) == 1 {
		return order.Lines[0].Title
	}
	return fmt.Sprintf("%s and %d more", order.Lines[0].Title, len(order.Lines)-1)
}

func lineTotal(lines []domain.OrderLine) float64 {
	total := 0.0
	for _, line := range lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}
