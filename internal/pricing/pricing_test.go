package pricing

import (
	"testing"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

func TestEngine_Subtotal(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(0.0825)

	t.Run("base price when nothing else applies", func(t *testing.T) {
		l := domain.Listing{BasePrice: 100, CreatedAt: created}
		if got := engine.Subtotal(l, created.Add(24*time.Hour)); got != 100 {
			t.Fatalf("expected 100, got %v", got)
		}
	})

	t.Run("scheduled sale price wins once effective", func(t *testing.T) {
		sale := 60.0
		effective := created.Add(48 * time.Hour)
		l := domain.Listing{
			BasePrice:            100,
			SalePrice:            &sale,
			SalePriceEffectiveAt: &effective,
			Markdowns:            []domain.MarkdownStep{{AfterDays: 1, Price: 90}},
			CreatedAt:            created,
		}
		if got := engine.Subtotal(l, effective.Add(time.Hour)); got != 60 {
			t.Fatalf("expected sale price 60, got %v", got)
		}
		if got := engine.Subtotal(l, effective.Add(-time.Hour)); got != 90 {
			t.Fatalf("expected markdown 90 before sale effective, got %v", got)
		}
	})

	t.Run("markdown schedule walks by elapsed days", func(t *testing.T) {
		l := domain.Listing{
			BasePrice: 100,
			Markdowns: []domain.MarkdownStep{
				{AfterDays: 7, Price: 80},
				{AfterDays: 14, Price: 60},
			},
			ReservePrice: 50,
			CreatedAt:    created,
		}
		if got := engine.Subtotal(l, created.Add(6*24*time.Hour)); got != 100 {
			t.Fatalf("day 6: expected 100, got %v", got)
		}
		if got := engine.Subtotal(l, created.Add(10*24*time.Hour)); got != 80 {
			t.Fatalf("day 10: expected 80, got %v", got)
		}
		if got := engine.Subtotal(l, created.Add(20*24*time.Hour)); got != 60 {
			t.Fatalf("day 20: expected 60, got %v", got)
		}
	})

	t.Run("markdowns clamp at reserve price", func(t *testing.T) {
		l := domain.Listing{
			BasePrice:    100,
			Markdowns:    []domain.MarkdownStep{{AfterDays: 7, Price: 40}},
			ReservePrice: 70,
			CreatedAt:    created,
		}
		if got := engine.Subtotal(l, created.Add(8*24*time.Hour)); got != 70 {
			t.Fatalf("expected reserve floor 70, got %v", got)
		}
	})
}

func TestEngine_DeliveryFee(t *testing.T) {
	t.Parallel()

	engine := NewEngine(0,
		WithDeliveryFee("standard", 50),
		WithDeliveryFee("bulky", 125),
		WithDefaultDeliveryFee(50),
	)

	if got := engine.DeliveryFee("bulky"); got != 125 {
		t.Fatalf("expected 125 for bulky, got %v", got)
	}
	if got := engine.DeliveryFee("unknown"); got != 50 {
		t.Fatalf("expected default 50, got %v", got)
	}
}

func TestApplyPromo(t *testing.T) {
	t.Parallel()

	t.Run("percentage discount on subtotal only", func(t *testing.T) {
		res := ApplyPromo(80, 50, domain.PromoCode{Type: domain.DiscountTypePercentage, Value: 10})
		if res.Subtotal != 72 {
			t.Fatalf("expected subtotal 72, got %v", res.Subtotal)
		}
		if res.DeliveryFee != 50 {
			t.Fatalf("delivery fee must be untouched, got %v", res.DeliveryFee)
		}
		if res.Discount != 8 {
			t.Fatalf("expected discount 8, got %v", res.Discount)
		}
	})

	t.Run("fixed discount never exceeds subtotal", func(t *testing.T) {
		res := ApplyPromo(30, 50, domain.PromoCode{Type: domain.DiscountTypeFixedAmount, Value: 45})
		if res.Subtotal != 0 {
			t.Fatalf("expected subtotal clamped to 0, got %v", res.Subtotal)
		}
		if res.Discount != 30 {
			t.Fatalf("expected discount clamped to 30, got %v", res.Discount)
		}
	})

	t.Run("negative subtotal is impossible", func(t *testing.T) {
		res := ApplyPromo(0, 50, domain.PromoCode{Type: domain.DiscountTypePercentage, Value: 200})
		if res.Subtotal < 0 {
			t.Fatalf("subtotal went negative: %v", res.Subtotal)
		}
	})

	t.Run("free delivery waives the fee and books it as discount", func(t *testing.T) {
		res := ApplyPromo(80, 50, domain.PromoCode{Type: domain.DiscountTypeFreeDelivery})
		if res.Subtotal != 80 {
			t.Fatalf("subtotal must be untouched, got %v", res.Subtotal)
		}
		if res.DeliveryFee != 0 {
			t.Fatalf("expected zero delivery fee, got %v", res.DeliveryFee)
		}
		if res.Discount != 50 {
			t.Fatalf("expected waived 50 as discount, got %v", res.Discount)
		}
	})
}

// Full walkthrough: $100 listing marked down to $80 after 7 days with a $70
// reserve, SAVE10 (10%), $50 flat delivery, 8.25% tax. Total comes to $132.07.
func TestPricing_CheckoutScenario(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(10 * 24 * time.Hour)

	engine := NewEngine(0.0825, WithDeliveryFee("standard", 50))
	listing := domain.Listing{
		BasePrice:        100,
		Markdowns:        []domain.MarkdownStep{{AfterDays: 7, Price: 80}},
		ReservePrice:     70,
		DeliveryCategory: "standard",
		CreatedAt:        created,
	}

	quote := engine.Compute(listing, now)
	if quote.Subtotal != 80 {
		t.Fatalf("expected subtotal 80, got %v", quote.Subtotal)
	}

	res := ApplyPromo(quote.Subtotal, quote.DeliveryFee, domain.PromoCode{
		Code:  "SAVE10",
		Type:  domain.DiscountTypePercentage,
		Value: 10,
	})
	if res.Subtotal != 72 {
		t.Fatalf("expected discounted subtotal 72, got %v", res.Subtotal)
	}

	tax := engine.Tax(res.Subtotal + res.DeliveryFee)
	total := RoundCents(res.Subtotal + res.DeliveryFee + tax)
	if total != 132.07 {
		t.Fatalf("expected total 132.07, got %v", total)
	}
}

func TestRoundCents(t *testing.T) {
	t.Parallel()

	if got := RoundCents(132.065); got != 132.07 {
		t.Fatalf("expected 132.07, got %v", got)
	}
	if got := Cents(132.07); got != 13207 {
		t.Fatalf("expected 13207 cents, got %d", got)
	}
}
