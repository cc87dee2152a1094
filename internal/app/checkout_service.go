package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/clock"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/logkey"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/pricing"
)

// SessionRef identifies an external payment session. Sessions are immutable
// once created; a resumed checkout gets a fresh one.
type SessionRef struct {
	ID          string
	RedirectURL string
}

// PaymentProvider opens external checkout sessions. Pure pass-through, no
// business state. Sessions are immutable; superseding one means expiring it
// and opening a replacement.
type PaymentProvider interface {
	CreateSession(ctx context.Context, order domain.Order) (SessionRef, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

type PromoRepository interface {
	GetPromo(ctx context.Context, code string) (domain.PromoCode, error)
	// RedeemPromo bumps the usage counter, guarded by the usage cap.
	// Returns false when the cap was already reached.
	RedeemPromo(ctx context.Context, code string) (bool, error)
}

const defaultResumeExtension = 5 * time.Minute

// CheckoutService drives the checkout flow: price the attempt, open the
// provider session, then claim the hold and create the PENDING order in one
// transaction. A provider failure leaves no local state behind.
type CheckoutService struct {
	orders          OrderRepository
	listings        ListingRepository
	carts           CartRepository
	promos          PromoRepository
	reservations    *ReservationManager
	provider        PaymentProvider
	pricer          *pricing.Engine
	logger          *slog.Logger
	clock           clock.Clock
	resumeExtension time.Duration
}

func NewCheckoutService(
	orders OrderRepository,
	listings ListingRepository,
	carts CartRepository,
	promos PromoRepository,
	reservations *ReservationManager,
	provider PaymentProvider,
	pricer *pricing.Engine,
	clk clock.Clock,
	opts ...CheckoutOption,
) *CheckoutService {
	s := &CheckoutService{
		orders:          orders,
		listings:        listings,
		carts:           carts,
		promos:          promos,
		reservations:    reservations,
		provider:        provider,
		pricer:          pricer,
		logger:          slog.Default(),
		clock:           clk,
		resumeExtension: defaultResumeExtension,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CheckoutOption func(*CheckoutService)

// WithResumeExtension overrides the fixed increment added on resume.
func WithResumeExtension(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.resumeExtension = d
		}
	}
}

// WithCheckoutLogger overrides the service logger.
func WithCheckoutLogger(l *slog.Logger) CheckoutOption {
	return func(s *CheckoutService) {
		if l != nil {
			s.logger = l
		}
	}
}

type CreateCheckoutInput struct {
	ListingID string
	BuyerID   string
	Quantity  int
	PromoCode string
}

type CheckoutResult struct {
	Order       domain.Order
	RedirectURL string
}

// CreateCheckout starts a checkout for a single listing.
func (s *CheckoutService) CreateCheckout(ctx context.Context, in CreateCheckoutInput) (CheckoutResult, error) {
	if in.Quantity <= 0 {
		return CheckoutResult{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()

	// A buyer who already has this listing on hold gets their open checkout
	// back instead of a second PENDING order stacked on the same hold.
	existing, err := s.orders.GetPendingOrderForListing(ctx, in.BuyerID, in.ListingID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if existing != nil {
		return s.ResumeCheckout(ctx, existing.ID)
	}

	listing, err := s.listings.GetListing(ctx, in.ListingID)
	if err != nil {
		return CheckoutResult{}, err
	}

	promo, err := s.loadPromo(ctx, in.PromoCode, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	quote := s.pricer.Compute(listing, now)
	order := s.buildOrder(in.BuyerID, listing.SellerID, []domain.OrderLine{{
		ListingID: listing.ID,
		Title:     listing.Title,
		Quantity:  in.Quantity,
		UnitPrice: quote.Subtotal,
	}}, quote.DeliveryFee, promo, now)

	session, err := s.provider.CreateSession(ctx, order)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("open checkout session: %w", err)
	}
	order.SessionID = session.ID

	err = s.orders.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.reservations.AcquireHold(txCtx, in.ListingID, in.BuyerID, in.Quantity)
		if err != nil {
			return err
		}
		order.FromCart = hold.RemovedFromCart
		order.CheckoutExpiresAt = &hold.Token.ExpiresAt

		if err := s.redeemPromo(txCtx, promo); err != nil {
			return err
		}
		if err := s.orders.CreateOrder(txCtx, order); err != nil {
			return err
		}
		return s.appendCreation(txCtx, order, now)
	})
	if err != nil {
		// The provider session is orphaned; it expires on its own.
		return CheckoutResult{}, err
	}

	s.logger.Info("checkout created",
		slog.String(logkey.OrderID, order.ID),
		slog.String(logkey.ListingID, in.ListingID),
		slog.String(logkey.BuyerID, in.BuyerID),
	)
	return CheckoutResult{Order: order, RedirectURL: session.RedirectURL}, nil
}

type CartCheckoutInput struct {
	BuyerID   string
	PromoCode string
}

// CreateCartCheckout starts a checkout covering every item in the buyer's
// cart. Holds are acquired per line as a set: if any listing cannot be held
// the whole attempt fails and nothing is retained.
func (s *CheckoutService) CreateCartCheckout(ctx context.Context, in CartCheckoutInput) (CheckoutResult, error) {
	now := s.clock.Now()

	items, err := s.carts.ListItems(ctx, in.BuyerID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if len(items) == 0 {
		return CheckoutResult{}, domain.ErrCartEmpty
	}

	promo, err := s.loadPromo(ctx, in.PromoCode, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	var lines []domain.OrderLine
	var deliveryFee float64
	sellerID := ""
	for _, item := range items {
		listing, err := s.listings.GetListing(ctx, item.ListingID)
		if err != nil {
			return CheckoutResult{}, err
		}
		quote := s.pricer.Compute(listing, now)
		lines = append(lines, domain.OrderLine{
			ListingID: listing.ID,
			Title:     listing.Title,
			Quantity:  item.Quantity,
			UnitPrice: quote.Subtotal,
		})
		deliveryFee += quote.DeliveryFee
		if sellerID == "" {
			sellerID = listing.SellerID
		}
	}

	order := s.buildOrder(in.BuyerID, sellerID, lines, deliveryFee, promo, now)
	order.FromCart = true

	session, err := s.provider.CreateSession(ctx, order)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("open checkout session: %w", err)
	}
	order.SessionID = session.ID

	err = s.orders.WithTx(ctx, func(txCtx context.Context) error {
		for _, line := range lines {
			hold, err := s.reservations.AcquireHold(txCtx, line.ListingID, in.BuyerID, line.Quantity)
			if err != nil {
				return err
			}
			order.CheckoutExpiresAt = &hold.Token.ExpiresAt
		}
		if err := s.redeemPromo(txCtx, promo); err != nil {
			return err
		}
		if err := s.orders.CreateOrder(txCtx, order); err != nil {
			return err
		}
		return s.appendCreation(txCtx, order, now)
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	s.logger.Info("cart checkout created",
		slog.String(logkey.OrderID, order.ID),
		slog.String(logkey.BuyerID, in.BuyerID),
		slog.Int("lines", len(lines)),
	)
	return CheckoutResult{Order: order, RedirectURL: session.RedirectURL}, nil
}

// ResumeCheckout extends a still-pending, not-yet-expired checkout by a fixed
// increment, re-affirms the holds to match, and opens a fresh provider
// session for the resumed attempt.
func (s *CheckoutService) ResumeCheckout(ctx context.Context, orderID string) (CheckoutResult, error) {
	now := s.clock.Now()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return CheckoutResult{}, domain.ErrOrderNotPending
	}
	if order.CheckoutExpiresAt == nil || !order.CheckoutExpiresAt.After(now) {
		return CheckoutResult{}, domain.ErrCheckoutExpired
	}

	session, err := s.provider.CreateSession(ctx, order)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("refresh checkout session: %w", err)
	}

	var deadline *time.Time
	err = s.orders.WithTx(ctx, func(txCtx context.Context) error {
		deadline, err = s.orders.ExtendCheckout(txCtx, orderID, s.resumeExtension, now)
		if err != nil {
			return err
		}
		if deadline == nil {
			// Cancelled or expired since the read above; the sweeper won.
			return domain.ErrCheckoutExpired
		}
		for _, line := range order.Lines {
			if err := s.reservations.ExtendHold(txCtx, line.ListingID, order.BuyerID, *deadline); err != nil {
				return err
			}
		}
		return s.orders.SetSession(txCtx, orderID, session.ID)
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	// The superseded session must stop being payable, or a stale tab can
	// complete a payment no order references. Best effort: it expires on its
	// own eventually, and the expiry webhook matches orders by current
	// session so a late event for it cannot cancel the resumed order.
	if old := order.SessionID; old != "" && old != session.ID {
		if err := s.provider.ExpireSession(ctx, old); err != nil {
			s.logger.Warn("expire superseded session",
				slog.String(logkey.OrderID, orderID),
				slog.String(logkey.SessionID, old),
				slog.String(logkey.Error, err.Error()),
			)
		}
	}

	order.SessionID = session.ID
	order.CheckoutExpiresAt = deadline
	return CheckoutResult{Order: order, RedirectURL: session.RedirectURL}, nil
}

func (s *CheckoutService) buildOrder(buyerID, sellerID string, lines []domain.OrderLine, deliveryFee float64, promo *domain.PromoCode, now time.Time) domain.Order {
	subtotal := 0.0
	for _, line := range lines {
		subtotal += line.UnitPrice * float64(line.Quantity)
	}

	discount := 0.0
	promoCode := ""
	if promo != nil {
		res := pricing.ApplyPromo(subtotal, deliveryFee, *promo)
		subtotal = res.Subtotal
		deliveryFee = res.DeliveryFee
		discount = res.Discount
		promoCode = promo.Code
	}

	tax := s.pricer.Tax(subtotal + deliveryFee)
	amount := pricing.RoundCents(subtotal + deliveryFee + tax)

	return domain.Order{
		ID:              uuid.NewString(),
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Status:          domain.OrderStatusPending,
		Amount:          amount,
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		Tax:             tax,
		PromoCode:       promoCode,
		PromoDiscount:   discount,
		Lines:           lines,
		StatusUpdatedAt: now,
		StatusUpdatedBy: buyerID,
		CreatedAt:       now,
	}
}

func (s *CheckoutService) loadPromo(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	if code == "" {
		return nil, nil
	}
	promo, err := s.promos.GetPromo(ctx, code)
	if err != nil {
		return nil, err
	}
	if !promo.ActiveAt(now) {
		return nil, domain.ErrPromoInactive
	}
	if promo.Exhausted() {
		return nil, domain.ErrPromoExhausted
	}
	return &promo, nil
}

func (s *CheckoutService) redeemPromo(ctx context.Context, promo *domain.PromoCode) error {
	if promo == nil {
		return nil
	}
	ok, err := s.promos.RedeemPromo(ctx, promo.Code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrPromoExhausted
	}
	return nil
}

func (s *CheckoutService) appendCreation(ctx context.Context, order domain.Order, at time.Time) error {
	return s.orders.AppendEvent(ctx, domain.OrderEvent{
		OrderID:   order.ID,
		NewStatus: domain.OrderStatusPending,
		Actor:     order.BuyerID,
		Metadata:  map[string]string{"session_id": order.SessionID},
		CreatedAt: at,
	})
}
