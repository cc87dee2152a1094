package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/clock"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/logkey"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error)
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error)
	// GetPendingOrderForListing finds the buyer's open PENDING order that
	// references the listing, if any.
	GetPendingOrderForListing(ctx context.Context, buyerID, listingID string) (*domain.Order, error)
	// UpdateStatus is a conditional update guarded on the current status.
	// Returns false when the order was no longer in the expected status.
	UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error)
	SetSession(ctx context.Context, orderID, sessionID string) error
	// ExtendCheckout pushes checkout_expires_at for a still-pending,
	// not-yet-expired order and returns the new deadline.
	ExtendCheckout(ctx context.Context, orderID string, extension time.Duration, now time.Time) (*time.Time, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListContestElapsed(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	AppendEvent(ctx context.Context, ev domain.OrderEvent) error
}

// StatusUpdate describes one guarded order transition.
type StatusUpdate struct {
	OrderID     string
	From        domain.OrderStatus
	To          domain.OrderStatus
	Actor       string
	At          time.Time
	DeliveredAt *time.Time
}

// Notifier delivers fire-and-forget notifications. Failures are logged and
// swallowed; they never roll back a transition.
type Notifier interface {
	Send(ctx context.Context, recipient, kind string, data map[string]string) error
}

const (
	ActorSweeper  = "sweeper"
	ActorProvider = "payment_provider"

	NotifyOrderPaid      = "order_paid"
	NotifyOrderCancelled = "order_cancelled"
	NotifyOrderDelivered = "order_delivered"
	NotifyOrderFinalized = "order_finalized"
)

const defaultContestWindow = 24 * time.Hour

// OrderService owns the order state machine. Every transition goes through a
// guarded update and appends to the immutable status history.
type OrderService struct {
	orders        OrderRepository
	reservations  *ReservationManager
	carts         CartRepository
	notifier      Notifier
	logger        *slog.Logger
	clock         clock.Clock
	contestWindow time.Duration
}

func NewOrderService(orders OrderRepository, reservations *ReservationManager, carts CartRepository, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		orders:        orders,
		reservations:  reservations,
		carts:         carts,
		logger:        slog.Default(),
		clock:         clk,
		contestWindow: defaultContestWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type OrderServiceOption func(*OrderService)

// WithContestWindow overrides the dispute window that starts at delivery.
func WithContestWindow(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.contestWindow = d
		}
	}
}

// WithOrderNotifier attaches a notification sink for lifecycle events.
func WithOrderNotifier(n Notifier) OrderServiceOption {
	return func(s *OrderService) {
		s.notifier = n
	}
}

// WithOrderLogger overrides the service logger.
func WithOrderLogger(l *slog.Logger) OrderServiceOption {
	return func(s *OrderService) {
		if l != nil {
			s.logger = l
		}
	}
}

// ContestWindow reports the configured dispute window.
func (s *OrderService) ContestWindow() time.Duration {
	return s.contestWindow
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// MarkPaid finalizes the order identified by the provider session. Duplicate
// confirmations for an already-paid order are no-ops. A confirmation arriving
// after the sweep already cancelled the order reports ErrCheckoutNotValid so
// the caller can reconcile with the provider.
func (s *OrderService) MarkPaid(ctx context.Context, sessionID string) (domain.Order, error) {
	now := s.clock.Now()
	var result domain.Order
	var confirmed bool

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		ref, err := s.orders.GetOrderBySession(txCtx, sessionID)
		if err != nil {
			return err
		}
		if ref == nil {
			return domain.ErrOrderNotFound
		}

		order, err := s.orders.GetOrderForUpdate(txCtx, ref.ID)
		if err != nil {
			return err
		}

		switch order.Status {
		case domain.OrderStatusPending:
			// fall through to the transition below
		case domain.OrderStatusCancelled:
			return domain.ErrCheckoutNotValid
		default:
			// Already paid (possibly further along). Duplicate webhook.
			result = order
			return nil
		}

		ok, err := s.orders.UpdateStatus(txCtx, StatusUpdate{
			OrderID: order.ID,
			From:    domain.OrderStatusPending,
			To:      domain.OrderStatusPaid,
			Actor:   ActorProvider,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrCheckoutNotValid
		}

		for _, line := range order.Lines {
			if err := s.reservations.FinalizeHold(txCtx, line.ListingID); err != nil {
				return err
			}
		}

		if err := s.appendTransition(txCtx, order, domain.OrderStatusPaid, ActorProvider, map[string]string{"session_id": sessionID}, now); err != nil {
			return err
		}

		order.Status = domain.OrderStatusPaid
		order.StatusUpdatedAt = now
		order.StatusUpdatedBy = ActorProvider
		result = order
		confirmed = true
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if confirmed {
		s.notify(ctx, result.BuyerID, NotifyOrderPaid, map[string]string{
			"order_id": result.ID,
		})
	}
	return result, nil
}

// CancelPending transitions a PENDING order to CANCELLED, releases its holds,
// and restores the buyer's cart when the order came from it. The status guard
// makes concurrent invocations (sweeper vs user cancel vs webhook failure)
// collapse to exactly one transition; the losers report false.
func (s *OrderService) CancelPending(ctx context.Context, orderID, actor string) (bool, error) {
	now := s.clock.Now()
	var order domain.Order
	var transitioned bool

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return nil
		}

		ok, err := s.orders.UpdateStatus(txCtx, StatusUpdate{
			OrderID: order.ID,
			From:    domain.OrderStatusPending,
			To:      domain.OrderStatusCancelled,
			Actor:   actor,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		for _, line := range order.Lines {
			if err := s.reservations.ReleaseHold(txCtx, line.ListingID); err != nil {
				return err
			}
			if order.FromCart {
				// Idempotent add: never duplicates an item the buyer re-added.
				if err := s.carts.AddItem(txCtx, order.BuyerID, line.ListingID, line.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.appendTransition(txCtx, order, domain.OrderStatusCancelled, actor, nil, now); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if transitioned {
		s.notify(ctx, order.BuyerID, NotifyOrderCancelled, map[string]string{
			"order_id": order.ID,
		})
	}
	return transitioned, nil
}

// CancelBySession cancels the pending order the session currently references.
// A superseded or unknown session matches no order, so a stale expiry event
// can never cancel a checkout that moved on to a fresh session.
func (s *OrderService) CancelBySession(ctx context.Context, sessionID, actor string) (bool, error) {
	ref, err := s.orders.GetOrderBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if ref == nil {
		return false, nil
	}
	return s.CancelPending(ctx, ref.ID, actor)
}

// Advance moves a paid order through the fulfillment states. Reaching
// DELIVERED stamps deliveredAt and starts the contest window.
func (s *OrderService) Advance(ctx context.Context, orderID string, to domain.OrderStatus, actor string) (domain.Order, error) {
	switch to {
	case domain.OrderStatusProcessing, domain.OrderStatusScheduled, domain.OrderStatusEnRoute, domain.OrderStatusDelivered:
	default:
		return domain.Order{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	var result domain.Order

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, to) {
			return domain.ErrInvalidTransition
		}

		upd := StatusUpdate{
			OrderID: order.ID,
			From:    order.Status,
			To:      to,
			Actor:   actor,
			At:      now,
		}
		if to == domain.OrderStatusDelivered {
			upd.DeliveredAt = &now
		}

		ok, err := s.orders.UpdateStatus(txCtx, upd)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if err := s.appendTransition(txCtx, order, to, actor, nil, now); err != nil {
			return err
		}

		order.Status = to
		order.StatusUpdatedAt = now
		order.StatusUpdatedBy = actor
		if upd.DeliveredAt != nil {
			order.DeliveredAt = upd.DeliveredAt
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if to == domain.OrderStatusDelivered {
		s.notify(ctx, result.BuyerID, NotifyOrderDelivered, map[string]string{
			"order_id": result.ID,
		})
	}
	return result, nil
}

// Finalize moves a delivered order to FINALIZED, either by explicit admin
// action or by the sweeper once the contest window has elapsed. Finalization
// triggers the downstream seller payout. The returned bool reports whether
// this call performed the transition; an already-finalized order is a no-op.
func (s *OrderService) Finalize(ctx context.Context, orderID, actor string) (domain.Order, bool, error) {
	now := s.clock.Now()
	var result domain.Order
	var finalized bool

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusFinalized {
			result = order
			return nil
		}
		if order.Status != domain.OrderStatusDelivered {
			return domain.ErrInvalidTransition
		}

		ok, err := s.orders.UpdateStatus(txCtx, StatusUpdate{
			OrderID: order.ID,
			From:    domain.OrderStatusDelivered,
			To:      domain.OrderStatusFinalized,
			Actor:   actor,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if err := s.appendTransition(txCtx, order, domain.OrderStatusFinalized, actor, nil, now); err != nil {
			return err
		}

		order.Status = domain.OrderStatusFinalized
		order.StatusUpdatedAt = now
		order.StatusUpdatedBy = actor
		result = order
		finalized = true
		return nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}

	if finalized {
		s.notify(ctx, result.SellerID, NotifyOrderFinalized, map[string]string{
			"order_id": result.ID,
		})
	}
	return result, finalized, nil
}

// OpenDispute raises a buyer dispute within the contest window.
func (s *OrderService) OpenDispute(ctx context.Context, orderID, actor string) (domain.Order, error) {
	now := s.clock.Now()
	var result domain.Order

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, domain.OrderStatusDisputed) {
			return domain.ErrInvalidTransition
		}
		if order.DeliveredAt == nil || now.Sub(*order.DeliveredAt) > s.contestWindow {
			return domain.ErrDisputeWindowOver
		}

		ok, err := s.orders.UpdateStatus(txCtx, StatusUpdate{
			OrderID: order.ID,
			From:    order.Status,
			To:      domain.OrderStatusDisputed,
			Actor:   actor,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if err := s.appendTransition(txCtx, order, domain.OrderStatusDisputed, actor, nil, now); err != nil {
			return err
		}

		order.Status = domain.OrderStatusDisputed
		order.StatusUpdatedAt = now
		order.StatusUpdatedBy = actor
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// ResolveDispute settles a dispute to RETURNED, REFUNDED, or FINALIZED.
func (s *OrderService) ResolveDispute(ctx context.Context, orderID string, outcome domain.OrderStatus, actor string) (domain.Order, error) {
	if !domain.CanTransition(domain.OrderStatusDisputed, outcome) {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	var result domain.Order

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusDisputed {
			return domain.ErrInvalidTransition
		}

		ok, err := s.orders.UpdateStatus(txCtx, StatusUpdate{
			OrderID: order.ID,
			From:    domain.OrderStatusDisputed,
			To:      outcome,
			Actor:   actor,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		if err := s.appendTransition(txCtx, order, outcome, actor, nil, now); err != nil {
			return err
		}

		order.Status = outcome
		order.StatusUpdatedAt = now
		order.StatusUpdatedBy = actor
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

func (s *OrderService) appendTransition(ctx context.Context, order domain.Order, to domain.OrderStatus, actor string, metadata map[string]string, at time.Time) error {
	return s.orders.AppendEvent(ctx, domain.OrderEvent{
		OrderID:     order.ID,
		PriorStatus: order.Status,
		NewStatus:   to,
		Actor:       actor,
		Metadata:    metadata,
		CreatedAt:   at,
	})
}

func (s *OrderService) notify(ctx context.Context, recipient, kind string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, recipient, kind, data); err != nil {
		s.logger.Warn("notification send failed",
			slog.String(logkey.Kind, kind),
			slog.String(logkey.Recipient, recipient),
			slog.String(logkey.Error, err.Error()),
		)
	}
}
