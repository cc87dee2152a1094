package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusScheduled  OrderStatus = "scheduled"
	OrderStatusEnRoute    OrderStatus = "en_route"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusFinalized  OrderStatus = "finalized"
	OrderStatusDisputed   OrderStatus = "disputed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderTransitions is the authoritative edge set of the order state machine.
// Cancellation is only reachable before the item leaves the seller; anything
// from EN_ROUTE onward must resolve through DISPUTED instead.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusScheduled, OrderStatusCancelled},
	OrderStatusScheduled:  {OrderStatusEnRoute, OrderStatusCancelled},
	OrderStatusEnRoute:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusFinalized, OrderStatusDisputed},
	OrderStatusFinalized:  {OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusReturned, OrderStatusRefunded, OrderStatusFinalized},
}

// CanTransition reports whether from -> to is a legal edge. Guards that depend
// on more than the pair (contest window, actor) live in the order service.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave the status.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order is a purchase attempt. A PENDING order always carries a future
// CheckoutExpiresAt and exactly one live hold per line.
type Order struct {
	ID                string
	BuyerID           string
	SellerID          string
	Status            OrderStatus
	Amount            float64
	Subtotal          float64
	DeliveryFee       float64
	Tax               float64
	PromoCode         string
	PromoDiscount     float64
	SessionID         string
	CheckoutExpiresAt *time.Time
	FromCart          bool
	Lines             []OrderLine
	DeliveredAt       *time.Time
	StatusUpdatedAt   time.Time
	StatusUpdatedBy   string
	CreatedAt         time.Time
}

// OrderLine references one listing within an order. Holds and releases are
// applied per line as a set.
type OrderLine struct {
	ListingID string
	Title     string
	Quantity  int
	UnitPrice float64
}

// OrderEvent is one entry of the append-only status history.
type OrderEvent struct {
	ID          int64
	OrderID     string
	PriorStatus OrderStatus
	NewStatus   OrderStatus
	Actor       string
	Metadata    map[string]string
	CreatedAt   time.Time
}
