package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/app"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db{pool: pool}}
}

const orderColumns = `id, buyer_id, seller_id, status, amount, subtotal, delivery_fee, tax,
       promo_code, promo_discount, session_id, checkout_expires_at, from_cart,
       delivered_at, status_updated_at, status_updated_by, created_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.exec(ctx, stmt,
		order.ID, order.BuyerID, order.SellerID, order.Status,
		order.Amount, order.Subtotal, order.DeliveryFee, order.Tax,
		nullable(order.PromoCode), order.PromoDiscount, nullable(order.SessionID),
		order.CheckoutExpiresAt, order.FromCart, order.DeliveredAt,
		order.StatusUpdatedAt, order.StatusUpdatedBy, order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create order: duplicate id: %w", err)
		}
		return fmt.Errorf("create order: %w", err)
	}

	const lineStmt = `
INSERT INTO order_lines (order_id, listing_id, title, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)`

	for _, line := range order.Lines {
		if _, err := r.exec(ctx, lineStmt, order.ID, line.ListingID, line.Title, line.Quantity, line.UnitPrice); err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return r.getOrder(ctx, id, false)
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.getOrder(ctx, id, true)
}

func (r *OrderRepository) getOrder(ctx context.Context, id string, forUpdate bool) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := r.scanOrder(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *OrderRepository) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1`

	order, err := r.scanOrder(r.queryRow(ctx, query, sessionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by session: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) GetPendingOrderForListing(ctx context.Context, buyerID, listingID string) (*domain.Order, error) {
	const query = `
SELECT o.id
FROM orders o
JOIN order_lines l ON l.order_id = o.id
WHERE o.buyer_id = $1 AND l.listing_id = $2 AND o.status = 'pending'
LIMIT 1`

	var id string
	err := r.queryRow(ctx, query, buyerID, listingID).Scan(&id)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending order for listing: %w", err)
	}

	order, err := r.getOrder(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, upd app.StatusUpdate) (bool, error) {
	const stmt = `
UPDATE orders
SET status = $3, status_updated_at = $4, status_updated_by = $5,
    delivered_at = COALESCE($6, delivered_at)
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, upd.OrderID, upd.From, upd.To, upd.At, upd.Actor, upd.DeliveredAt)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) SetSession(ctx context.Context, orderID, sessionID string) error {
	const stmt = `UPDATE orders SET session_id = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, orderID, sessionID)
	if err != nil {
		return fmt.Errorf("set order session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) ExtendCheckout(ctx context.Context, orderID string, extension time.Duration, now time.Time) (*time.Time, error) {
	const stmt = `
UPDATE orders
SET checkout_expires_at = checkout_expires_at + make_interval(secs => $2)
WHERE id = $1 AND status = 'pending' AND checkout_expires_at > $3
RETURNING checkout_expires_at`

	var deadline time.Time
	err := r.queryRow(ctx, stmt, orderID, extension.Seconds(), now).Scan(&deadline)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("extend checkout: %w", err)
	}
	return &deadline, nil
}

func (r *OrderRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT id FROM orders
WHERE status = 'pending' AND checkout_expires_at < $1
ORDER BY checkout_expires_at
LIMIT $2`

	return r.listIDs(ctx, query, now, limit)
}

func (r *OrderRepository) ListContestElapsed(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const query = `
SELECT id FROM orders
WHERE status = 'delivered' AND delivered_at <= $1
ORDER BY delivered_at
LIMIT $2`

	return r.listIDs(ctx, query, cutoff, limit)
}

func (r *OrderRepository) AppendEvent(ctx context.Context, ev domain.OrderEvent) error {
	const stmt = `
INSERT INTO order_events (order_id, prior_status, new_status, actor, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	var metadata []byte
	if ev.Metadata != nil {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		metadata = b
	}

	if _, err := r.exec(ctx, stmt, ev.OrderID, ev.PriorStatus, ev.NewStatus, ev.Actor, metadata, ev.CreatedAt); err != nil {
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}

// ListEvents returns the order's status history, oldest first.
func (r *OrderRepository) ListEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	const query = `
SELECT id, order_id, prior_status, new_status, actor, metadata, created_at
FROM order_events
WHERE order_id = $1
ORDER BY id`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.PriorStatus, &ev.NewStatus, &ev.Actor, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *OrderRepository) scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var promoCode, sessionID *string
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.Status,
		&o.Amount, &o.Subtotal, &o.DeliveryFee, &o.Tax,
		&promoCode, &o.PromoDiscount, &sessionID, &o.CheckoutExpiresAt, &o.FromCart,
		&o.DeliveredAt, &o.StatusUpdatedAt, &o.StatusUpdatedBy, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if promoCode != nil {
		o.PromoCode = *promoCode
	}
	if sessionID != nil {
		o.SessionID = *sessionID
	}
	return o, nil
}

func (r *OrderRepository) listLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	const query = `
SELECT listing_id, title, quantity, unit_price
FROM order_lines
WHERE order_id = $1
ORDER BY id`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ListingID, &line.Title, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *OrderRepository) listIDs(ctx context.Context, query string, arg any, limit int) ([]string, error) {
	rows, err := r.query(ctx, query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
