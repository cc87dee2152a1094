package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

type fakeListingRepo struct {
	listings map[string]domain.Listing
}

func newFakeListingRepo(listings ...domain.Listing) *fakeListingRepo {
	repo := &fakeListingRepo{listings: make(map[string]domain.Listing, len(listings))}
	for _, listing := range listings {
		repo.listings[listing.ID] = listing
	}
	return repo
}

func (f *fakeListingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeListingRepo) GetListing(_ context.Context, id string) (domain.Listing, error) {
	listing, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return listing, nil
}

func (f *fakeListingRepo) AcquireHold(_ context.Context, listingID, buyerID string, qty int, until, now time.Time) (bool, error) {
	listing, ok := f.listings[listingID]
	if !ok {
		return false, nil
	}
	open := listing.Status == domain.ListingStatusActive &&
		(!listing.IsHeld || listing.HeldUntil == nil || !listing.HeldUntil.After(now))
	if listing.Quantity < qty || !open {
		return false, nil
	}
	listing.Status = domain.ListingStatusProcessing
	listing.IsHeld = true
	listing.HeldUntil = &until
	listing.HeldBy = buyerID
	f.listings[listingID] = listing
	return true, nil
}

func (f *fakeListingRepo) ExtendHold(_ context.Context, listingID, buyerID string, until, now time.Time) (bool, error) {
	listing, ok := f.listings[listingID]
	if !ok {
		return false, nil
	}
	if listing.Status != domain.ListingStatusProcessing || !listing.IsHeld ||
		listing.HeldBy != buyerID || listing.HeldUntil == nil || !listing.HeldUntil.After(now) {
		return false, nil
	}
	listing.HeldUntil = &until
	f.listings[listingID] = listing
	return true, nil
}

func (f *fakeListingRepo) ReleaseHold(_ context.Context, listingID string) error {
	listing, ok := f.listings[listingID]
	if !ok || listing.Status != domain.ListingStatusProcessing {
		return nil
	}
	listing.Status = domain.ListingStatusActive
	listing.IsHeld = false
	listing.HeldUntil = nil
	listing.HeldBy = ""
	f.listings[listingID] = listing
	return nil
}

func (f *fakeListingRepo) FinalizeHold(_ context.Context, listingID string) error {
	listing, ok := f.listings[listingID]
	if !ok {
		return domain.ErrListingNotFound
	}
	listing.Status = domain.ListingStatusSold
	listing.HeldUntil = nil
	f.listings[listingID] = listing
	return nil
}

type fakeCartRepo struct {
	items []domain.CartItem
}

func newFakeCartRepo(items ...domain.CartItem) *fakeCartRepo {
	return &fakeCartRepo{items: items}
}

func (f *fakeCartRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeCartRepo) AddItem(_ context.Context, buyerID, listingID string, qty int) error {
	for _, item := range f.items {
		if item.BuyerID == buyerID && item.ListingID == listingID {
			return nil
		}
	}
	f.items = append(f.items, domain.CartItem{BuyerID: buyerID, ListingID: listingID, Quantity: qty})
	return nil
}

func (f *fakeCartRepo) RemoveItem(_ context.Context, buyerID, listingID string) (bool, error) {
	for i, item := range f.items {
		if item.BuyerID == buyerID && item.ListingID == listingID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCartRepo) ListItems(_ context.Context, buyerID string) ([]domain.CartItem, error) {
	var out []domain.CartItem
	for _, item := range f.items {
		if item.BuyerID == buyerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeCartRepo) has(buyerID, listingID string) bool {
	for _, item := range f.items {
		if item.BuyerID == buyerID && item.ListingID == listingID {
			return true
		}
	}
	return false
}

type fakeOrderRepo struct {
	orders map[string]domain.Order
	events []domain.OrderEvent
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[string]domain.Order, len(orders))}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (f *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order domain.Order) error {
	if _, exists := f.orders[order.ID]; exists {
		return fmt.Errorf("duplicate order %s", order.ID)
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) GetOrder(_ context.Context, id string) (domain.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeOrderRepo) GetOrderBySession(_ context.Context, sessionID string) (*domain.Order, error) {
	for _, order := range f.orders {
		if order.SessionID == sessionID {
			found := order
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) GetPendingOrderForListing(_ context.Context, buyerID, listingID string) (*domain.Order, error) {
	for _, order := range f.orders {
		if order.Status != domain.OrderStatusPending || order.BuyerID != buyerID {
			continue
		}
		for _, line := range order.Lines {
			if line.ListingID == listingID {
				found := order
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, upd StatusUpdate) (bool, error) {
	order, ok := f.orders[upd.OrderID]
	if !ok || order.Status != upd.From {
		return false, nil
	}
	order.Status = upd.To
	order.StatusUpdatedAt = upd.At
	order.StatusUpdatedBy = upd.Actor
	if upd.DeliveredAt != nil {
		order.DeliveredAt = upd.DeliveredAt
	}
	f.orders[upd.OrderID] = order
	return true, nil
}

func (f *fakeOrderRepo) SetSession(_ context.Context, orderID, sessionID string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.SessionID = sessionID
	f.orders[orderID] = order
	return nil
}

func (f *fakeOrderRepo) ExtendCheckout(_ context.Context, orderID string, extension time.Duration, now time.Time) (*time.Time, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	if order.Status != domain.OrderStatusPending ||
		order.CheckoutExpiresAt == nil || !order.CheckoutExpiresAt.After(now) {
		return nil, nil
	}
	deadline := order.CheckoutExpiresAt.Add(extension)
	order.CheckoutExpiresAt = &deadline
	f.orders[orderID] = order
	return &deadline, nil
}

func (f *fakeOrderRepo) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	for id, order := range f.orders {
		if order.Status == domain.OrderStatusPending &&
			order.CheckoutExpiresAt != nil && !order.CheckoutExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeOrderRepo) ListContestElapsed(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	for id, order := range f.orders {
		if order.Status == domain.OrderStatusDelivered &&
			order.DeliveredAt != nil && !order.DeliveredAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeOrderRepo) AppendEvent(_ context.Context, ev domain.OrderEvent) error {
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeOrderRepo) eventsFor(orderID string) []domain.OrderEvent {
	var out []domain.OrderEvent
	for _, ev := range f.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out
}

type fakePromoRepo struct {
	promos map[string]domain.PromoCode
}

func newFakePromoRepo(promos ...domain.PromoCode) *fakePromoRepo {
	repo := &fakePromoRepo{promos: make(map[string]domain.PromoCode, len(promos))}
	for _, promo := range promos {
		repo.promos[promo.Code] = promo
	}
	return repo
}

func (f *fakePromoRepo) GetPromo(_ context.Context, code string) (domain.PromoCode, error) {
	promo, ok := f.promos[code]
	if !ok {
		return domain.PromoCode{}, domain.ErrPromoNotFound
	}
	return promo, nil
}

func (f *fakePromoRepo) RedeemPromo(_ context.Context, code string) (bool, error) {
	promo, ok := f.promos[code]
	if !ok {
		return false, domain.ErrPromoNotFound
	}
	if promo.UsageCap > 0 && promo.UsageCount >= promo.UsageCap {
		return false, nil
	}
	promo.UsageCount++
	f.promos[code] = promo
	return true, nil
}

type fakeProvider struct {
	err      error
	sessions int
	expired  []string
}

func (f *fakeProvider) CreateSession(_ context.Context, _ domain.Order) (SessionRef, error) {
	if f.err != nil {
		return SessionRef{}, f.err
	}
	f.sessions++
	id := fmt.Sprintf("cs_test_%d", f.sessions)
	return SessionRef{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (f *fakeProvider) ExpireSession(_ context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

type fakeNotifier struct {
	sent []sentNotification
	err  error
}

type sentNotification struct {
	recipient string
	kind      string
	data      map[string]string
}

func (f *fakeNotifier) Send(_ context.Context, recipient, kind string, data map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotification{recipient: recipient, kind: kind, data: data})
	return nil
}
