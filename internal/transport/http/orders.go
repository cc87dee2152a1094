package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/app"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

// OrderReader is the minimal interface needed to fetch an order.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

// OrderCanceller is the minimal interface needed to cancel a pending order.
type OrderCanceller interface {
	CancelPending(ctx context.Context, orderID, actor string) (bool, error)
}

// CheckoutResumer is the minimal interface needed to resume an expiring
// checkout with a fresh payment session.
type CheckoutResumer interface {
	ResumeCheckout(ctx context.Context, orderID string) (app.CheckoutResult, error)
}

// HandleOrders routes /orders/{id}, /orders/{id}/resume and
// /orders/{id}/cancel.
func HandleOrders(reader OrderReader, resumer CheckoutResumer, canceller OrderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, action, ok := parseOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			order, err := reader.GetOrder(r.Context(), orderID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(toOrderResponse(order))

		case "resume":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			res, err := resumer.ResumeCheckout(r.Context(), orderID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(checkoutResponse{
				OrderID:           res.Order.ID,
				Status:            string(res.Order.Status),
				Amount:            res.Order.Amount,
				Subtotal:          res.Order.Subtotal,
				DeliveryFee:       res.Order.DeliveryFee,
				Tax:               res.Order.Tax,
				PromoDiscount:     res.Order.PromoDiscount,
				RedirectURL:       res.RedirectURL,
				CheckoutExpiresAt: res.Order.CheckoutExpiresAt,
			})

		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			var req cancelOrderRequest
			if r.Body != nil && r.ContentLength != 0 {
				dec := json.NewDecoder(r.Body)
				dec.DisallowUnknownFields()
				if err := dec.Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
					return
				}
			}
			actor := req.Actor
			if actor == "" {
				actor = "buyer"
			}
			cancelled, err := canceller.CancelPending(r.Context(), orderID, actor)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(cancelOrderResponse{
				OrderID:   orderID,
				Cancelled: cancelled,
			})

		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseOrderPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "orders" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

type cancelOrderRequest struct {
	Actor string `json:"actor"`
}

type cancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type orderResponse struct {
	ID                string              `json:"id"`
	BuyerID           string              `json:"buyer_id"`
	SellerID          string              `json:"seller_id"`
	Status            string              `json:"status"`
	Amount            float64             `json:"amount"`
	Subtotal          float64             `json:"subtotal"`
	DeliveryFee       float64             `json:"delivery_fee"`
	Tax               float64             `json:"tax"`
	PromoCode         string              `json:"promo_code,omitempty"`
	PromoDiscount     float64             `json:"promo_discount,omitempty"`
	CheckoutExpiresAt *time.Time          `json:"checkout_expires_at,omitempty"`
	Lines             []orderLineResponse `json:"lines"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	StatusUpdatedAt   time.Time           `json:"status_updated_at"`
	CreatedAt         time.Time           `json:"created_at"`
}

type orderLineResponse struct {
	ListingID string  `json:"listing_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ListingID: line.ListingID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return orderResponse{
		ID:                order.ID,
		BuyerID:           order.BuyerID,
		SellerID:          order.SellerID,
		Status:            string(order.Status),
		Amount:            order.Amount,
		Subtotal:          order.Subtotal,
		DeliveryFee:       order.DeliveryFee,
		Tax:               order.Tax,
		PromoCode:         order.PromoCode,
		PromoDiscount:     order.PromoDiscount,
		CheckoutExpiresAt: order.CheckoutExpiresAt,
		Lines:             lines,
		DeliveredAt:       order.DeliveredAt,
		StatusUpdatedAt:   order.StatusUpdatedAt,
		CreatedAt:         order.CreatedAt,
	}
}
