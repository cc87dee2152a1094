package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/app"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

// CheckoutStarter is the minimal interface needed to start a checkout.
type CheckoutStarter interface {
	CreateCheckout(ctx context.Context, in app.CreateCheckoutInput) (app.CheckoutResult, error)
	CreateCartCheckout(ctx context.Context, in app.CartCheckoutInput) (app.CheckoutResult, error)
}

// HandleCreateCheckout returns an HTTP handler for single-listing checkout.
func HandleCreateCheckout(svc CheckoutStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createCheckoutRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ListingID == "" || req.BuyerID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "listing_id and buyer_id are required")
			return
		}
		if req.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		res, err := svc.CreateCheckout(r.Context(), app.CreateCheckoutInput{
			ListingID: req.ListingID,
			BuyerID:   req.BuyerID,
			Quantity:  req.Quantity,
			PromoCode: req.PromoCode,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
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
	}
}

// HandleCartCheckout returns an HTTP handler for whole-cart checkout.
func HandleCartCheckout(svc CheckoutStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req cartCheckoutRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BuyerID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "buyer_id is required")
			return
		}

		res, err := svc.CreateCartCheckout(r.Context(), app.CartCheckoutInput{
			BuyerID:   req.BuyerID,
			PromoCode: req.PromoCode,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
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
	}
}

type createCheckoutRequest struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
	Quantity  int    `json:"quantity"`
	PromoCode string `json:"promo_code"`
}

type cartCheckoutRequest struct {
	BuyerID   string `json:"buyer_id"`
	PromoCode string `json:"promo_code"`
}

type checkoutResponse struct {
	OrderID           string     `json:"order_id"`
	Status            string     `json:"status"`
	Amount            float64    `json:"amount"`
	Subtotal          float64    `json:"subtotal"`
	DeliveryFee       float64    `json:"delivery_fee"`
	Tax               float64    `json:"tax"`
	PromoDiscount     float64    `json:"promo_discount,omitempty"`
	RedirectURL       string     `json:"redirect_url"`
	CheckoutExpiresAt *time.Time `json:"checkout_expires_at,omitempty"`
}
