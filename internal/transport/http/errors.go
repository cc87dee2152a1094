package http

import (
	"encoding/json"
	"net/http"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeListingNotFound     = "listing_not_found"
	codeListingUnavailable  = "listing_unavailable"
	codeListingHeld         = "listing_held"
	codeInsufficientStock   = "insufficient_stock"
	codeOrderNotFound       = "order_not_found"
	codeOrderNotPending     = "order_not_pending"
	codeCheckoutExpired     = "checkout_expired"
	codeCheckoutOpen        = "checkout_already_open"
	codeCheckoutNotValid    = "checkout_not_valid"
	codeInvalidTransition   = "invalid_transition"
	codeDisputeWindowClosed = "dispute_window_closed"
	codeCartEmpty           = "cart_empty"
	codePromoNotFound       = "promo_not_found"
	codePromoInactive       = "promo_inactive"
	codePromoExhausted      = "promo_exhausted"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps a domain error to its HTTP status and machine code.
// Precondition failures and conflicts get distinct codes so a client can tell
// "someone else is buying this" from "this item is gone".
func writeDomainError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrInvalidQuantity:
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case domain.ErrListingNotFound:
		writeError(w, http.StatusNotFound, codeListingNotFound, err.Error())
	case domain.ErrListingNotAvailable:
		writeError(w, http.StatusConflict, codeListingUnavailable, err.Error())
	case domain.ErrListingAlreadyHeld:
		writeError(w, http.StatusConflict, codeListingHeld, err.Error())
	case domain.ErrInsufficientQuantity:
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case domain.ErrOrderNotFound:
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case domain.ErrOrderNotPending:
		writeError(w, http.StatusConflict, codeOrderNotPending, err.Error())
	case domain.ErrCheckoutExpired:
		writeError(w, http.StatusConflict, codeCheckoutExpired, err.Error())
	case domain.ErrCheckoutAlreadyOpen:
		writeError(w, http.StatusConflict, codeCheckoutOpen, err.Error())
	case domain.ErrCheckoutNotValid:
		writeError(w, http.StatusConflict, codeCheckoutNotValid, err.Error())
	case domain.ErrInvalidTransition:
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case domain.ErrDisputeWindowOver:
		writeError(w, http.StatusConflict, codeDisputeWindowClosed, err.Error())
	case domain.ErrCartEmpty:
		writeError(w, http.StatusBadRequest, codeCartEmpty, err.Error())
	case domain.ErrPromoNotFound:
		writeError(w, http.StatusNotFound, codePromoNotFound, err.Error())
	case domain.ErrPromoInactive:
		writeError(w, http.StatusConflict, codePromoInactive, err.Error())
	case domain.ErrPromoExhausted:
		writeError(w, http.StatusConflict, codePromoExhausted, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
