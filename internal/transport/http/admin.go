package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
)

// OrderLifecycle is the minimal interface needed for fulfillment and dispute
// endpoints.
type OrderLifecycle interface {
	Advance(ctx context.Context, orderID string, to domain.OrderStatus, actor string) (domain.Order, error)
	Finalize(ctx context.Context, orderID, actor string) (domain.Order, bool, error)
	OpenDispute(ctx context.Context, orderID, actor string) (domain.Order, error)
	ResolveDispute(ctx context.Context, orderID string, outcome domain.OrderStatus, actor string) (domain.Order, error)
}

// HandleAdminOrders routes /admin/orders/{id}/{advance|finalize|dispute} and
// /admin/orders/{id}/dispute/resolve.
func HandleAdminOrders(svc OrderLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, action, ok := parseAdminOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req lifecycleRequest
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
			actor = "admin"
		}

		var (
			order domain.Order
			err   error
		)
		switch action {
		case "advance":
			if req.To == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "to is required")
				return
			}
			order, err = svc.Advance(r.Context(), orderID, domain.OrderStatus(req.To), actor)
		case "finalize":
			order, _, err = svc.Finalize(r.Context(), orderID, actor)
		case "dispute":
			order, err = svc.OpenDispute(r.Context(), orderID, actor)
		case "dispute/resolve":
			if req.Outcome == "" {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "outcome is required")
				return
			}
			order, err = svc.ResolveDispute(r.Context(), orderID, domain.OrderStatus(req.Outcome), actor)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toOrderResponse(order))
	}
}

func parseAdminOrderPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || len(parts) > 5 || parts[0] != "admin" || parts[1] != "orders" || parts[2] == "" {
		return "", "", false
	}
	if len(parts) == 5 {
		if parts[3] != "dispute" || parts[4] != "resolve" {
			return "", "", false
		}
		return parts[2], "dispute/resolve", true
	}
	return parts[2], parts[3], true
}

type lifecycleRequest struct {
	To      string `json:"to"`
	Outcome string `json:"outcome"`
	Actor   string `json:"actor"`
}
