// Package logkey keeps structured-log attribute names stable across the
// service so log queries do not break when call sites move.
package logkey

const (
	OrderID   = "order_id"
	ListingID = "listing_id"
	BuyerID   = "buyer_id"
	SessionID = "session_id"
	Kind      = "kind"
	Recipient = "recipient"
	Error     = "error"
)
