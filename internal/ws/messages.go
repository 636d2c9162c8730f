package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "listings/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// BidRequest is the body for "listings/bid".
type BidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
