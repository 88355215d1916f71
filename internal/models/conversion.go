package models

import "time"

// ConversionEvent is one executed gateway operation, as it flows through the
// recent cache, pub/sub, and the ClickHouse history table. Amounts are
// decimal strings (they can exceed uint64).
type ConversionEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Account   string    `json:"account"`
	Kind      string    `json:"kind"` // "deposit" or "redeem"
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Fee       string    `json:"fee"`
	Block     uint64    `json:"block"`
}
