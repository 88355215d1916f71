package server

// ErrorResponse is the standard error envelope for every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}

// HealthResponse is the health check body.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// DepositQuoteResponse prices a deposit without executing it.
type DepositQuoteResponse struct {
	BaseAmount    string `json:"base_amount"`
	WrappedAmount string `json:"wrapped_amount"`
	Fee           string `json:"fee"`
}

// RedeemQuoteResponse prices a redemption without executing it.
type RedeemQuoteResponse struct {
	WrappedAmount string `json:"wrapped_amount"`
	BaseAmount    string `json:"base_amount"`
}

// AvailabilityResponse exposes the raw deposit gating parameters.
type AvailabilityResponse struct {
	DepositsEnabled    bool   `json:"deposits_enabled"`
	MaxDepositAmount   string `json:"max_deposit_amount"`
	DepositDelayBlocks uint64 `json:"deposit_delay_blocks"`
}

// CooldownResponse describes an account's position in its deposit cooldown.
type CooldownResponse struct {
	Account          string `json:"account"`
	LastDepositBlock uint64 `json:"last_deposit_block"`
	CurrentBlock     uint64 `json:"current_block"`
	DepositDelay     uint64 `json:"deposit_delay_blocks"`
	BlocksRemaining  uint64 `json:"blocks_remaining"`
	Redeemable       bool   `json:"redeemable"`
}

// ConvertRequest executes a deposit or redemption.
type ConvertRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// ConvertResponse reports an executed conversion.
type ConvertResponse struct {
	Account   string `json:"account"`
	Kind      string `json:"kind"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
	Block     uint64 `json:"block"`
}

// ApproveRequest sets an account's gateway allowance for the wrapped token.
type ApproveRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// BalanceResponse is an account's wrapped-token balance and allowance.
type BalanceResponse struct {
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// CompareQuoteResponse puts the reserve quote next to the market router's.
type CompareQuoteResponse struct {
	BaseAmount     string  `json:"base_amount"`
	ReserveWrapped string  `json:"reserve_wrapped_amount"`
	ReserveFee     string  `json:"reserve_fee"`
	RouterOut      string  `json:"router_amount_out,omitempty"`
	RouterImpact   float64 `json:"router_price_impact,omitempty"`
	RouterRoute    string  `json:"router_route,omitempty"`
	RouterError    string  `json:"router_error,omitempty"`
}

// AIAskRequest is a natural language question about conversion history.
type AIAskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"` // optional model override
}

// AIAskResponse is the answer to an AIAskRequest.
type AIAskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}
