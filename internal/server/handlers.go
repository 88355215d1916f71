package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/reservelabs/reserve-gateway/internal/ai"
	"github.com/reservelabs/reserve-gateway/internal/history"
	"github.com/reservelabs/reserve-gateway/internal/marketswap"
	"github.com/reservelabs/reserve-gateway/internal/reserve"
)

// TokenAdmin is the slice of the pool store the API needs beyond the gateway:
// allowance management and balance reads.
type TokenAdmin interface {
	Approve(ctx context.Context, account common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Handlers contains all dependencies for API endpoint handlers.
type Handlers struct {
	Gateway      *reserve.Gateway
	Token        TokenAdmin
	History      *history.RedisCache
	Router       *marketswap.Client
	AI           *ai.Agent
	AIBaseConfig ai.AgentConfig
	DevMode      bool
	Logger       *logrus.Logger
}

// err returns a standardized JSON error response. In dev mode, details are
// included for debugging.
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds.
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// convertErr maps the gateway's error taxonomy to HTTP responses. Anything
// outside the taxonomy is an internal error.
func (h *Handlers) convertErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, reserve.ErrZeroAmount):
		return h.err(c, http.StatusBadRequest, reserve.ErrZeroAmount.Error(), nil)
	case errors.Is(err, reserve.ErrDepositsDisabled):
		return h.err(c, http.StatusForbidden, reserve.ErrDepositsDisabled.Error(), nil)
	case errors.Is(err, reserve.ErrCapacityExceeded):
		return h.err(c, http.StatusUnprocessableEntity, reserve.ErrCapacityExceeded.Error(), nil)
	case errors.Is(err, reserve.ErrCooldownActive):
		return h.err(c, http.StatusConflict, reserve.ErrCooldownActive.Error(), nil)
	case errors.Is(err, reserve.ErrInsufficientReserveSupply):
		return h.err(c, http.StatusUnprocessableEntity, reserve.ErrInsufficientReserveSupply.Error(), nil)
	case errors.Is(err, reserve.ErrInsufficientBalance):
		return h.err(c, http.StatusUnprocessableEntity, reserve.ErrInsufficientBalance.Error(), nil)
	case errors.Is(err, reserve.ErrInsufficientAuthorization):
		return h.err(c, http.StatusUnprocessableEntity, reserve.ErrInsufficientAuthorization.Error(), nil)
	default:
		h.Logger.WithError(err).Error("conversion failed")
		return h.err(c, http.StatusInternalServerError, "conversion failed", map[string]any{"err": err.Error()})
	}
}

func parsePositiveAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("required")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("must be a decimal integer")
	}
	if n.Sign() <= 0 {
		return nil, errors.New("must be > 0")
	}
	return n, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("must be a 0x-prefixed hex address")
	}
	return common.HexToAddress(s), nil
}

// Health returns a simple health check.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// QuoteDeposit prices a base→wrapped conversion without executing it.
func (h *Handlers) QuoteDeposit(c echo.Context) error {
	amount, err := parsePositiveAmount(c.QueryParam("amount"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	quote, err := h.Gateway.QuoteDeposit(ctx, amount)
	if err != nil {
		return h.convertErr(c, err)
	}
	return c.JSON(http.StatusOK, DepositQuoteResponse{
		BaseAmount:    amount.String(),
		WrappedAmount: quote.OutputAmount.String(),
		Fee:           quote.FeeAmount.String(),
	})
}

// QuoteRedeem prices a wrapped→base conversion without executing it.
func (h *Handlers) QuoteRedeem(c echo.Context) error {
	amount, err := parsePositiveAmount(c.QueryParam("amount"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Gateway.QuoteRedeem(ctx, amount)
	if err != nil {
		return h.convertErr(c, err)
	}
	return c.JSON(http.StatusOK, RedeemQuoteResponse{
		WrappedAmount: amount.String(),
		BaseAmount:    out.String(),
	})
}

// Availability exposes the deposit enable flag, capacity ceiling, and
// cooldown length.
func (h *Handlers) Availability(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	enabled, maxDeposit, err := h.Gateway.Availability(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read availability", nil)
	}
	delay, err := h.Gateway.DepositDelay(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read deposit delay", nil)
	}

	maxStr := "0"
	if maxDeposit != nil {
		maxStr = maxDeposit.String()
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		DepositsEnabled:    enabled,
		MaxDepositAmount:   maxStr,
		DepositDelayBlocks: delay,
	})
}

// Cooldown reports where an account sits in its deposit cooldown.
func (h *Handlers) Cooldown(c echo.Context) error {
	account, err := parseAddress(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status, err := h.Gateway.Cooldown(ctx, account)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read cooldown", nil)
	}
	return c.JSON(http.StatusOK, CooldownResponse{
		Account:          account.Hex(),
		LastDepositBlock: status.LastDepositBlock,
		CurrentBlock:     status.CurrentBlock,
		DepositDelay:     status.DelayBlocks,
		BlocksRemaining:  status.BlocksRemaining,
		Redeemable:       status.Redeemable,
	})
}

// Balance returns an account's wrapped-token balance and gateway allowance.
func (h *Handlers) Balance(c echo.Context) error {
	account, err := parseAddress(c.Param("address"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	balance, err := h.Token.BalanceOf(ctx, account)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read balance", nil)
	}
	allowance, err := h.Token.Allowance(ctx, account)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read allowance", nil)
	}
	return c.JSON(http.StatusOK, BalanceResponse{
		Account:   account.Hex(),
		Balance:   balance.String(),
		Allowance: allowance.String(),
	})
}

// Deposit executes a base→wrapped conversion.
func (h *Handlers) Deposit(c echo.Context) error {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", map[string]any{"account": err.Error()})
	}
	amount, err := parsePositiveAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	receipt, err := h.Gateway.Deposit(ctx, account, amount)
	if err != nil {
		return h.convertErr(c, err)
	}
	return c.JSON(http.StatusOK, receiptResponse(receipt))
}

// Redeem executes a wrapped→base conversion.
func (h *Handlers) Redeem(c echo.Context) error {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", map[string]any{"account": err.Error()})
	}
	amount, err := parsePositiveAmount(req.Amount)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	receipt, err := h.Gateway.Redeem(ctx, account, amount)
	if err != nil {
		return h.convertErr(c, err)
	}
	return c.JSON(http.StatusOK, receiptResponse(receipt))
}

func receiptResponse(r *reserve.Receipt) ConvertResponse {
	return ConvertResponse{
		Account:   r.Account.Hex(),
		Kind:      r.Kind,
		AmountIn:  r.AmountIn.String(),
		AmountOut: r.AmountOut.String(),
		Fee:       r.Fee.String(),
		Block:     r.Block,
	}
}

// Approve sets the account's gateway allowance for redemptions.
func (h *Handlers) Approve(c echo.Context) error {
	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid account", map[string]any{"account": err.Error()})
	}
	amount := new(big.Int)
	if strings.TrimSpace(req.Amount) != "" {
		n, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
		if !ok || n.Sign() < 0 {
			return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a non-negative decimal integer"})
		}
		amount = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Token.Approve(ctx, account, amount); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to set allowance", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"account": account.Hex(), "allowance": amount.String()})
}

// RecentConversions returns the most recent conversion events.
// Accepts limit query parameter (default: 100, range: 1-100).
func (h *Handlers) RecentConversions(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.History.GetRecentConversions(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get conversions", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// CompareQuote puts the reserve's deposit pricing next to the market
// router's quote for the same input. Router failures degrade to a
// reserve-only response rather than failing the call.
func (h *Handlers) CompareQuote(c echo.Context) error {
	amount, err := parsePositiveAmount(c.QueryParam("amount"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	quote, err := h.Gateway.QuoteDeposit(ctx, amount)
	if err != nil {
		return h.convertErr(c, err)
	}

	resp := CompareQuoteResponse{
		BaseAmount:     amount.String(),
		ReserveWrapped: quote.OutputAmount.String(),
		ReserveFee:     quote.FeeAmount.String(),
	}

	if h.Router.Configured() {
		var feeTier uint32
		if v := strings.TrimSpace(c.QueryParam("feeTier")); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return h.err(c, http.StatusBadRequest, "invalid feeTier", map[string]any{"feeTier": "must be uint32"})
			}
			feeTier = uint32(n)
		}

		rq, err := h.Router.Quote(ctx, marketswap.QuoteRequest{
			TokenIn:  strings.TrimSpace(c.QueryParam("tokenIn")),
			TokenOut: strings.TrimSpace(c.QueryParam("tokenOut")),
			FeeTier:  feeTier,
			AmountIn: amount,
		})
		if err != nil {
			h.Logger.WithError(err).Warn("router quote failed")
			resp.RouterError = "router quote unavailable"
		} else {
			resp.RouterOut = rq.AmountOut
			resp.RouterImpact = rq.PriceImpact
			resp.RouterRoute = rq.Route
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// AIAsk answers natural language questions about conversion history.
// Supports optional model override for one-off requests.
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	agent := h.AI
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		tmp, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		agent = tmp
		defer func() {
			_ = tmp.Close()
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
