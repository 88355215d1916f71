package server_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-gateway/internal/chain"
	"github.com/reservelabs/reserve-gateway/internal/marketswap"
	"github.com/reservelabs/reserve-gateway/internal/oracle"
	"github.com/reservelabs/reserve-gateway/internal/pool"
	"github.com/reservelabs/reserve-gateway/internal/reserve"
	"github.com/reservelabs/reserve-gateway/internal/server"
)

const testAccount = "0x00000000000000000000000000000000000000a1"

func toAddr(s string) common.Address {
	return common.HexToAddress(s)
}

func newTestAPI(t *testing.T) (*echo.Echo, *pool.Memory, *chain.ManualClock) {
	t.Helper()

	p := pool.NewMemory(big.NewInt(1000), big.NewInt(900))
	clock := chain.NewManualClock(100)
	settings := oracle.NewStatic(reserve.Settings{
		DepositFeeRate:     new(big.Int).Div(reserve.FeeScale, big.NewInt(20)), // 5%
		DepositsEnabled:    true,
		MaxDepositAmount:   big.NewInt(1000),
		DepositDelayBlocks: 10,
	})

	gateway, err := reserve.NewGateway(reserve.GatewayDeps{
		Settings: settings,
		Reserve:  p,
		Token:    p,
		Sink:     p,
		Ledger:   reserve.NewMemoryLedger(),
		Clock:    clock,
	})
	require.NoError(t, err)

	logger := logrus.New()
	h := &server.Handlers{
		Gateway: gateway,
		Token:   p,
		Router:  marketswap.NewClient("", ""),
		DevMode: true,
		Logger:  logger,
	}

	e := echo.New()
	server.RegisterRoutes(e, h, server.ServerConfig{DevMode: true})
	return e, p, clock
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
}

func TestQuoteDeposit(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/quote/deposit?amount=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "85", out["wrapped_amount"])
	assert.Equal(t, "5", out["fee"])
}

func TestQuoteDeposit_InvalidAmount(t *testing.T) {
	e, _, _ := newTestAPI(t)

	for _, amount := range []string{"", "0", "-5", "abc", "1.5"} {
		rec, _ := doJSON(t, e, http.MethodGet, "/v1/quote/deposit?amount="+amount, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount=%q", amount)
	}
}

func TestQuoteRedeem(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/quote/redeem?amount=90", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", out["base_amount"])
}

func TestAvailability(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["deposits_enabled"])
	assert.Equal(t, "1000", out["max_deposit_amount"])
	assert.Equal(t, float64(10), out["deposit_delay_blocks"])
}

func TestDepositAndCooldownFlow(t *testing.T) {
	e, p, clock := newTestAPI(t)

	body := `{"account":"` + testAccount + `","amount":"100"}`
	rec, out := doJSON(t, e, http.MethodPost, "/v1/convert/deposit", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deposit", out["kind"])
	assert.Equal(t, "85", out["amount_out"])
	assert.Equal(t, "5", out["fee"])

	// Cooling down: redemption is rejected with 409.
	redeemBody := `{"account":"` + testAccount + `","amount":"10"}`
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/convert/redeem", redeemBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, out = doJSON(t, e, http.MethodGet, "/v1/accounts/"+testAccount+"/cooldown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["redeemable"])
	assert.Equal(t, float64(10), out["blocks_remaining"])

	// Approve, wait out the delay, redeem.
	approveBody := `{"account":"` + testAccount + `","amount":"1000"}`
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/convert/approve", approveBody)
	require.Equal(t, http.StatusOK, rec.Code)

	clock.Advance(10)
	rec, out = doJSON(t, e, http.MethodPost, "/v1/convert/redeem", redeemBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "redeem", out["kind"])

	bal, err := p.BalanceOf(context.Background(), toAddr(testAccount))
	require.NoError(t, err)
	assert.Equal(t, int64(75), bal.Int64())
}

func TestDeposit_CapacityExceeded(t *testing.T) {
	e, _, _ := newTestAPI(t)

	body := `{"account":"` + testAccount + `","amount":"1001"}`
	rec, out := doJSON(t, e, http.MethodPost, "/v1/convert/deposit", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, out["error"], "max deposit")
}

func TestDeposit_InvalidAccount(t *testing.T) {
	e, _, _ := newTestAPI(t)

	body := `{"account":"not-an-address","amount":"10"}`
	rec, _ := doJSON(t, e, http.MethodPost, "/v1/convert/deposit", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalance(t *testing.T) {
	e, p, _ := newTestAPI(t)
	require.NoError(t, p.CreditTo(context.Background(), toAddr(testAccount), big.NewInt(42)))

	rec, out := doJSON(t, e, http.MethodGet, "/v1/accounts/"+testAccount+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", out["balance"])
	assert.Equal(t, "0", out["allowance"])
}

func TestCompareQuote_NoRouter(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/quote/compare?amount=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "85", out["reserve_wrapped_amount"])
	_, hasRouter := out["router_amount_out"]
	assert.False(t, hasRouter)
}

func TestUnknownRoute(t *testing.T) {
	e, _, _ := newTestAPI(t)

	rec, out := doJSON(t, e, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", out["error"])
}
