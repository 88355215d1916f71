package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-gateway/internal/chain"
	"github.com/reservelabs/reserve-gateway/internal/history"
	"github.com/reservelabs/reserve-gateway/internal/marketswap"
	"github.com/reservelabs/reserve-gateway/internal/models"
	"github.com/reservelabs/reserve-gateway/internal/oracle"
	"github.com/reservelabs/reserve-gateway/internal/pool"
	"github.com/reservelabs/reserve-gateway/internal/reserve"
	"github.com/reservelabs/reserve-gateway/internal/server"
)

const (
	testAPIAddr = ":8091"
	testAPIKey  = "test-api-key-integration"
	testAccount = "0x00000000000000000000000000000000000000b7"
)

func setupIntegrationTest(t *testing.T) (*redis.Client, *chain.ManualClock, func()) {
	// Check if Redis is available
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   2, // Use different DB for integration tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for integration tests: %v", err)
	}

	// Clear test DB and seed the pool accounting keys
	_ = redisClient.FlushDB(ctx).Err()
	require.NoError(t, redisClient.Set(ctx, "pool:base_balance", "1000", 0).Err())
	require.NoError(t, redisClient.Set(ctx, "pool:wrapped_supply", "900", 0).Err())

	logger := logrus.New()

	store, err := pool.NewStore(redisClient)
	require.NoError(t, err)
	ledger, err := reserve.NewRedisLedger(redisClient)
	require.NoError(t, err)
	clock := chain.NewManualClock(100)
	settings := oracle.NewStatic(reserve.Settings{
		DepositFeeRate:     new(big.Int).Div(reserve.FeeScale, big.NewInt(20)), // 5%
		DepositsEnabled:    true,
		MaxDepositAmount:   big.NewInt(500),
		DepositDelayBlocks: 10,
	})

	gateway, err := reserve.NewGateway(reserve.GatewayDeps{
		Settings: settings,
		Reserve:  store,
		Token:    store,
		Sink:     store,
		Ledger:   ledger,
		Clock:    clock,
		Logger:   logger,
	})
	require.NoError(t, err)

	cache, err := history.NewRedisCache(redisClient, logger)
	require.NoError(t, err)

	// Mirror the gateway binary: committed conversions land in the
	// recent cache and on the pub/sub channels.
	gateway.OnReceipt(func(r *reserve.Receipt) {
		ev := &models.ConversionEvent{
			ID:        uuid.NewString(),
			Timestamp: r.Timestamp,
			Account:   r.Account.Hex(),
			Kind:      r.Kind,
			AmountIn:  r.AmountIn.String(),
			AmountOut: r.AmountOut.String(),
			Fee:       r.Fee.String(),
			Block:     r.Block,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cache.AddRecentConversion(ctx, ev)
		_ = cache.PublishConversion(ctx, ev)
	})

	handlers := &server.Handlers{
		Gateway: gateway,
		Token:   store,
		History: cache,
		Router:  marketswap.NewClient("", ""),
		DevMode: true,
		Logger:  logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: handlers,
		Config: server.ServerConfig{
			Addr:    testAPIAddr,
			DevMode: true,
			APIKey:  testAPIKey,
		},
	})
	require.NoError(t, err)

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			t.Logf("Server error: %v", err)
		}
	}()

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
		_ = redisClient.FlushDB(ctx).Err()
		_ = redisClient.Close()
	}

	return redisClient, clock, cleanup
}

func makeRequest(t *testing.T, method, url string, body interface{}, expectedStatus int) *http.Response {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, expectedStatus, resp.StatusCode, "Expected status %d, got %d", expectedStatus, resp.StatusCode)

	return resp
}

func TestIntegration_Health(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, "http://localhost:8091/v1/health", nil, http.StatusOK)
	defer resp.Body.Close()

	var response server.HealthResponse
	err := json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	assert.True(t, response.OK)
}

func TestIntegration_Availability(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, "http://localhost:8091/v1/availability", nil, http.StatusOK)
	defer resp.Body.Close()

	var response server.AvailabilityResponse
	err := json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	assert.True(t, response.DepositsEnabled)
	assert.Equal(t, "500", response.MaxDepositAmount)
	assert.Equal(t, uint64(10), response.DepositDelayBlocks)
}

func TestIntegration_DepositQuote(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	resp := makeRequest(t, http.MethodGet, "http://localhost:8091/v1/quote/deposit?amount=100", nil, http.StatusOK)
	defer resp.Body.Close()

	var response server.DepositQuoteResponse
	err := json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	// 5% fee on 100 leaves 95; 95 * 900 / 1000 = 85
	assert.Equal(t, "100", response.BaseAmount)
	assert.Equal(t, "5", response.Fee)
	assert.Equal(t, "85", response.WrappedAmount)
}

func TestIntegration_ConversionFlow(t *testing.T) {
	redisClient, clock, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()

	// Deposit 100 base for 85 wrapped
	depositPayload := map[string]interface{}{"account": testAccount, "amount": "100"}
	resp := makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/deposit", depositPayload, http.StatusOK)
	defer resp.Body.Close()

	var depositResponse server.ConvertResponse
	err := json.NewDecoder(resp.Body).Decode(&depositResponse)
	require.NoError(t, err)
	assert.Equal(t, "deposit", depositResponse.Kind)
	assert.Equal(t, "85", depositResponse.AmountOut)
	assert.Equal(t, "5", depositResponse.Fee)
	assert.Equal(t, uint64(100), depositResponse.Block)

	// Pool accounting moved in Redis
	base, err := redisClient.Get(ctx, "pool:base_balance").Result()
	require.NoError(t, err)
	assert.Equal(t, "1100", base)
	supply, err := redisClient.Get(ctx, "pool:wrapped_supply").Result()
	require.NoError(t, err)
	assert.Equal(t, "985", supply)

	// Redeeming inside the cooldown window is rejected
	redeemPayload := map[string]interface{}{"account": testAccount, "amount": "85"}
	resp = makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/redeem", redeemPayload, http.StatusConflict)
	resp.Body.Close()

	// Advance past the cooldown and authorize the gateway
	clock.Advance(10)
	approvePayload := map[string]interface{}{"account": testAccount, "amount": "85"}
	resp = makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/approve", approvePayload, http.StatusOK)
	resp.Body.Close()

	resp = makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/redeem", redeemPayload, http.StatusOK)
	defer resp.Body.Close()

	var redeemResponse server.ConvertResponse
	err = json.NewDecoder(resp.Body).Decode(&redeemResponse)
	require.NoError(t, err)
	assert.Equal(t, "redeem", redeemResponse.Kind)
	// 85 * 1100 / 985 = 94
	assert.Equal(t, "94", redeemResponse.AmountOut)

	// Both conversions were recorded in the recent cache
	resp = makeRequest(t, http.MethodGet, "http://localhost:8091/v1/conversions/recent?limit=10", nil, http.StatusOK)
	defer resp.Body.Close()

	var recentResponse struct {
		Items []*models.ConversionEvent `json:"items"`
	}
	err = json.NewDecoder(resp.Body).Decode(&recentResponse)
	require.NoError(t, err)
	require.Len(t, recentResponse.Items, 2)
	assert.Equal(t, "redeem", recentResponse.Items[0].Kind)
	assert.Equal(t, "deposit", recentResponse.Items[1].Kind)
}

func TestIntegration_CapacityLimit(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	payload := map[string]interface{}{"account": testAccount, "amount": "501"}
	resp := makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/deposit", payload, http.StatusUnprocessableEntity)
	defer resp.Body.Close()

	var errorResponse server.ErrorResponse
	err := json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Contains(t, errorResponse.Error, "max deposit")
}

func TestIntegration_ConvertValidation(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Bad account
	payload := map[string]interface{}{"account": "not-an-address", "amount": "100"}
	resp := makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/deposit", payload, http.StatusBadRequest)
	defer resp.Body.Close()

	var errorResponse server.ErrorResponse
	err := json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Contains(t, errorResponse.Error, "invalid account")

	// Bad amount
	payload = map[string]interface{}{"account": testAccount, "amount": "-5"}
	resp = makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/deposit", payload, http.StatusBadRequest)
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Contains(t, errorResponse.Error, "invalid amount")

	// Bad limit on the recent listing
	resp = makeRequest(t, http.MethodGet, "http://localhost:8091/v1/conversions/recent?limit=500", nil, http.StatusBadRequest)
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Contains(t, errorResponse.Error, "invalid limit")
}

func TestIntegration_PubSub(t *testing.T) {
	redisClient, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()

	sub := redisClient.Subscribe(ctx, "conversions:live")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	payload := map[string]interface{}{"account": testAccount, "amount": "100"}
	resp := makeRequest(t, http.MethodPost, "http://localhost:8091/v1/convert/deposit", payload, http.StatusOK)
	resp.Body.Close()

	select {
	case msg := <-sub.Channel():
		var ev models.ConversionEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "deposit", ev.Kind)
		assert.Equal(t, "100", ev.AmountIn)
	case <-time.After(3 * time.Second):
		t.Fatal("no conversion event published within 3s")
	}
}

func TestIntegration_Authentication(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Test without API key
	req, err := http.NewRequest(http.MethodGet, "http://localhost:8091/v1/health", nil)
	require.NoError(t, err)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Test with invalid API key
	req, err = http.NewRequest(http.MethodGet, "http://localhost:8091/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "invalid-key")

	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_ErrorHandling(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	// Test 404 for non-existent endpoint
	req, err := http.NewRequest(http.MethodGet, "http://localhost:8091/v1/nonexistent", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errorResponse server.ErrorResponse
	err = json.NewDecoder(resp.Body).Decode(&errorResponse)
	require.NoError(t, err)
	assert.Equal(t, "not found", errorResponse.Error)
	assert.Equal(t, http.StatusNotFound, errorResponse.Code)
}

func TestIntegration_ConcurrentReads(t *testing.T) {
	_, _, cleanup := setupIntegrationTest(t)
	defer cleanup()

	const numRequests = 50
	const numGoroutines = 10

	results := make(chan error, numRequests)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < numRequests/numGoroutines; j++ {
				resp := makeRequest(t, http.MethodGet, "http://localhost:8091/v1/quote/deposit?amount=100", nil, http.StatusOK)
				resp.Body.Close()
				results <- nil
			}
		}()
	}

	// Collect all results
	for i := 0; i < numRequests; i++ {
		err := <-results
		assert.NoError(t, err)
	}
}
