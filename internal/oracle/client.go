package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/reservelabs/reserve-gateway/internal/reserve"
)

// Client fetches gateway settings from the protocol settings API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient creates a settings client. An empty baseURL is rejected at call
// time, not here, so local-mode wiring can construct a nil-safe client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// HTTPError is a non-2xx response from the settings API.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("settings api http %d", e.StatusCode)
	}
	return fmt.Sprintf("settings api http %d: %s", e.StatusCode, b)
}

type settingsResponse struct {
	DepositFeeRate     string `json:"depositFeeRate"` // decimal, 1e18 denominator
	DepositsEnabled    bool   `json:"depositsEnabled"`
	MaxDepositAmount   string `json:"maxDepositAmount"`
	DepositDelayBlocks uint64 `json:"depositDelayBlocks"`
}

// Settings fetches the current protocol settings.
func (c *Client) Settings(ctx context.Context) (*reserve.Settings, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("settings api base url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/settings", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read settings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	var sr settingsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode settings response: %w", err)
	}

	feeRate, err := parseAmount(sr.DepositFeeRate, "depositFeeRate")
	if err != nil {
		return nil, err
	}
	maxDeposit, err := parseAmount(sr.MaxDepositAmount, "maxDepositAmount")
	if err != nil {
		return nil, err
	}

	return &reserve.Settings{
		DepositFeeRate:     feeRate,
		DepositsEnabled:    sr.DepositsEnabled,
		MaxDepositAmount:   maxDeposit,
		DepositDelayBlocks: sr.DepositDelayBlocks,
	}, nil
}

func parseAmount(s, field string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("settings api: malformed %s %q", field, s)
	}
	return n, nil
}
