// Package marketswap is a thin client for a third-party AMM router's quote
// endpoint. The gateway never executes through the router; the API only
// surfaces the router's price next to the reserve price for comparison.
package marketswap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// Configured reports whether a router endpoint was provided.
func (c *Client) Configured() bool {
	return c != nil && c.BaseURL != ""
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("router http %d", e.StatusCode)
	}
	return fmt.Sprintf("router http %d: %s", e.StatusCode, b)
}

// QuoteRequest describes a market trade to price.
type QuoteRequest struct {
	TokenIn  string
	TokenOut string
	FeeTier  uint32 // pool fee tier in hundredths of a bip, 0 = router default
	AmountIn *big.Int
}

// QuoteResponse is the router's quoted output for the trade.
type QuoteResponse struct {
	AmountOut   string  `json:"amountOut"`
	PriceImpact float64 `json:"priceImpact"`
	Route       string  `json:"route"`
}

// Quote fetches the router's output quote for the given trade.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("router base url is empty")
	}
	if strings.TrimSpace(req.TokenIn) == "" {
		return nil, fmt.Errorf("tokenIn is required")
	}
	if strings.TrimSpace(req.TokenOut) == "" {
		return nil, fmt.Errorf("tokenOut is required")
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amountIn must be > 0")
	}

	q := url.Values{}
	q.Set("tokenIn", req.TokenIn)
	q.Set("tokenOut", req.TokenOut)
	q.Set("amountIn", req.AmountIn.String())
	if req.FeeTier != 0 {
		q.Set("feeTier", fmt.Sprintf("%d", req.FeeTier))
	}

	u := c.BaseURL + "/quote?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch router quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read router response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	var qr QuoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("decode router response: %w", err)
	}
	return &qr, nil
}
