// Package exchange implements the REST client for the trading venue the bot
// copies trades onto, plus a cache-backed price source layered on top of it.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// Client is the REST client for the trading venue API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new venue REST client.
//
// baseURL is the API root, e.g. "https://api.venue.example/v1".
// apiKey authenticates every request via the X-API-Key header.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type orderRequest struct {
	MarketID string          `json:"market_id"`
	Side     string          `json:"side"`
	Size     decimal.Decimal `json:"size"`
	Price    decimal.Decimal `json:"price"`
}

type orderResponse struct {
	OrderID     string          `json:"order_id"`
	FilledPrice decimal.Decimal `json:"filled_price"`
	Status      string          `json:"status"`
}

type tickerResponse struct {
	MarketID string          `json:"market_id"`
	Price    decimal.Decimal `json:"price"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PlaceOrder submits a new order on the venue.
func (c *Client) PlaceOrder(ctx context.Context, marketID string, side domain.OrderSide, size, price decimal.Decimal) (domain.OrderResult, error) {
	req := orderRequest{
		MarketID: marketID,
		Side:     string(side),
		Size:     size,
		Price:    price,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: decode order response: %w", err)
	}
	if resp.Status == "rejected" {
		return domain.OrderResult{}, fmt.Errorf("exchange: %w: order %s", domain.ErrOrderRejected, resp.OrderID)
	}

	return domain.OrderResult{
		OrderID:     resp.OrderID,
		FilledPrice: resp.FilledPrice,
		Status:      domain.OrderStatusFilled,
	}, nil
}

// GetCurrentPrice returns the venue's last traded price for the market.
func (c *Client) GetCurrentPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/markets/%s/ticker", url.PathEscape(marketID))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("exchange: get price %s: %w", marketID, err)
	}

	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("exchange: decode ticker: %w", err)
	}
	if !resp.Price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("exchange: %w: market %s", domain.ErrPriceUnavailable, marketID)
	}

	return resp.Price, nil
}

// doRequest builds, sends, and reads an HTTP request against the venue API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to the domain error taxonomy so
// the retry layer can tell transient failures from permanent rejections.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnknownMarket, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return fmt.Errorf("%w: %s (%s)", domain.ErrOrderRejected, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s (%s)", apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
