package solscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("solscan API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey string) *Client {
	if host == "" {
		host = "https://pro-api.solscan.io/v2.0"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:       host,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("token", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// DefiActivity is one swap-like entry in an account's activity feed, newest first.
type DefiActivity struct {
	TxHash       string  `json:"trans_id"`
	ActivityType string  `json:"activity_type"`
	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	AmountUSD    float64 `json:"amount_usd"`
	PriceUSD     float64 `json:"price_usd"`
	Success      bool    `json:"success"`
	BlockTime    int64   `json:"block_time"`
}

const (
	ActivityTokenBuy  = "ACTIVITY_TOKEN_BUY"
	ActivityTokenSell = "ACTIVITY_TOKEN_SELL"
)

// AccountActivities returns the most recent DeFi activities for a wallet.
func (c *Client) AccountActivities(ctx context.Context, address string, limit int) ([]DefiActivity, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{}
	query.Set("address", address)
	query.Set("page_size", strconv.Itoa(limit))
	query.Set("sort_by", "block_time")
	query.Set("sort_order", "desc")
	body, err := c.doRequest(ctx, "/account/defi/activities", query)
	if err != nil {
		return nil, err
	}
	var out activitiesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode activities response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("solscan request rejected")
	}
	return out.Data, nil
}

type activitiesResponse struct {
	Success bool           `json:"success"`
	Data    []DefiActivity `json:"data"`
}
