package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type Client struct {
	priceHost  string
	swapHost   string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, priceHost, swapHost string) *Client {
	if priceHost == "" {
		priceHost = "https://lite-api.jup.ag/price/v2"
	}
	if swapHost == "" {
		swapHost = "https://lite-api.jup.ag/swap/v1"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		priceHost:  strings.TrimRight(priceHost, "/"),
		swapHost:   strings.TrimRight(swapHost, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
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

// GetPrice returns the USD price for a mint.
func (c *Client) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return decimal.Zero, fmt.Errorf("mint is required")
	}
	query := url.Values{}
	query.Set("ids", mint)
	body, err := c.doRequest(ctx, c.priceHost+"?"+query.Encode())
	if err != nil {
		return decimal.Zero, err
	}
	var out priceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}
	entry, ok := out.Data[mint]
	if !ok || strings.TrimSpace(entry.Price) == "" {
		return decimal.Zero, fmt.Errorf("no price for mint %s", mint)
	}
	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad price %q for mint %s: %w", entry.Price, mint, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("non-positive price for mint %s", mint)
	}
	return price, nil
}

type priceResponse struct {
	Data map[string]priceEntry `json:"data"`
}

type priceEntry struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`
}

// GetQuote returns a swap quote; amount is in the input mint's base units.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	if inputMint == "" || outputMint == "" {
		return nil, fmt.Errorf("input and output mints are required")
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	query := url.Values{}
	query.Set("inputMint", inputMint)
	query.Set("outputMint", outputMint)
	query.Set("amount", strconv.FormatUint(amount, 10))
	if slippageBps > 0 {
		query.Set("slippageBps", strconv.Itoa(slippageBps))
	}
	body, err := c.doRequest(ctx, c.swapHost+"/quote?"+query.Encode())
	if err != nil {
		return nil, err
	}
	var out Quote
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	return &out, nil
}
