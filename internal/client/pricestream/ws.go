package pricestream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nhooyr.io/websocket"
)

// SubscribeRequest asks the feed for trade events on a set of token mints.
type SubscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// TradeEvent is one trade tick from the feed.
type TradeEvent struct {
	Mint     string  `json:"mint"`
	PriceUSD float64 `json:"price_usd"`
	TxType   string  `json:"txType"`
}

type WSClient struct {
	url  string
	conn *websocket.Conn
}

func NewWSClient(url string) *WSClient {
	return &WSClient{url: strings.TrimSpace(url)}
}

func (c *WSClient) Connect(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("ws client is nil")
	}
	if c.url == "" {
		return fmt.Errorf("ws url is empty")
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20) // 1MB
	c.conn = conn
	return nil
}

func (c *WSClient) Close(status websocket.StatusCode, reason string) error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close(status, reason)
}

func (c *WSClient) SubscribeTokenTrades(ctx context.Context, mints []string) error {
	return c.send(ctx, SubscribeRequest{Method: "subscribeTokenTrade", Keys: mints})
}

func (c *WSClient) UnsubscribeTokenTrades(ctx context.Context, mints []string) error {
	return c.send(ctx, SubscribeRequest{Method: "unsubscribeTokenTrade", Keys: mints})
}

func (c *WSClient) send(ctx context.Context, req SubscribeRequest) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// ReadTrade blocks for the next trade event; non-trade frames return a zero Mint.
func (c *WSClient) ReadTrade(ctx context.Context) (TradeEvent, error) {
	if c == nil || c.conn == nil {
		return TradeEvent{}, fmt.Errorf("ws not connected")
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return TradeEvent{}, err
	}
	var ev TradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TradeEvent{}, nil
	}
	return ev, nil
}
