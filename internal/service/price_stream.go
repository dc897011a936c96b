package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"tokenpilot/internal/client/pricestream"
	"tokenpilot/internal/portfolio"
)

// PriceStreamService keeps holding valuations live by subscribing the trade
// feed to every held token and applying each tick to the ledger.
type PriceStreamService struct {
	Ledger *portfolio.Ledger
	Logger *zap.Logger
}

type PriceStreamOptions struct {
	URL             string
	RefreshInterval time.Duration
}

// Run connects, subscribes and reads until ctx is cancelled, reconnecting
// with a fixed backoff. The subscription set is refreshed on the interval so
// newly opened positions start streaming without a restart.
func (s *PriceStreamService) Run(ctx context.Context, opts PriceStreamOptions) error {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}
	if s.Logger != nil {
		s.Logger.Info("price stream starting",
			zap.String("url", opts.URL),
			zap.Duration("refresh_interval", opts.RefreshInterval),
		)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runOnce(ctx, opts); err != nil && s.Logger != nil {
			s.Logger.Warn("price stream disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *PriceStreamService) runOnce(ctx context.Context, opts PriceStreamOptions) error {
	client := pricestream.NewWSClient(opts.URL)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close(websocket.StatusNormalClosure, "shutdown")

	subscribed := s.heldMints()
	if len(subscribed) > 0 {
		if err := client.SubscribeTokenTrades(ctx, subscribed); err != nil {
			return err
		}
	}

	refresh := time.NewTicker(opts.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			var err error
			subscribed, err = s.refreshSubscriptions(ctx, client, subscribed)
			if err != nil {
				return err
			}
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, opts.RefreshInterval)
		ev, err := client.ReadTrade(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Read timeout just means a quiet feed; loop back to the
			// refresh check.
			continue
		}
		s.applyTrade(ev)
	}
}

func (s *PriceStreamService) refreshSubscriptions(ctx context.Context, client *pricestream.WSClient, current []string) ([]string, error) {
	want := s.heldMints()
	add := diffMints(want, current)
	remove := diffMints(current, want)
	if len(add) > 0 {
		if err := client.SubscribeTokenTrades(ctx, add); err != nil {
			return current, err
		}
	}
	if len(remove) > 0 {
		if err := client.UnsubscribeTokenTrades(ctx, remove); err != nil {
			return current, err
		}
	}
	if (len(add) > 0 || len(remove) > 0) && s.Logger != nil {
		s.Logger.Info("stream subscriptions refreshed",
			zap.Int("subscribed", len(want)),
			zap.Int("added", len(add)),
			zap.Int("removed", len(remove)),
		)
	}
	return want, nil
}

func (s *PriceStreamService) applyTrade(ev pricestream.TradeEvent) {
	if ev.Mint == "" || ev.PriceUSD <= 0 {
		return
	}
	s.Ledger.UpdatePrice(ev.Mint, decimal.NewFromFloat(ev.PriceUSD))
}

func (s *PriceStreamService) heldMints() []string {
	holdings := s.Ledger.Holdings()
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h.TokenAddress)
	}
	sort.Strings(out)
	return out
}

func diffMints(a, b []string) []string {
	seen := map[string]struct{}{}
	for _, m := range b {
		seen[m] = struct{}{}
	}
	var out []string
	for _, m := range a {
		if _, ok := seen[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}
