package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenpilot/internal/models"
)

type stubSource struct {
	name     string
	signals  []models.Signal
	err      error
	collects int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Collect(ctx context.Context) ([]models.Signal, error) {
	s.collects++
	if s.err != nil {
		return nil, s.err
	}
	return s.signals, nil
}

func (s *stubSource) Health() HealthStatus { return HealthStatus{Status: "healthy"} }

func TestSignals_CacheWindow(t *testing.T) {
	src := &stubSource{name: "a", signals: []models.Signal{{Source: "a", Confidence: 0.7}}}
	agg := NewAggregator(nil, nil, 5*time.Minute, false)
	agg.Register(src)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := base
	agg.now = func() time.Time { return now }

	first := agg.Signals(context.Background())
	if len(first) != 1 || src.collects != 1 {
		t.Fatalf("first call: signals=%d collects=%d", len(first), src.collects)
	}

	now = base.Add(4 * time.Minute)
	agg.Signals(context.Background())
	if src.collects != 1 {
		t.Fatalf("collects=%d want=1 inside cache window", src.collects)
	}

	now = base.Add(6 * time.Minute)
	agg.Signals(context.Background())
	if src.collects != 2 {
		t.Fatalf("collects=%d want=2 after cache expiry", src.collects)
	}
}

func TestSignals_FailingSourceIsolated(t *testing.T) {
	good := &stubSource{name: "good", signals: []models.Signal{{Source: "good", Confidence: 0.6}}}
	bad := &stubSource{name: "bad", err: errors.New("upstream down")}
	agg := NewAggregator(nil, nil, time.Minute, false)
	agg.Register(good)
	agg.Register(bad)

	out := agg.Signals(context.Background())
	if len(out) != 1 || out[0].Source != "good" {
		t.Fatalf("signals=%v want only the healthy source's output", out)
	}
}

func TestSignals_SortedByConfidenceDesc(t *testing.T) {
	a := &stubSource{name: "a", signals: []models.Signal{
		{Source: "a", TokenAddress: "t1", Confidence: 0.55},
		{Source: "a", TokenAddress: "t2", Confidence: 0.90},
	}}
	b := &stubSource{name: "b", signals: []models.Signal{
		{Source: "b", TokenAddress: "t3", Confidence: 0.75},
	}}
	agg := NewAggregator(nil, nil, time.Minute, false)
	agg.Register(a)
	agg.Register(b)

	out := agg.Signals(context.Background())
	if len(out) != 3 {
		t.Fatalf("signals=%d want=3", len(out))
	}
	if out[0].TokenAddress != "t2" || out[1].TokenAddress != "t3" || out[2].TokenAddress != "t1" {
		t.Fatalf("order=%s,%s,%s want t2,t3,t1",
			out[0].TokenAddress, out[1].TokenAddress, out[2].TokenAddress)
	}
}

func TestInvalidate_ForcesRecollect(t *testing.T) {
	src := &stubSource{name: "a"}
	agg := NewAggregator(nil, nil, time.Hour, false)
	agg.Register(src)

	agg.Signals(context.Background())
	agg.Invalidate()
	agg.Signals(context.Background())
	if src.collects != 2 {
		t.Fatalf("collects=%d want=2 after invalidate", src.collects)
	}
}

func TestSourceHealth(t *testing.T) {
	agg := NewAggregator(nil, nil, time.Minute, false)
	agg.Register(&stubSource{name: "a"})
	agg.Register(&stubSource{name: "b"})

	health := agg.SourceHealth()
	if len(health) != 2 {
		t.Fatalf("health entries=%d want=2", len(health))
	}
	if health["a"].Status != "healthy" {
		t.Fatalf("status=%s want=healthy", health["a"].Status)
	}
}
