package signal

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tokenpilot/internal/models"
	"tokenpilot/internal/repository"
)

// Aggregator queries every registered source concurrently, joins the results
// and serves the merged sequence from a freshness cache.
type Aggregator struct {
	repo     repository.Repository
	logger   *zap.Logger
	cacheTTL time.Duration
	persist  bool

	mu       sync.Mutex
	sources  []Source
	cached   []models.Signal
	cachedAt time.Time

	now func() time.Time
}

func NewAggregator(repo repository.Repository, logger *zap.Logger, cacheTTL time.Duration, persist bool) *Aggregator {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Aggregator{
		repo:     repo,
		logger:   logger,
		cacheTTL: cacheTTL,
		persist:  persist,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *Aggregator) Register(src Source) {
	if a == nil || src == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, src)
}

// Signals returns the merged signal sequence, sorted descending by confidence
// with source-emission order preserved on ties. Calls inside the freshness
// window return the cached sequence unchanged.
func (a *Aggregator) Signals(ctx context.Context) []models.Signal {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if !a.cachedAt.IsZero() && now.Sub(a.cachedAt) < a.cacheTTL {
		return a.cached
	}

	results := make([][]models.Signal, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sigs, err := src.Collect(ctx)
			if err != nil {
				// A failing source contributes nothing; the merge proceeds.
				if a.logger != nil {
					a.logger.Warn("signal source failed",
						zap.String("source", src.Name()),
						zap.Error(err),
					)
				}
				return
			}
			results[i] = sigs
		}(i, src)
	}
	wg.Wait()

	var merged []models.Signal
	for _, sigs := range results {
		merged = append(merged, sigs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})

	if a.repo != nil && a.persist {
		for i := range merged {
			sig := merged[i]
			if err := a.repo.InsertSignal(ctx, &sig); err != nil && a.logger != nil {
				a.logger.Warn("signal persist failed", zap.Error(err))
			}
		}
	}

	a.cached = merged
	a.cachedAt = now
	if a.logger != nil {
		a.logger.Info("signals aggregated",
			zap.Int("sources", len(a.sources)),
			zap.Int("signals", len(merged)),
		)
	}
	return merged
}

// Invalidate drops the cache so the next call re-queries all sources.
func (a *Aggregator) Invalidate() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cachedAt = time.Time{}
	a.cached = nil
}

// SourceHealth reports per-source health for the read surface.
func (a *Aggregator) SourceHealth() map[string]HealthStatus {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	sources := make([]Source, len(a.sources))
	copy(sources, a.sources)
	a.mu.Unlock()

	out := make(map[string]HealthStatus, len(sources))
	for _, src := range sources {
		out[src.Name()] = src.Health()
	}
	return out
}
