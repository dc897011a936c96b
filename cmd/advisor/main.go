package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenpilot/internal/client/dexscreener"
	"tokenpilot/internal/client/jupiter"
	"tokenpilot/internal/client/solscan"
	"tokenpilot/internal/config"
	cronrunner "tokenpilot/internal/cron"
	"tokenpilot/internal/db"
	"tokenpilot/internal/handler"
	"tokenpilot/internal/logger"
	"tokenpilot/internal/portfolio"
	"tokenpilot/internal/repository"
	gormrepository "tokenpilot/internal/repository/gorm"
	"tokenpilot/internal/risk"
	"tokenpilot/internal/service"
	signalsrc "tokenpilot/internal/signal"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("TP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Persistence is optional: without a DSN everything runs in memory.
	var repo repository.Repository
	var gormDB *db.DB
	if strings.TrimSpace(cfg.DB.DSN) != "" {
		gormDB, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(gormDB)

		if err := db.SetTimezone(gormDB, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		repo = gormrepository.New(gormDB.Gorm)
	} else {
		logger.Info("no db dsn configured, running in-memory")
	}

	dexClient := dexscreener.NewClient(&http.Client{Timeout: cfg.DexScreener.Timeout}, cfg.DexScreener.BaseURL)
	solClient := solscan.NewClient(&http.Client{Timeout: cfg.Solscan.Timeout}, cfg.Solscan.BaseURL, cfg.Solscan.APIKey)
	jupClient := jupiter.NewClient(&http.Client{Timeout: cfg.Jupiter.Timeout}, cfg.Jupiter.PriceURL, cfg.Jupiter.SwapURL)

	aggregator := signalsrc.NewAggregator(repo, logger, cfg.Signals.CacheTTL, cfg.Signals.Persist)
	if cfg.Signals.Wallet.Enabled {
		aggregator.Register(&signalsrc.WalletActivitySource{
			Feed:   solClient,
			Repo:   repo,
			Config: cfg.Signals.Wallet,
			Logger: logger,
		})
	}
	if cfg.Signals.Trend.Enabled {
		aggregator.Register(&signalsrc.MarketTrendSource{
			Scanner: dexClient,
			Repo:    repo,
			Config:  cfg.Signals.Trend,
			Logger:  logger,
		})
	}

	ledger := portfolio.NewLedger(decimal.NewFromFloat(cfg.Portfolio.InitialCapitalUSD), repo, logger)
	if repo != nil {
		restoreLedger(context.Background(), ledger, repo, logger)
	}

	tracker := risk.NewTracker(cfg.Portfolio, time.Now().UTC())
	sizer := &risk.Sizer{Config: cfg.Sizing, Logger: logger}
	exits := service.NewExitEvaluator(cfg.Exit, logger)
	metrics := &risk.MetricsTracker{Config: cfg.Risk, Logger: logger}

	executor := &jupiter.Executor{
		Client: jupClient,
		Config: jupiter.ExecutorConfig{
			Mode:        cfg.Jupiter.Mode,
			SlippageBps: cfg.Jupiter.SlippageBps,
			FeePct:      cfg.Jupiter.FeePct,
		},
		Logger: logger,
	}
	oracle := jupiterOracle{client: jupClient}

	advisor := service.NewAdvisor(
		aggregator, ledger, sizer, tracker, exits, metrics,
		oracle, executor, repo, logger, cfg.Sizing,
	)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{}
	if gormDB != nil {
		healthHandler.DB = gormDB.Gorm
	}
	healthHandler.Register(engine)

	advisorHandler := &handler.AdvisorHandler{
		Advisor:    advisor,
		Ledger:     ledger,
		Tracker:    tracker,
		Metrics:    metrics,
		Aggregator: aggregator,
		Repo:       repo,
	}
	advisorHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.Cycle, func(ctx context.Context) {
			if err := advisor.RunCycle(ctx); err != nil {
				logger.Warn("cron decision cycle failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register decision cycle failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.PriceRefresh, func(ctx context.Context) {
			advisor.RefreshPrices(ctx)
		}); err != nil {
			logger.Warn("cron register price refresh failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.Snapshot, func(ctx context.Context) {
			if err := advisor.SnapshotPortfolio(ctx); err != nil {
				logger.Warn("portfolio snapshot failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register portfolio snapshot failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.PriceStream.Enabled {
		stream := &service.PriceStreamService{Ledger: ledger, Logger: logger}
		go func() {
			err := stream.Run(ctx, service.PriceStreamOptions{
				URL:             cfg.PriceStream.URL,
				RefreshInterval: cfg.PriceStream.RefreshInterval,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("price stream stopped", zap.Error(err))
			}
		}()
	}

	// Warm the cycle once so the first recommendations request has signals
	// and fresh valuations.
	if cfg.Cron.Enabled {
		go func() {
			if err := advisor.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("initial decision cycle failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// restoreLedger rebuilds in-memory portfolio state from the latest snapshot
// and the open holdings rows.
func restoreLedger(ctx context.Context, ledger *portfolio.Ledger, repo repository.Repository, logger *zap.Logger) {
	snaps, err := repo.ListPortfolioSnapshots(ctx, time.Time{}, 1)
	if err != nil {
		logger.Warn("load latest snapshot failed", zap.Error(err))
	}
	holdings, err := repo.ListOpenHoldings(ctx)
	if err != nil {
		logger.Warn("load open holdings failed", zap.Error(err))
	}
	if len(snaps) > 0 {
		ledger.Restore(&snaps[0], holdings)
	} else {
		ledger.Restore(nil, holdings)
	}
	logger.Info("ledger restored",
		zap.Int("holdings", len(holdings)),
		zap.Bool("snapshot", len(snaps) > 0),
	)
}

type jupiterOracle struct {
	client *jupiter.Client
}

func (o jupiterOracle) Price(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	return o.client.GetPrice(ctx, tokenAddress)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
