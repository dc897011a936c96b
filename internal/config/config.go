package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Sizing    SizingConfig    `mapstructure:"sizing"`
	Exit      ExitConfig      `mapstructure:"exit"`
	Risk      RiskConfig      `mapstructure:"risk"`

	Signals     SignalsConfig     `mapstructure:"signals"`
	DexScreener DexScreenerConfig `mapstructure:"dexscreener"`
	Solscan     SolscanConfig     `mapstructure:"solscan"`
	Jupiter     JupiterConfig     `mapstructure:"jupiter"`
	PriceStream PriceStreamConfig `mapstructure:"price_stream"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Cycle        string `mapstructure:"cycle"`
	PriceRefresh string `mapstructure:"price_refresh"`
	Snapshot     string `mapstructure:"snapshot"`
}

type PortfolioConfig struct {
	InitialCapitalUSD float64 `mapstructure:"initial_capital_usd"`
	TargetValueUSD    float64 `mapstructure:"target_value_usd"`
	HorizonDays       int     `mapstructure:"horizon_days"`
}

type SizingConfig struct {
	BasePct        float64 `mapstructure:"base_pct"`
	MaxPositionPct float64 `mapstructure:"max_position_pct"`
	DecayPerDay    float64 `mapstructure:"decay_per_day"`
	DecayFloor     float64 `mapstructure:"decay_floor"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
	MinTradeUSD    float64 `mapstructure:"min_trade_usd"`
}

type ExitConfig struct {
	TakeProfitPct float64       `mapstructure:"take_profit_pct"`
	StopLossPct   float64       `mapstructure:"stop_loss_pct"`
	MaxHold       time.Duration `mapstructure:"max_hold"`
	MinGainPct    float64       `mapstructure:"min_gain_pct"`
}

type RiskConfig struct {
	MaxDrawdownPct  float64 `mapstructure:"max_drawdown_pct"`
	MaxDailyLossPct float64 `mapstructure:"max_daily_loss_pct"`
}

type SignalsConfig struct {
	CacheTTL time.Duration      `mapstructure:"cache_ttl"`
	Persist  bool               `mapstructure:"persist"`
	Wallet   WalletSourceConfig `mapstructure:"wallet"`
	Trend    TrendSourceConfig  `mapstructure:"trend"`
}

type WalletSourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addresses      []string      `mapstructure:"addresses"`
	TxLimit        int           `mapstructure:"tx_limit"`
	MinSuccessRate float64       `mapstructure:"min_success_rate"`
	RecencyWindow  time.Duration `mapstructure:"recency_window"`
	RatingWindow   time.Duration `mapstructure:"rating_window"`
	TargetPct      float64       `mapstructure:"target_pct"`
	StopPct        float64       `mapstructure:"stop_pct"`
}

type TrendSourceConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Queries         []string `mapstructure:"queries"`
	MaxTokens       int      `mapstructure:"max_tokens"`
	MinLiquidityUSD float64  `mapstructure:"min_liquidity_usd"`
	TargetPct       float64  `mapstructure:"target_pct"`
	StopPct         float64  `mapstructure:"stop_pct"`
}

type DexScreenerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SolscanConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JupiterConfig struct {
	PriceURL      string        `mapstructure:"price_url"`
	SwapURL       string        `mapstructure:"swap_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Mode          string        `mapstructure:"mode"`
	SlippageBps   int           `mapstructure:"slippage_bps"`
	WalletAddress string        `mapstructure:"wallet_address"`
	FeePct        float64       `mapstructure:"fee_pct"`
}

type PriceStreamConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.cycle", "@every 5m")
	v.SetDefault("cron.price_refresh", "@every 30s")
	v.SetDefault("cron.snapshot", "@every 1h")

	v.SetDefault("portfolio.initial_capital_usd", 100)
	v.SetDefault("portfolio.target_value_usd", 1000)
	v.SetDefault("portfolio.horizon_days", 30)

	v.SetDefault("sizing.base_pct", 0.15)
	v.SetDefault("sizing.max_position_pct", 0.35)
	v.SetDefault("sizing.decay_per_day", 0.1)
	v.SetDefault("sizing.decay_floor", 0.5)
	v.SetDefault("sizing.min_confidence", 0.4)
	v.SetDefault("sizing.min_trade_usd", 10)

	v.SetDefault("exit.take_profit_pct", 0.30)
	v.SetDefault("exit.stop_loss_pct", 0.15)
	v.SetDefault("exit.max_hold", "48h")
	v.SetDefault("exit.min_gain_pct", 0.05)

	v.SetDefault("risk.max_drawdown_pct", 0.30)
	v.SetDefault("risk.max_daily_loss_pct", 0.10)

	v.SetDefault("signals.cache_ttl", "5m")
	v.SetDefault("signals.persist", true)
	v.SetDefault("signals.wallet.enabled", true)
	v.SetDefault("signals.wallet.tx_limit", 50)
	v.SetDefault("signals.wallet.min_success_rate", 0.5)
	v.SetDefault("signals.wallet.recency_window", "24h")
	v.SetDefault("signals.wallet.rating_window", "168h")
	v.SetDefault("signals.wallet.target_pct", 0.25)
	v.SetDefault("signals.wallet.stop_pct", 0.12)
	v.SetDefault("signals.trend.enabled", true)
	v.SetDefault("signals.trend.queries", []string{"SOL"})
	v.SetDefault("signals.trend.max_tokens", 20)
	v.SetDefault("signals.trend.min_liquidity_usd", 10000)
	v.SetDefault("signals.trend.target_pct", 0.20)
	v.SetDefault("signals.trend.stop_pct", 0.10)

	v.SetDefault("dexscreener.base_url", "https://api.dexscreener.com")
	v.SetDefault("dexscreener.timeout", "15s")
	v.SetDefault("solscan.base_url", "https://pro-api.solscan.io/v2.0")
	v.SetDefault("solscan.api_key", "")
	v.SetDefault("solscan.timeout", "15s")
	v.SetDefault("jupiter.price_url", "https://lite-api.jup.ag/price/v2")
	v.SetDefault("jupiter.swap_url", "https://lite-api.jup.ag/swap/v1")
	v.SetDefault("jupiter.timeout", "20s")
	v.SetDefault("jupiter.mode", "dry-run")
	v.SetDefault("jupiter.slippage_bps", 200)
	v.SetDefault("jupiter.wallet_address", "")
	v.SetDefault("jupiter.fee_pct", 0.003)
	v.SetDefault("price_stream.enabled", false)
	v.SetDefault("price_stream.url", "")
	v.SetDefault("price_stream.refresh_interval", "30s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
