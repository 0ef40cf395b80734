package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for warden.
type Config struct {
	General      GeneralConfig      `yaml:"general"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Verification VerificationConfig `yaml:"verification"`
	Filters      FiltersConfig      `yaml:"filters"`
	Trading      TradingConfig      `yaml:"trading"`
	Execution    ExecutionConfig    `yaml:"execution"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Storage      StorageConfig      `yaml:"storage"`
	Server       ServerConfig       `yaml:"server"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	Chain       string `yaml:"chain"`
	DryRun      bool   `yaml:"dry_run"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type DiscoveryConfig struct {
	WSEndpoint       string   `yaml:"ws_endpoint"`
	Queries          []string `yaml:"queries"`
	PollIntervalS    int      `yaml:"poll_interval_s"`
	MaxPairsPerCycle int      `yaml:"max_pairs_per_cycle"`
	SeenTTLMin       int      `yaml:"seen_ttl_min"`
}

type ProvidersConfig struct {
	Dexscreener    ProviderConfig `yaml:"dexscreener"`
	Rugcheck       ProviderConfig `yaml:"rugcheck"`
	PocketUniverse ProviderConfig `yaml:"pocket_universe"`
}

type ProviderConfig struct {
	BaseURL    string  `yaml:"base_url"`
	APIKey     string  `yaml:"api_key"`
	TimeoutS   int     `yaml:"timeout_s"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
	Enabled    bool    `yaml:"enabled"`
}

type VerificationConfig struct {
	ProviderTimeoutS   int              `yaml:"provider_timeout_s"`
	RetryBackoffMs     int              `yaml:"retry_backoff_ms"`
	MinRealVolumeRatio float64          `yaml:"min_real_volume_ratio"`
	Supply             SupplyConfig     `yaml:"supply"`
	Heuristics         HeuristicsConfig `yaml:"heuristics"`
}

type SupplyConfig struct {
	MaxTopHolderPct     float64 `yaml:"max_top_holder_pct"`
	BundleDeltaPct      float64 `yaml:"bundle_delta_pct"`
	MinCirculatingRatio float64 `yaml:"min_circulating_ratio"`
}

type HeuristicsConfig struct {
	MinUniqueTraders   int     `yaml:"min_unique_traders"`
	MaxWashTradePct    float64 `yaml:"max_wash_trade_pct"`
	MaxSelfTrades      int     `yaml:"max_self_trades"`
	MinTradeGapS       int     `yaml:"min_trade_gap_s"`
	MaxRepeatedAmounts int     `yaml:"max_repeated_amounts"`
}

type FiltersConfig struct {
	MinLiquidityUSD   float64 `yaml:"min_liquidity_usd"`
	MinVolume24hUSD   float64 `yaml:"min_volume_24h_usd"`
	MinAgeHours       float64 `yaml:"min_age_hours"`
	MaxPriceImpactPct float64 `yaml:"max_price_impact_pct"`
}

// TradingConfig is snapshotted at decision time. Updates through the
// settings endpoint apply to future decisions only; an open position
// keeps the thresholds it was opened with.
type TradingConfig struct {
	AutoTrade          bool    `yaml:"auto_trade" json:"auto_trade"`
	TradeAmountUSD     float64 `yaml:"trade_amount_usd" json:"trade_amount_usd"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
	SlippageBps        int     `yaml:"slippage_bps" json:"slippage_bps"`
	MaxOpenPositions   int     `yaml:"max_open_positions" json:"max_open_positions"`
	PricePollIntervalS int     `yaml:"price_poll_interval_s" json:"price_poll_interval_s"`
}

type ExecutionConfig struct {
	Mode           string `yaml:"mode"` // telegram|paper
	TimeoutS       int    `yaml:"timeout_s"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	BotChatID      int64  `yaml:"bot_chat_id"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	JournalRetentionD int    `yaml:"journal_retention_d"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads and parses a YAML configuration file. A .env file next to
// the process, if present, is loaded first so that ${VAR} references in
// the YAML expand from it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "warden-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.Chain == "" {
		cfg.General.Chain = "solana"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Discovery.PollIntervalS == 0 {
		cfg.Discovery.PollIntervalS = 30
	}
	if cfg.Discovery.MaxPairsPerCycle == 0 {
		cfg.Discovery.MaxPairsPerCycle = 50
	}
	if cfg.Discovery.SeenTTLMin == 0 {
		cfg.Discovery.SeenTTLMin = 60
	}
	if cfg.Providers.Dexscreener.BaseURL == "" {
		cfg.Providers.Dexscreener.BaseURL = "https://api.dexscreener.com/latest/dex"
	}
	if cfg.Providers.Dexscreener.RatePerSec == 0 {
		cfg.Providers.Dexscreener.RatePerSec = 5
	}
	if cfg.Providers.Dexscreener.Burst == 0 {
		cfg.Providers.Dexscreener.Burst = 10
	}
	if cfg.Providers.Rugcheck.BaseURL == "" {
		cfg.Providers.Rugcheck.BaseURL = "https://api.rugcheck.xyz/v1"
	}
	if cfg.Providers.Rugcheck.RatePerSec == 0 {
		cfg.Providers.Rugcheck.RatePerSec = 2
	}
	if cfg.Providers.Rugcheck.Burst == 0 {
		cfg.Providers.Rugcheck.Burst = 4
	}
	if cfg.Providers.PocketUniverse.BaseURL == "" {
		cfg.Providers.PocketUniverse.BaseURL = "https://api.pocketuniverse.app/v1"
	}
	if cfg.Providers.PocketUniverse.RatePerSec == 0 {
		cfg.Providers.PocketUniverse.RatePerSec = 2
	}
	if cfg.Providers.PocketUniverse.Burst == 0 {
		cfg.Providers.PocketUniverse.Burst = 4
	}
	if cfg.Verification.ProviderTimeoutS == 0 {
		cfg.Verification.ProviderTimeoutS = 10
	}
	if cfg.Verification.RetryBackoffMs == 0 {
		cfg.Verification.RetryBackoffMs = 500
	}
	if cfg.Verification.MinRealVolumeRatio == 0 {
		cfg.Verification.MinRealVolumeRatio = 0.5
	}
	if cfg.Verification.Supply.MaxTopHolderPct == 0 {
		cfg.Verification.Supply.MaxTopHolderPct = 50
	}
	if cfg.Verification.Supply.BundleDeltaPct == 0 {
		cfg.Verification.Supply.BundleDeltaPct = 1
	}
	if cfg.Verification.Supply.MinCirculatingRatio == 0 {
		cfg.Verification.Supply.MinCirculatingRatio = 0.1
	}
	if cfg.Verification.Heuristics.MinUniqueTraders == 0 {
		cfg.Verification.Heuristics.MinUniqueTraders = 10
	}
	if cfg.Verification.Heuristics.MaxWashTradePct == 0 {
		cfg.Verification.Heuristics.MaxWashTradePct = 50
	}
	if cfg.Verification.Heuristics.MaxSelfTrades == 0 {
		cfg.Verification.Heuristics.MaxSelfTrades = 5
	}
	if cfg.Verification.Heuristics.MinTradeGapS == 0 {
		cfg.Verification.Heuristics.MinTradeGapS = 60
	}
	if cfg.Verification.Heuristics.MaxRepeatedAmounts == 0 {
		cfg.Verification.Heuristics.MaxRepeatedAmounts = 5
	}
	if cfg.Filters.MinLiquidityUSD == 0 {
		cfg.Filters.MinLiquidityUSD = 10000
	}
	if cfg.Filters.MinVolume24hUSD == 0 {
		cfg.Filters.MinVolume24hUSD = 5000
	}
	if cfg.Filters.MaxPriceImpactPct == 0 {
		cfg.Filters.MaxPriceImpactPct = 10
	}
	if cfg.Trading.TradeAmountUSD == 0 {
		cfg.Trading.TradeAmountUSD = 100
	}
	if cfg.Trading.StopLossPct == 0 {
		cfg.Trading.StopLossPct = 10
	}
	if cfg.Trading.TakeProfitPct == 0 {
		cfg.Trading.TakeProfitPct = 20
	}
	if cfg.Trading.SlippageBps == 0 {
		cfg.Trading.SlippageBps = 100
	}
	if cfg.Trading.MaxOpenPositions == 0 {
		cfg.Trading.MaxOpenPositions = 5
	}
	if cfg.Trading.PricePollIntervalS == 0 {
		cfg.Trading.PricePollIntervalS = 30
	}
	if cfg.Execution.Mode == "" {
		cfg.Execution.Mode = "paper"
	}
	if cfg.Execution.TimeoutS == 0 {
		cfg.Execution.TimeoutS = 15
	}
	if cfg.Execution.MaxRetries == 0 {
		cfg.Execution.MaxRetries = 3
	}
	if cfg.Execution.RetryBackoffMs == 0 {
		cfg.Execution.RetryBackoffMs = 1000
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "warden.db"
	}
	if cfg.Storage.JournalRetentionD == 0 {
		cfg.Storage.JournalRetentionD = 30
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8787"
	}
}

// Validate rejects trading thresholds the engine cannot run with. It
// guards both the loaded config and settings updates at runtime.
func (t TradingConfig) Validate() error {
	if t.StopLossPct <= 0 || t.StopLossPct >= 100 {
		return fmt.Errorf("config: stop_loss_pct must be in (0, 100), got %.2f", t.StopLossPct)
	}
	if t.TakeProfitPct <= 0 {
		return fmt.Errorf("config: take_profit_pct must be positive, got %.2f", t.TakeProfitPct)
	}
	if t.TradeAmountUSD <= 0 {
		return fmt.Errorf("config: trade_amount_usd must be positive, got %.2f", t.TradeAmountUSD)
	}
	if t.SlippageBps < 0 {
		return fmt.Errorf("config: slippage_bps must not be negative, got %d", t.SlippageBps)
	}
	if t.MaxOpenPositions < 0 {
		return fmt.Errorf("config: max_open_positions must not be negative, got %d", t.MaxOpenPositions)
	}
	if t.PricePollIntervalS < 0 {
		return fmt.Errorf("config: price_poll_interval_s must not be negative, got %d", t.PricePollIntervalS)
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.Trading.Validate(); err != nil {
		return err
	}
	if c.Execution.Mode != "paper" && c.Execution.Mode != "telegram" {
		return fmt.Errorf("config: execution mode must be paper or telegram, got %q", c.Execution.Mode)
	}
	if c.Execution.Mode == "telegram" && c.Telegram.Token == "" {
		return fmt.Errorf("config: telegram token is required for telegram execution mode")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("config: telegram token is required when telegram notifications are enabled")
	}
	return nil
}
