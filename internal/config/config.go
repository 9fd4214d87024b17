package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/spf13/viper"
)

// Config holds every recognized option from config.env. Lists are stored as
// the raw comma-separated strings and exposed through accessors.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`

	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`

	TickersFastRaw      string `mapstructure:"tickers_fast"`
	TickersMediumRaw    string `mapstructure:"tickers_medium"`
	TickersLongRaw      string `mapstructure:"tickers_long"`
	TradingCycleTickers string `mapstructure:"trading_cycle_tickers"`

	InitialCashUSD         float64 `mapstructure:"initial_cash_usd"`
	CommissionRate         float64 `mapstructure:"commission_rate"`
	StopLossLevel          float64 `mapstructure:"stop_loss_level"`
	SandboxSlippageSellPct float64 `mapstructure:"sandbox_slippage_sell_pct"`

	UseLLM                 bool   `mapstructure:"use_llm"`
	SentimentAutoCalculate bool   `mapstructure:"sentiment_auto_calculate"`
	LLMNewsCooldownHours   int    `mapstructure:"llm_news_cooldown_hours"`
	UseOpenAIEmbeddings    bool   `mapstructure:"use_openai_embeddings"`
	UseGeminiEmbeddings    bool   `mapstructure:"use_gemini_embeddings"`
	GeminiAPIKey           string `mapstructure:"gemini_api_key"`

	LLMBaseURL       string  `mapstructure:"llm_base_url"`
	LLMModel         string  `mapstructure:"llm_model"`
	LLMAPIKey        string  `mapstructure:"llm_api_key"`
	LLMTemperature   float64 `mapstructure:"llm_temperature"`
	LLMTimeoutSec    int     `mapstructure:"llm_timeout"`
	LLMCompareModels string  `mapstructure:"llm_compare_models"`

	NewsAPIKey          string `mapstructure:"newsapi_key"`
	NewsAPIQuery        string `mapstructure:"newsapi_query"`
	NewsAPISources      string `mapstructure:"newsapi_sources"`
	NewsAPIDailyQuota   int    `mapstructure:"newsapi_daily_quota"`
	AlphaVantageKey     string `mapstructure:"alphavantage_key"`
	EarningsCalendarURL string `mapstructure:"earnings_calendar_url"`

	RiskLimitsPath string `mapstructure:"risk_limits_path"`

	Game5mCooldownMinutes int  `mapstructure:"game_5m_cooldown_minutes"`
	PremarketAlert        bool `mapstructure:"premarket_alert"`

	EventOutcomeDaysAfter int `mapstructure:"event_outcome_days_after"`
}

// CompareModel is one entry of llm_compare_models.
type CompareModel struct {
	Provider string
	Model    string
}

// Load reads the layered configuration: values from fallbackPath are read
// first and localPath overrides them. Either path may be empty. Environment
// variables override both.
func Load(localPath, fallbackPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")

	read := false
	for _, path := range []string{fallbackPath, localPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		var err error
		if read {
			err = v.MergeInConfig()
		} else {
			err = v.ReadInConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		read = true
	}
	if !read && (localPath != "" || fallbackPath != "") {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("no config file found (tried %q, %q)", localPath, fallbackPath))
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Expand ${VAR} references in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		ServerHost:             "0.0.0.0",
		ServerPort:             8080,
		TickersFastRaw:         "SNDK,LITE",
		TickersMediumRaw:       "ALAB,MU,TER,AMD",
		TickersLongRaw:         "MSFT,GBPUSD=X,GC=F,^VIX",
		InitialCashUSD:         100_000,
		CommissionRate:         0.001,
		StopLossLevel:          0.95,
		SandboxSlippageSellPct: 0,
		LLMNewsCooldownHours:   12,
		LLMModel:               "gpt-4o",
		LLMTemperature:         0.2,
		LLMTimeoutSec:          60,
		NewsAPIDailyQuota:      100,
		Game5mCooldownMinutes:  30,
		EventOutcomeDaysAfter:  7,
	}
}

// Validate checks the configuration for fatal errors.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("database_url is required"))
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server_port must be between 1 and 65535, got %d", c.ServerPort))
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission_rate must be in [0,1), got %f", c.CommissionRate))
	}
	if c.StopLossLevel <= 0 || c.StopLossLevel >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss_level must be in (0,1), got %f", c.StopLossLevel))
	}
	if c.UseLLM && c.LLMAPIKey == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("llm_api_key required when use_llm is enabled"))
	}
	if c.UseGeminiEmbeddings && c.GeminiAPIKey == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("gemini_api_key required when use_gemini_embeddings is enabled"))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TickersFast is the intraday 5m group.
func (c *Config) TickersFast() []string { return splitList(c.TickersFastRaw) }

// TickersMedium is the mid-horizon group.
func (c *Config) TickersMedium() []string { return splitList(c.TickersMediumRaw) }

// TickersLong is the swing/daily group.
func (c *Config) TickersLong() []string { return splitList(c.TickersLongRaw) }

// CycleTickers are the tickers for the scheduled trading cycle; defaults to
// the medium and long groups when trading_cycle_tickers is unset.
func (c *Config) CycleTickers() []string {
	if c.TradingCycleTickers != "" {
		return splitList(c.TradingCycleTickers)
	}
	return append(c.TickersMedium(), c.TickersLong()...)
}

// AllTickers is the union of all groups, deduplicated, order-preserving.
func (c *Config) AllTickers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range append(append(c.TickersFast(), c.TickersMedium()...), c.TickersLong()...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LLMTimeout returns the LLM request timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// CompareModels parses llm_compare_models. Each comma-separated element is
// either "model" (primary provider assumed) or "provider|model".
func (c *Config) CompareModels() []CompareModel {
	var out []CompareModel
	for _, part := range splitList(c.LLMCompareModels) {
		if left, right, ok := strings.Cut(part, "|"); ok {
			out = append(out, CompareModel{Provider: strings.TrimSpace(left), Model: strings.TrimSpace(right)})
		} else {
			out = append(out, CompareModel{Provider: "openai", Model: part})
		}
	}
	return out
}
