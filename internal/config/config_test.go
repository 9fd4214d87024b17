package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_LocalOverridesFallback(t *testing.T) {
	dir := t.TempDir()
	fallback := writeFile(t, dir, "fallback.env",
		"database_url=postgresql://fallback:5432/lse\nserver_port=9000\ncommission_rate=0.002\n")
	local := writeFile(t, dir, "config.env",
		"database_url=postgresql://local:5432/lse\n")

	cfg, err := Load(local, fallback)
	require.NoError(t, err)

	// Local wins for overlapping keys, fallback supplies the rest.
	assert.Equal(t, "postgresql://local:5432/lse", cfg.DatabaseURL)
	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, 0.002, cfg.CommissionRate)
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load("/does/not/exist.env", "/neither/does/this.env")
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "config.env", "database_url=postgresql://h:5432/lse\n")

	cfg, err := Load(local, "")
	require.NoError(t, err)

	assert.Equal(t, 100_000.0, cfg.InitialCashUSD)
	assert.Equal(t, 0.001, cfg.CommissionRate)
	assert.Equal(t, []string{"SNDK", "LITE"}, cfg.TickersFast())
	assert.Equal(t, 7, cfg.EventOutcomeDaysAfter)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.Validate(), "missing database_url must fail")

	cfg.DatabaseURL = "postgresql://localhost:5432/lse_trading"
	assert.NoError(t, cfg.Validate())

	cfg.CommissionRate = 1.5
	assert.Error(t, cfg.Validate())
	cfg.CommissionRate = 0.001

	cfg.UseLLM = true
	assert.Error(t, cfg.Validate(), "use_llm without llm_api_key must fail")
	cfg.LLMAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestCycleTickers(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, append(cfg.TickersMedium(), cfg.TickersLong()...), cfg.CycleTickers())

	cfg.TradingCycleTickers = "MSFT, TER"
	assert.Equal(t, []string{"MSFT", "TER"}, cfg.CycleTickers())
}

func TestAllTickers_Dedup(t *testing.T) {
	cfg := Defaults()
	cfg.TickersFastRaw = "SNDK,MSFT"
	cfg.TickersMediumRaw = "MSFT,TER"
	cfg.TickersLongRaw = "TER,GC=F"

	assert.Equal(t, []string{"SNDK", "MSFT", "TER", "GC=F"}, cfg.AllTickers())
}

func TestCompareModels(t *testing.T) {
	cfg := Defaults()
	cfg.LLMCompareModels = "gpt-4o, anthropic|claude-sonnet-4-20250514 ,google|gemini-2.0-flash"

	models := cfg.CompareModels()
	require.Len(t, models, 3)
	assert.Equal(t, CompareModel{Provider: "openai", Model: "gpt-4o"}, models[0])
	assert.Equal(t, CompareModel{Provider: "anthropic", Model: "claude-sonnet-4-20250514"}, models[1])
	assert.Equal(t, CompareModel{Provider: "google", Model: "gemini-2.0-flash"}, models[2])

	cfg.LLMCompareModels = ""
	assert.Empty(t, cfg.CompareModels())
}
