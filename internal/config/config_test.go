package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
app:
  env: test
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "1h", cfg.Kline.Interval)
	assert.Equal(t, 300, cfg.Kline.Lookback)
	assert.Equal(t, 0.45, cfg.Validation.MinWinRate)
	assert.Equal(t, 0.70, cfg.Validation.ConsistencyFloor)
	assert.Equal(t, 0.85, cfg.Validation.DecayFloor)
	assert.Equal(t, 3600, cfg.Validation.HistoryLimit)
	assert.Equal(t, 25.0, cfg.Regime.ADXThreshold)
	assert.InDelta(t, 1.0, cfg.Trend.WeightDaily+cfg.Trend.Weight4H+cfg.Trend.Weight1H, 1e-9)
	assert.Equal(t, 0.80, cfg.Ensemble.MinAgreement)
	assert.Equal(t, 80.0, cfg.Ensemble.MinConfidence)
	assert.True(t, cfg.Risk.Volatility.Enabled)
	assert.Equal(t, []string{"07:00-16:00", "12:00-21:00"}, cfg.Risk.Session.Windows)
	assert.Equal(t, 0.05, cfg.Drift.Alpha)
	assert.Equal(t, []string{"EURUSD"}, cfg.Signal.Pairs)
	assert.Equal(t, "configs/strategies.yaml", cfg.Pool.Path)

	require.Len(t, cfg.Market.Sources, 1)
	assert.True(t, cfg.Market.Sources[0].Enabled)
	assert.Equal(t, "binance", cfg.Market.Sources[0].Name)
}

func TestLoadExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
kline:
  interval: 4h
  lookback: 500
validation:
  decay_floor: 0.9
ensemble:
  min_agreement: 0.9
risk:
  volatility:
    enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "4h", cfg.Kline.Interval)
	assert.Equal(t, 500, cfg.Kline.Lookback)
	assert.Equal(t, 0.9, cfg.Validation.DecayFloor)
	assert.Equal(t, 0.9, cfg.Ensemble.MinAgreement)
	assert.False(t, cfg.Risk.Volatility.Enabled, "explicit false must survive defaulting")
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
kline:
  interval: 4h
  lookback: 400
`)
	main := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
kline:
  lookback: 600
`)
	cfg, err := Load(main)
	require.NoError(t, err)
	// 主文件覆盖 include，未覆盖的键从 include 继承。
	assert.Equal(t, "4h", cfg.Kline.Interval)
	assert.Equal(t, 600, cfg.Kline.Lookback)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad log level": `
app:
  log_level: verbose
`,
		"bad interval": `
kline:
  interval: 2h
`,
		"lookback too small": `
kline:
  lookback: 50
`,
		"win rate out of range": `
validation:
  min_win_rate: 1.5
`,
		"decay floor out of range": `
validation:
  decay_floor: 3.0
`,
		"trend weights not normalized": `
trend:
  weight_daily: 0.9
  weight_4h: 0.9
  weight_1h: 0.9
`,
		"agreement too low": `
ensemble:
  min_agreement: 0.4
`,
		"regime multiplier too low": `
regime:
  vol_multiplier: 0.9
`,
		"drift alpha out of range": `
drift:
  alpha: 1.5
`,
		"invalid signal pair": `
signal:
  pairs: ["EUR"]
`,
		"all sources disabled": `
market:
  sources:
    - name: binance
      enabled: false
`,
		// 1000 根 1h 约 41 天，铺不满 60d 训练 + 3×14d 测试 + 30d OOS。
		"history too shallow for windows": `
kline:
  interval: 1h
validation:
  history_limit: 1000
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.Error(t, err)
}
