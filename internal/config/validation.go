package config

import (
	"fmt"
	"math"
	"strings"

	"quorum/internal/market"
)

// validate 对合并后的配置做致命校验。返回第一处错误。
func validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := validateApp(&c.App); err != nil {
		return err
	}
	if err := validateMarket(&c.Market); err != nil {
		return err
	}
	if err := validateKline(&c.Kline); err != nil {
		return err
	}
	if strings.TrimSpace(c.Pool.Path) == "" {
		return fmt.Errorf("config: pool.path is required")
	}
	if err := validateBacktest(&c.Backtest); err != nil {
		return err
	}
	if err := validateValidation(&c.Validation); err != nil {
		return err
	}
	if err := validateHistoryDepth(&c.Kline, &c.Validation); err != nil {
		return err
	}
	if err := validateRegime(&c.Regime); err != nil {
		return err
	}
	if err := validateTrend(&c.Trend); err != nil {
		return err
	}
	if err := validateEnsemble(&c.Ensemble); err != nil {
		return err
	}
	if err := validateRisk(&c.Risk); err != nil {
		return err
	}
	if err := validateDrift(&c.Drift); err != nil {
		return err
	}
	if err := validateSignal(&c.Signal); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("config: store.path is required")
	}
	return nil
}

func validateApp(a *AppConfig) error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: app.log_level %q is invalid", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("config: app.http_addr is required")
	}
	return nil
}

func validateMarket(m *MarketConfig) error {
	enabled := 0
	for _, src := range m.Sources {
		if src.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: market requires at least one enabled source")
	}
	return nil
}

func validateKline(k *KlineConfig) error {
	if _, err := market.ParseTimeframe(k.Interval); err != nil {
		return fmt.Errorf("config: kline.interval %q not supported, one of %v", k.Interval, market.SupportedTimeframes())
	}
	if k.Lookback < 100 {
		return fmt.Errorf("config: kline.lookback %d too small, need at least 100", k.Lookback)
	}
	return nil
}

func validateBacktest(b *BacktestConfig) error {
	if b.SpreadPct < 0 || b.SpreadPct > 0.05 {
		return fmt.Errorf("config: backtest.spread_pct %.5f out of range [0, 0.05]", b.SpreadPct)
	}
	if b.SlippagePct < 0 || b.SlippagePct > 0.05 {
		return fmt.Errorf("config: backtest.slippage_pct %.5f out of range [0, 0.05]", b.SlippagePct)
	}
	if b.MinTrades <= 0 {
		return fmt.Errorf("config: backtest.min_trades must be positive")
	}
	return nil
}

func validateValidation(v *ValidationConfig) error {
	if v.TrainDays <= 0 || v.TestDays <= 0 || v.OOSDays <= 0 {
		return fmt.Errorf("config: validation train/test/oos days must all be positive")
	}
	if v.MinWindows < 2 {
		return fmt.Errorf("config: validation.min_windows %d too small, need at least 2", v.MinWindows)
	}
	if v.MinWinRate <= 0 || v.MinWinRate >= 1 {
		return fmt.Errorf("config: validation.min_win_rate %.3f out of range (0, 1)", v.MinWinRate)
	}
	if v.ConsistencyFloor <= 0 || v.ConsistencyFloor > 1 {
		return fmt.Errorf("config: validation.consistency_floor %.3f out of range (0, 1]", v.ConsistencyFloor)
	}
	if v.DecayFloor <= 0 || v.DecayFloor > 2 {
		return fmt.Errorf("config: validation.decay_floor %.3f out of range (0, 2]", v.DecayFloor)
	}
	if v.Workers <= 0 {
		return fmt.Errorf("config: validation.workers must be positive")
	}
	if v.HistoryLimit <= 0 {
		return fmt.Errorf("config: validation.history_limit must be positive")
	}
	return nil
}

// validateHistoryDepth 校验拉取深度铺得满窗口布局，否则每一轮
// 验证都注定失败。日对齐最多吃掉两天，按两天余量算。
func validateHistoryDepth(k *KlineConfig, v *ValidationConfig) error {
	tf, err := market.ParseTimeframe(k.Interval)
	if err != nil {
		return fmt.Errorf("config: kline.interval %q not supported", k.Interval)
	}
	historyDays := float64(v.HistoryLimit) * tf.Duration.Hours() / 24
	neededDays := v.TrainDays + v.TestDays*v.MinWindows + v.OOSDays + 2
	if historyDays < float64(neededDays) {
		return fmt.Errorf("config: validation.history_limit %d covers %.0f days of %s bars, "+
			"but train=%dd test=%dd oos=%dd min_windows=%d needs at least %d days",
			v.HistoryLimit, historyDays, k.Interval,
			v.TrainDays, v.TestDays, v.OOSDays, v.MinWindows, neededDays)
	}
	return nil
}

func validateRegime(r *RegimeConfig) error {
	if r.ADXThreshold <= 0 || r.ADXThreshold >= 100 {
		return fmt.Errorf("config: regime.adx_threshold %.1f out of range (0, 100)", r.ADXThreshold)
	}
	if r.VolMultiplier <= 1 {
		return fmt.Errorf("config: regime.vol_multiplier %.2f must exceed 1", r.VolMultiplier)
	}
	if r.Cutoff <= 0 || r.Cutoff > 1 {
		return fmt.Errorf("config: regime.cutoff %.2f out of range (0, 1]", r.Cutoff)
	}
	return nil
}

func validateTrend(t *TrendConfig) error {
	sum := t.WeightDaily + t.Weight4H + t.Weight1H
	if math.Abs(sum-1) > 0.01 {
		return fmt.Errorf("config: trend weights sum to %.3f, expected 1.0", sum)
	}
	if t.MinAligned < 1 || t.MinAligned > 3 {
		return fmt.Errorf("config: trend.min_aligned %d out of range [1, 3]", t.MinAligned)
	}
	return nil
}

func validateEnsemble(e *EnsembleConfig) error {
	if e.MinVotes < 1 {
		return fmt.Errorf("config: ensemble.min_votes must be positive")
	}
	if e.MinAgreement <= 0.5 || e.MinAgreement > 1 {
		return fmt.Errorf("config: ensemble.min_agreement %.2f out of range (0.5, 1]", e.MinAgreement)
	}
	if e.MinConfidence <= 0 || e.MinConfidence > 100 {
		return fmt.Errorf("config: ensemble.min_confidence %.1f out of range (0, 100]", e.MinConfidence)
	}
	if e.EntryZonePct <= 0 || e.EntryZonePct > 0.05 {
		return fmt.Errorf("config: ensemble.entry_zone_pct %.4f out of range (0, 0.05]", e.EntryZonePct)
	}
	return nil
}

func validateRisk(r *RiskConfig) error {
	if r.Volatility.Enabled {
		if r.Volatility.Multiplier <= 1 {
			return fmt.Errorf("config: risk.volatility.multiplier %.2f must exceed 1", r.Volatility.Multiplier)
		}
		if r.Volatility.Percentile <= 50 || r.Volatility.Percentile > 100 {
			return fmt.Errorf("config: risk.volatility.percentile %.1f out of range (50, 100]", r.Volatility.Percentile)
		}
	}
	if r.PriceLevel.Enabled {
		if r.PriceLevel.PipSize <= 0 {
			return fmt.Errorf("config: risk.price_level.pip_size must be positive")
		}
		if r.PriceLevel.MaxRangeMultiple <= 0 {
			return fmt.Errorf("config: risk.price_level.max_range_multiple must be positive")
		}
	}
	if r.Correlation.Enabled {
		if r.Correlation.Threshold <= 0 || r.Correlation.Threshold > 1 {
			return fmt.Errorf("config: risk.correlation.threshold %.2f out of range (0, 1]", r.Correlation.Threshold)
		}
	}
	return nil
}

func validateDrift(d *DriftConfig) error {
	if d.Alpha <= 0 || d.Alpha >= 1 {
		return fmt.Errorf("config: drift.alpha %.3f out of range (0, 1)", d.Alpha)
	}
	if d.MinSamples < 5 {
		return fmt.Errorf("config: drift.min_samples %d too small, need at least 5", d.MinSamples)
	}
	if d.WindowDays <= 0 {
		return fmt.Errorf("config: drift.window_days must be positive")
	}
	return nil
}

func validateSignal(s *SignalConfig) error {
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: signal.timeout_seconds must be positive")
	}
	if s.AutoEnabled && len(s.Pairs) == 0 {
		return fmt.Errorf("config: signal.pairs required when auto_enabled")
	}
	for _, pair := range s.Pairs {
		if len(strings.ReplaceAll(strings.TrimSpace(pair), "/", "")) < 6 {
			return fmt.Errorf("config: signal pair %q is invalid", pair)
		}
	}
	return nil
}
