package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9980"
	defaultAppLogPath  = "/data/logs/quorum.log"

	defaultMarketName    = "binance"
	defaultMarketREST    = "https://api.binance.com"
	defaultBreakerThresh = 3
	defaultBreakerTOSecs = 60

	defaultKlineInterval = "1h"
	defaultKlineLookback = 300

	defaultPoolPath = "configs/strategies.yaml"

	defaultBacktestSpread   = 0.0001
	defaultBacktestSlippage = 0.00005
	defaultBacktestMinTrade = 10

	defaultValTrainDays    = 90
	defaultValTestDays     = 30
	defaultValOOSDays      = 30
	defaultValMinWindows   = 3
	defaultValMinWinRate   = 0.45
	defaultValMinTrades    = 10
	defaultValMinOOSTrades = 5
	defaultValConsistency  = 0.70
	defaultValDecayFloor   = 0.85
	defaultValWorkers      = 4
	defaultValRefreshHours = 24
	defaultValHistoryLimit = 3600

	defaultRegimeADX       = 25.0
	defaultRegimeVolMult   = 1.5
	defaultRegimeVolWindow = 20
	defaultRegimeCutoff    = 0.6

	defaultTrendWeightDaily = 0.5
	defaultTrendWeight4H    = 0.3
	defaultTrendWeight1H    = 0.2
	defaultTrendMinAligned  = 2

	defaultEnsembleMinVotes   = 3
	defaultEnsembleAgreement  = 0.80
	defaultEnsembleConfidence = 80.0
	defaultEnsembleEntryZone  = 0.001
	defaultEnsembleTrendBonus = 5.0

	defaultRiskVolMult       = 1.5
	defaultRiskVolPercentile = 95.0
	defaultRiskVolWindow     = 20
	defaultRiskMinPips       = 5.0
	defaultRiskMaxRangeMult  = 3.0
	defaultRiskPipSize       = 0.0001
	defaultRiskRangeBars     = 50
	defaultRiskNewsBuffer    = 30
	defaultRiskCorrThreshold = 0.70
	defaultRiskCorrSamples   = 30

	defaultDriftWindowDays = 30
	defaultDriftMinSamples = 20
	defaultDriftCooldown   = 24
	defaultDriftInterval   = 60
	defaultDriftAlpha      = 0.05

	defaultSignalTimeout = 30
	defaultSignalOffset  = 10

	defaultStorePath = "/data/db/quorum.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Kline.applyDefaults(keys)
	c.Pool.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Validation.applyDefaults(keys)
	c.Regime.applyDefaults(keys)
	c.Trend.applyDefaults(keys)
	c.Ensemble.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Drift.applyDefaults(keys)
	c.Signal.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		if strings.TrimSpace(src.Name) == "" {
			if i == 0 {
				src.Name = defaultMarketName
			} else {
				src.Name = fmt.Sprintf("market_%d", i)
			}
		}
		if src.RESTBaseURL == "" {
			src.RESTBaseURL = defaultMarketREST
		}
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.breaker_threshold",
			need:  func() bool { return m.BreakerThreshold <= 0 },
			apply: func() { m.BreakerThreshold = defaultBreakerThresh },
		},
		fieldDefault{
			key:   "market.breaker_timeout_seconds",
			need:  func() bool { return m.BreakerTimeoutSeconds <= 0 },
			apply: func() { m.BreakerTimeoutSeconds = defaultBreakerTOSecs },
		},
	)
}

func (k *KlineConfig) applyDefaults(keys keySet) {
	if k == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("kline.interval", &k.Interval, defaultKlineInterval),
		fieldDefault{
			key:   "kline.lookback",
			need:  func() bool { return k.Lookback <= 0 },
			apply: func() { k.Lookback = defaultKlineLookback },
		},
	)
}

func (p *PoolConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("pool.path", &p.Path, defaultPoolPath),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("backtest.spread_pct", &b.SpreadPct, defaultBacktestSpread),
		floatFieldDefault("backtest.slippage_pct", &b.SlippagePct, defaultBacktestSlippage),
		intFieldDefault("backtest.min_trades", &b.MinTrades, defaultBacktestMinTrade),
	)
}

func (v *ValidationConfig) applyDefaults(keys keySet) {
	if v == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("validation.train_days", &v.TrainDays, defaultValTrainDays),
		intFieldDefault("validation.test_days", &v.TestDays, defaultValTestDays),
		intFieldDefault("validation.oos_days", &v.OOSDays, defaultValOOSDays),
		intFieldDefault("validation.min_windows", &v.MinWindows, defaultValMinWindows),
		floatFieldDefault("validation.min_win_rate", &v.MinWinRate, defaultValMinWinRate),
		intFieldDefault("validation.min_trades", &v.MinTrades, defaultValMinTrades),
		intFieldDefault("validation.min_oos_trades", &v.MinOOSTrades, defaultValMinOOSTrades),
		floatFieldDefault("validation.consistency_floor", &v.ConsistencyFloor, defaultValConsistency),
		floatFieldDefault("validation.decay_floor", &v.DecayFloor, defaultValDecayFloor),
		intFieldDefault("validation.workers", &v.Workers, defaultValWorkers),
		intFieldDefault("validation.refresh_hours", &v.RefreshHours, defaultValRefreshHours),
		intFieldDefault("validation.history_limit", &v.HistoryLimit, defaultValHistoryLimit),
	)
}

func (r *RegimeConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("regime.adx_threshold", &r.ADXThreshold, defaultRegimeADX),
		floatFieldDefault("regime.vol_multiplier", &r.VolMultiplier, defaultRegimeVolMult),
		intFieldDefault("regime.vol_window", &r.VolWindow, defaultRegimeVolWindow),
		floatFieldDefault("regime.cutoff", &r.Cutoff, defaultRegimeCutoff),
	)
}

func (t *TrendConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	if t.WeightDaily <= 0 && t.Weight4H <= 0 && t.Weight1H <= 0 {
		t.WeightDaily = defaultTrendWeightDaily
		t.Weight4H = defaultTrendWeight4H
		t.Weight1H = defaultTrendWeight1H
	}
	applyFieldDefaults(keys,
		intFieldDefault("trend.min_aligned", &t.MinAligned, defaultTrendMinAligned),
	)
}

func (e *EnsembleConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("ensemble.min_votes", &e.MinVotes, defaultEnsembleMinVotes),
		floatFieldDefault("ensemble.min_agreement", &e.MinAgreement, defaultEnsembleAgreement),
		floatFieldDefault("ensemble.min_confidence", &e.MinConfidence, defaultEnsembleConfidence),
		floatFieldDefault("ensemble.entry_zone_pct", &e.EntryZonePct, defaultEnsembleEntryZone),
		floatFieldDefault("ensemble.trend_bonus", &e.TrendBonus, defaultEnsembleTrendBonus),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("risk.volatility.enabled", &r.Volatility.Enabled, true),
		floatFieldDefault("risk.volatility.multiplier", &r.Volatility.Multiplier, defaultRiskVolMult),
		floatFieldDefault("risk.volatility.percentile", &r.Volatility.Percentile, defaultRiskVolPercentile),
		intFieldDefault("risk.volatility.window", &r.Volatility.Window, defaultRiskVolWindow),
		boolFieldDefault("risk.session.enabled", &r.Session.Enabled, true),
		boolFieldDefault("risk.price_level.enabled", &r.PriceLevel.Enabled, true),
		floatFieldDefault("risk.price_level.min_pips", &r.PriceLevel.MinPips, defaultRiskMinPips),
		floatFieldDefault("risk.price_level.max_range_multiple", &r.PriceLevel.MaxRangeMultiple, defaultRiskMaxRangeMult),
		floatFieldDefault("risk.price_level.pip_size", &r.PriceLevel.PipSize, defaultRiskPipSize),
		intFieldDefault("risk.price_level.range_bars", &r.PriceLevel.RangeBars, defaultRiskRangeBars),
		boolFieldDefault("risk.news.enabled", &r.News.Enabled, true),
		intFieldDefault("risk.news.buffer_minutes", &r.News.BufferMinutes, defaultRiskNewsBuffer),
		boolFieldDefault("risk.correlation.enabled", &r.Correlation.Enabled, true),
		floatFieldDefault("risk.correlation.threshold", &r.Correlation.Threshold, defaultRiskCorrThreshold),
		intFieldDefault("risk.correlation.min_samples", &r.Correlation.MinSamples, defaultRiskCorrSamples),
	)
	if len(r.Session.Windows) == 0 {
		r.Session.Windows = []string{"07:00-16:00", "12:00-21:00"}
	}
	if r.Correlation.MaxCorrelated < 0 {
		r.Correlation.MaxCorrelated = 0
	}
}

func (d *DriftConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("drift.window_days", &d.WindowDays, defaultDriftWindowDays),
		intFieldDefault("drift.min_samples", &d.MinSamples, defaultDriftMinSamples),
		intFieldDefault("drift.cooldown_hours", &d.CooldownHours, defaultDriftCooldown),
		intFieldDefault("drift.interval_minutes", &d.IntervalMinutes, defaultDriftInterval),
		floatFieldDefault("drift.alpha", &d.Alpha, defaultDriftAlpha),
	)
}

func (s *SignalConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("signal.auto_enabled", &s.AutoEnabled, true),
		intFieldDefault("signal.timeout_seconds", &s.TimeoutSeconds, defaultSignalTimeout),
		intFieldDefault("signal.offset_seconds", &s.OffsetSeconds, defaultSignalOffset),
		floatFieldDefault("signal.regime_cutoff", &s.RegimeCutoff, defaultRegimeCutoff),
	)
	if len(s.Pairs) == 0 {
		s.Pairs = []string{"EURUSD"}
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
