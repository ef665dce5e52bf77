package config

import "strings"

// Config 全量配置。字段用 toml tag 命名，viper 以 TagName=toml 解码。
type Config struct {
	App        AppConfig        `toml:"app"`
	Market     MarketConfig     `toml:"market"`
	Kline      KlineConfig      `toml:"kline"`
	Pool       PoolConfig       `toml:"pool"`
	Backtest   BacktestConfig   `toml:"backtest"`
	Validation ValidationConfig `toml:"validation"`
	Regime     RegimeConfig     `toml:"regime"`
	Trend      TrendConfig      `toml:"trend"`
	Ensemble   EnsembleConfig   `toml:"ensemble"`
	Risk       RiskConfig       `toml:"risk"`
	Drift      DriftConfig      `toml:"drift"`
	Signal     SignalConfig     `toml:"signal"`
	Notify     NotifyConfig     `toml:"notify"`
	Store      StoreConfig      `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type MarketSource struct {
	Name        string `toml:"name"`
	Enabled     bool   `toml:"enabled"`
	RESTBaseURL string `toml:"rest_base_url"`
}

type PairMapping struct {
	Pair   string `toml:"pair"`
	Symbol string `toml:"symbol"`
}

type MarketConfig struct {
	Sources               []MarketSource `toml:"sources"`
	Pairs                 []PairMapping  `toml:"pairs"`
	BreakerThreshold      int            `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int            `toml:"breaker_timeout_seconds"`
}

type KlineConfig struct {
	Interval string `toml:"interval"`
	Lookback int    `toml:"lookback"`
}

type PoolConfig struct {
	Path string `toml:"path"`
}

type BacktestConfig struct {
	SpreadPct   float64 `toml:"spread_pct"`
	SlippagePct float64 `toml:"slippage_pct"`
	MinTrades   int     `toml:"min_trades"`
}

type ValidationConfig struct {
	TrainDays        int     `toml:"train_days"`
	TestDays         int     `toml:"test_days"`
	OOSDays          int     `toml:"oos_days"`
	MinWindows       int     `toml:"min_windows"`
	MinWinRate       float64 `toml:"min_win_rate"`
	MinTrades        int     `toml:"min_trades"`
	MinOOSTrades     int     `toml:"min_oos_trades"`
	ConsistencyFloor float64 `toml:"consistency_floor"`
	DecayFloor       float64 `toml:"decay_floor"`
	Workers          int     `toml:"workers"`
	RefreshHours     int     `toml:"refresh_hours"`
	HistoryLimit     int     `toml:"history_limit"`
}

type RegimeConfig struct {
	ADXThreshold  float64 `toml:"adx_threshold"`
	VolMultiplier float64 `toml:"vol_multiplier"`
	VolWindow     int     `toml:"vol_window"`
	Cutoff        float64 `toml:"cutoff"`
}

type TrendConfig struct {
	WeightDaily float64 `toml:"weight_daily"`
	Weight4H    float64 `toml:"weight_4h"`
	Weight1H    float64 `toml:"weight_1h"`
	MinAligned  int     `toml:"min_aligned"`
}

type EnsembleConfig struct {
	MinVotes      int     `toml:"min_votes"`
	MinAgreement  float64 `toml:"min_agreement"`
	MinConfidence float64 `toml:"min_confidence"`
	EntryZonePct  float64 `toml:"entry_zone_pct"`
	TrendBonus    float64 `toml:"trend_bonus"`
}

type VolatilityRiskConfig struct {
	Enabled    bool    `toml:"enabled"`
	Multiplier float64 `toml:"multiplier"`
	Percentile float64 `toml:"percentile"`
	Window     int     `toml:"window"`
}

type SessionRiskConfig struct {
	Enabled bool     `toml:"enabled"`
	Windows []string `toml:"windows"`
}

type PriceLevelRiskConfig struct {
	Enabled          bool    `toml:"enabled"`
	MinPips          float64 `toml:"min_pips"`
	MaxRangeMultiple float64 `toml:"max_range_multiple"`
	PipSize          float64 `toml:"pip_size"`
	RangeBars        int     `toml:"range_bars"`
}

type NewsRiskConfig struct {
	Enabled       bool `toml:"enabled"`
	BufferMinutes int  `toml:"buffer_minutes"`
}

type CorrelationRiskConfig struct {
	Enabled       bool    `toml:"enabled"`
	Threshold     float64 `toml:"threshold"`
	MaxCorrelated int     `toml:"max_correlated"`
	MinSamples    int     `toml:"min_samples"`
}

type RiskConfig struct {
	Volatility  VolatilityRiskConfig  `toml:"volatility"`
	Session     SessionRiskConfig     `toml:"session"`
	PriceLevel  PriceLevelRiskConfig  `toml:"price_level"`
	News        NewsRiskConfig        `toml:"news"`
	Correlation CorrelationRiskConfig `toml:"correlation"`
}

type DriftConfig struct {
	WindowDays      int     `toml:"window_days"`
	MinSamples      int     `toml:"min_samples"`
	CooldownHours   int     `toml:"cooldown_hours"`
	IntervalMinutes int     `toml:"interval_minutes"`
	Alpha           float64 `toml:"alpha"`
}

type SignalConfig struct {
	AutoEnabled    bool     `toml:"auto_enabled"`
	Pairs          []string `toml:"pairs"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	OffsetSeconds  int      `toml:"offset_seconds"`
	RunImmediately bool     `toml:"run_immediately"`
	RegimeCutoff   float64  `toml:"regime_cutoff"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
