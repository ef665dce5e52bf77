package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quorum/internal/backtest"
	"quorum/internal/config"
	"quorum/internal/drift"
	"quorum/internal/ensemble"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/notifier"
	"quorum/internal/risk"
	"quorum/internal/signal"
	"quorum/internal/store"
	"quorum/internal/strategy"
	transporthttp "quorum/internal/transport/http"
	"quorum/internal/trend"
	"quorum/internal/validate"

	regimepkg "quorum/internal/regime"
)

// build 手工装配全部依赖。装配失败直接返回错误，由 main 终止进程。
func build(cfg *config.Config) (*App, error) {
	st, err := store.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry, err := strategy.NewRegistry(cfg.Pool.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load strategy pool: %w", err)
	}

	source, err := buildSource(&cfg.Market)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := backtest.NewEngine(backtest.CostModel{
		SpreadPct:   cfg.Backtest.SpreadPct,
		SlippagePct: cfg.Backtest.SlippagePct,
	}, cfg.Backtest.MinTrades)

	runner := validate.NewRunner(engine,
		validate.WindowSpec{
			TrainDays:  cfg.Validation.TrainDays,
			TestDays:   cfg.Validation.TestDays,
			OOSDays:    cfg.Validation.OOSDays,
			MinWindows: cfg.Validation.MinWindows,
		},
		validate.Criteria{
			MinWinRate:       cfg.Validation.MinWinRate,
			MinTrades:        cfg.Validation.MinTrades,
			MinOOSTrades:     cfg.Validation.MinOOSTrades,
			ConsistencyFloor: cfg.Validation.ConsistencyFloor,
			DecayFloor:       cfg.Validation.DecayFloor,
		},
		cfg.Validation.Workers)

	holder := &validate.SetHolder{}
	if persisted, err := st.LoadLatestEligibleSet(context.Background()); err != nil {
		logger.Warnf("load persisted eligible set failed: %v", err)
	} else if persisted != nil {
		holder.Swap(persisted)
		logger.Infof("restored eligible set version=%d (%d strategies)", persisted.Version, len(persisted.Strategies))
	}

	monitor := drift.NewMonitor(drift.Config{
		MinSamples:    cfg.Drift.MinSamples,
		Alpha:         cfg.Drift.Alpha,
		CooldownHours: cfg.Drift.CooldownHours,
	})

	voter := ensemble.NewEngine(ensemble.Config{
		MinVotes:      cfg.Ensemble.MinVotes,
		MinAgreement:  cfg.Ensemble.MinAgreement,
		MinConfidence: cfg.Ensemble.MinConfidence,
		EntryZonePct:  cfg.Ensemble.EntryZonePct,
		TrendBonus:    cfg.Ensemble.TrendBonus,
	})

	riskChain, err := buildRiskChain(&cfg.Risk)
	if err != nil {
		st.Close()
		return nil, err
	}

	pairs := make(map[string]string, len(cfg.Market.Pairs))
	for _, pm := range cfg.Market.Pairs {
		pairs[strings.ToUpper(strings.TrimSpace(pm.Pair))] = pm.Symbol
	}

	pipeline := signal.NewPipeline(
		signal.Config{
			Interval:     cfg.Kline.Interval,
			Lookback:     cfg.Kline.Lookback,
			Timeout:      time.Duration(cfg.Signal.TimeoutSeconds) * time.Second,
			RegimeCutoff: cfg.Signal.RegimeCutoff,
			Pairs:        pairs,
		},
		source, holder,
		regimepkg.Config{
			ADXThreshold:  cfg.Regime.ADXThreshold,
			VolMultiplier: cfg.Regime.VolMultiplier,
			VolWindow:     cfg.Regime.VolWindow,
			Cutoff:        cfg.Regime.Cutoff,
		},
		trend.Config{
			WeightDaily: cfg.Trend.WeightDaily,
			Weight4H:    cfg.Trend.Weight4H,
			Weight1H:    cfg.Trend.Weight1H,
			MinAligned:  cfg.Trend.MinAligned,
		},
		voter, riskChain, st)

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	a := &App{
		cfg:      cfg,
		pipeline: pipeline,
		holder:   holder,
		runner:   runner,
		monitor:  monitor,
		store:    st,
		notify:   notify,
	}
	a.runValidation = func(ctx context.Context) (*validate.EligibleSet, error) {
		return a.revalidate(ctx, source, registry, pairs)
	}

	httpSrv, err := transporthttp.NewServer(transporthttp.ServerConfig{
		Addr:          cfg.App.HTTPAddr,
		Pipeline:      pipeline,
		Holder:        holder,
		Runner:        runner,
		Store:         st,
		Monitor:       monitor,
		DriftWindow:   time.Duration(cfg.Drift.WindowDays) * 24 * time.Hour,
		RunValidation: a.runValidation,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}
	a.httpSrv = httpSrv
	return a, nil
}

func buildSource(cfg *config.MarketConfig) (market.Source, error) {
	var sources []market.Source
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		sources = append(sources, market.NewBinanceSource(market.BinanceConfig{
			Name:        sc.Name,
			RESTBaseURL: sc.RESTBaseURL,
		}))
	}
	return market.NewFailoverSource(market.FailoverConfig{
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerTimeout:   time.Duration(cfg.BreakerTimeoutSeconds) * time.Second,
	}, sources...)
}

func buildRiskChain(cfg *config.RiskConfig) (*risk.Chain, error) {
	var checks []risk.Check
	if cfg.Volatility.Enabled {
		checks = append(checks, risk.NewVolatilityCheck(cfg.Volatility.Multiplier, cfg.Volatility.Percentile, cfg.Volatility.Window))
	}
	if cfg.Session.Enabled {
		sessionCheck, err := risk.NewSessionCheck(cfg.Session.Windows)
		if err != nil {
			return nil, fmt.Errorf("risk session config: %w", err)
		}
		checks = append(checks, sessionCheck)
	}
	if cfg.PriceLevel.Enabled {
		checks = append(checks, risk.NewPriceLevelCheck(cfg.PriceLevel.MinPips, cfg.PriceLevel.MaxRangeMultiple, cfg.PriceLevel.PipSize, cfg.PriceLevel.RangeBars))
	}
	if cfg.News.Enabled {
		checks = append(checks, risk.NewNewsCheck(risk.NewWeeklyCalendar(), time.Duration(cfg.News.BufferMinutes)*time.Minute))
	}
	if cfg.Correlation.Enabled {
		checks = append(checks, risk.NewCorrelationCheck(cfg.Correlation.Threshold, cfg.Correlation.MaxCorrelated, cfg.Correlation.MinSamples))
	}
	return risk.NewChain(checks...), nil
}

// revalidate 取一段验证历史，对当前策略池跑 walk-forward，
// 成功后换入新准入集合、落库并固化漂移基线。
func (a *App) revalidate(ctx context.Context, source market.Source, registry *strategy.Registry, pairs map[string]string) (*validate.EligibleSet, error) {
	pool := registry.Snapshot()
	if len(pool.Strategies) == 0 {
		return nil, fmt.Errorf("strategy pool is empty")
	}
	pair := a.cfg.Signal.Pairs[0]
	symbol := pair
	if s, ok := pairs[strings.ToUpper(pair)]; ok && s != "" {
		symbol = s
	}
	candles, err := source.FetchHistory(ctx, symbol, a.cfg.Kline.Interval, a.cfg.Validation.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch validation history: %w", err)
	}

	set, err := a.runner.Run(ctx, pool.Strategies, candles)
	if err != nil {
		return nil, err
	}
	a.holder.Swap(set)

	if err := a.store.SaveEligibleSet(ctx, set); err != nil {
		logger.Warnf("persist eligible set failed: %v", err)
	}
	for id, v := range set.Verdicts {
		if !v.Passed {
			continue
		}
		base := drift.Baseline{
			SubjectID:    id,
			WinRate:      v.OOSMetrics.WinRate,
			ProfitFactor: v.OOSMetrics.ProfitFactor,
			Sharpe:       v.OOSMetrics.Sharpe,
			Returns:      v.OOSReturns,
		}
		if err := a.store.SaveBaseline(ctx, base); err != nil {
			logger.Warnf("persist drift baseline %s failed: %v", id, err)
		}
	}
	return set, nil
}
