package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quorum/internal/ensemble"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/regime"
	"quorum/internal/risk"
	"quorum/internal/store"
	"quorum/internal/strategy"
	"quorum/internal/trend"
	"quorum/internal/validate"
)

// Decision 一次前台评估的完整结论。Signal 为 nil 时 Reasons 说明原因。
type Decision struct {
	Pair        string                `json:"pair"`
	Signal      *ensemble.Signal      `json:"signal,omitempty"`
	Reasons     []string              `json:"reasons,omitempty"`
	Regime      regime.Classification `json:"regime"`
	Trend       trend.Alignment       `json:"trend"`
	Votes       int                   `json:"votes"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

func (d Decision) Emitted() bool { return d.Signal != nil }

type Config struct {
	Interval     string
	Lookback     int
	Timeout      time.Duration
	RegimeCutoff float64
	Pairs        map[string]string // pair -> 数据源 symbol
}

func (c Config) withDefaults() Config {
	if c.Interval == "" {
		c.Interval = "1h"
	}
	if c.Lookback <= 0 {
		c.Lookback = 300
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RegimeCutoff <= 0 {
		c.RegimeCutoff = 0.6
	}
	return c
}

// Pipeline 前台信号管道：行情 → 市场状态 → 多周期趋势 → 集成投票 → 风控。
type Pipeline struct {
	cfg       Config
	source    market.Source
	holder    *validate.SetHolder
	regimeCfg regime.Config
	trendCfg  trend.Config
	voter     *ensemble.Engine
	riskChain *risk.Chain
	store     *store.GormStore

	// PositionsFn 返回当前敞口；未接入持仓来源时为 nil。
	PositionsFn func() []risk.Position
}

func NewPipeline(cfg Config, source market.Source, holder *validate.SetHolder,
	regimeCfg regime.Config, trendCfg trend.Config, voter *ensemble.Engine,
	riskChain *risk.Chain, st *store.GormStore) *Pipeline {
	return &Pipeline{
		cfg:       cfg.withDefaults(),
		source:    source,
		holder:    holder,
		regimeCfg: regimeCfg,
		trendCfg:  trendCfg,
		voter:     voter,
		riskChain: riskChain,
		store:     st,
	}
}

// Evaluate 评估单个品种。带硬超时；数据不可用产出 No Trade 决策而非错误。
// 每次决策无论成败都落审计日志。
func (p *Pipeline) Evaluate(ctx context.Context, pair string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	now := time.Now().UTC()
	decision := Decision{Pair: pair, EvaluatedAt: now}
	defer p.audit(&decision)

	symbol := p.symbolFor(pair)
	candles, err := p.source.FetchHistory(ctx, symbol, p.cfg.Interval, p.cfg.Lookback)
	if err != nil {
		decision.Reasons = []string{"no trade: market data unavailable", err.Error()}
		logger.Warnf("pipeline %s: %v", pair, err)
		return decision, nil
	}

	reg, err := regime.Classify(candles, p.regimeCfg)
	if err != nil {
		decision.Reasons = []string{fmt.Sprintf("no trade: regime classification failed: %v", err)}
		return decision, nil
	}
	decision.Regime = reg

	align, err := trend.Analyze(candles, p.trendCfg)
	if err != nil {
		decision.Reasons = []string{fmt.Sprintf("no trade: trend analysis failed: %v", err)}
		return decision, nil
	}
	decision.Trend = align

	set := p.holder.Load()
	if set == nil || len(set.Strategies) == 0 {
		decision.Reasons = []string{"no trade: eligible strategy set is empty"}
		return decision, nil
	}

	votes := p.collectVotes(set, candles, reg, now)
	decision.Votes = len(votes)

	sig, reasons := p.voter.Decide(votes, align, reg, pair, now)
	if sig == nil {
		decision.Reasons = reasons
		return decision, nil
	}

	verdict := p.riskChain.Evaluate(risk.Input{
		Signal:        sig,
		Candles:       candles,
		Now:           now,
		OpenPositions: p.positions(),
		ReturnsByPair: map[string][]float64{normalizePair(pair): returnsOf(candles)},
	})
	if !verdict.Passed {
		decision.Reasons = verdict.Reasons()
		return decision, nil
	}

	decision.Signal = sig
	logger.Infof("pipeline %s: signal %s confidence=%.1f agreement=%.2f strategies=%d",
		pair, sig.Direction, sig.Confidence, sig.Agreement, len(sig.StrategiesUsed))
	return decision, nil
}

// collectVotes 只统计真正触发的策略；不兼容当前市场状态或
// 不在交易时段的策略直接弃权，不进分母。
func (p *Pipeline) collectVotes(set *validate.EligibleSet, candles []market.Candle, reg regime.Classification, now time.Time) []ensemble.Vote {
	var votes []ensemble.Vote
	for _, def := range set.Strategies {
		if !regime.Compatible(def.Kind, reg.Label, p.cfg.RegimeCutoff) {
			continue
		}
		if !def.Session.Contains(now) {
			continue
		}
		eval, err := strategy.Evaluate(def, candles)
		if err != nil {
			logger.Warnf("pipeline: strategy %s evaluation failed: %v", def.ID, err)
			continue
		}
		if eval.Direction == strategy.DirectionNone {
			continue
		}
		confidence := 50.0
		if v, ok := set.Verdicts[def.ID]; ok {
			confidence = v.ConsistencyScore * 100
		}
		votes = append(votes, ensemble.Vote{
			StrategyID: def.ID,
			Direction:  eval.Direction,
			Entry:      eval.Entry,
			StopLoss:   eval.StopLoss,
			TakeProfit: eval.TakeProfit,
			Confidence: confidence,
		})
	}
	return votes
}

func (p *Pipeline) positions() []risk.Position {
	if p.PositionsFn == nil {
		return nil
	}
	return p.PositionsFn()
}

func (p *Pipeline) symbolFor(pair string) string {
	if sym, ok := p.cfg.Pairs[pair]; ok && strings.TrimSpace(sym) != "" {
		return sym
	}
	return pair
}

func (p *Pipeline) audit(d *Decision) {
	if p.store == nil {
		return
	}
	rec := store.SignalLogRecord{
		Pair:      d.Pair,
		Emitted:   d.Emitted(),
		Reasons:   d.Reasons,
		Payload:   d,
		CreatedAt: d.EvaluatedAt,
	}
	if d.Signal != nil {
		rec.SignalID = d.Signal.ID
		rec.Direction = string(d.Signal.Direction)
	}
	// 审计失败只告警：决策结果本身必须继续往外走。
	if err := p.store.AppendSignalLog(context.Background(), rec); err != nil {
		logger.Warnf("pipeline: append signal log failed: %v", err)
	}
}

func returnsOf(candles []market.Candle) []float64 {
	closes := market.Closes(candles)
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func normalizePair(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "/", ""))
}
