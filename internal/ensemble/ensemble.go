package ensemble

import (
	"fmt"
	"time"

	"quorum/internal/regime"
	"quorum/internal/strategy"
	"quorum/internal/trend"

	"github.com/google/uuid"
)

type Config struct {
	MinVotes      int
	MinAgreement  float64 // 多数派占比门槛（分母不含弃权）
	MinConfidence float64 // 0-100
	EntryZonePct  float64 // 入场区半宽，0.001 = ±0.1%
	TrendBonus    float64
}

func (c Config) withDefaults() Config {
	if c.MinVotes <= 0 {
		c.MinVotes = 3
	}
	if c.MinAgreement <= 0 {
		c.MinAgreement = 0.8
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 80
	}
	if c.EntryZonePct <= 0 {
		c.EntryZonePct = 0.001
	}
	if c.TrendBonus <= 0 {
		c.TrendBonus = 5
	}
	return c
}

// Vote 单个策略的投票。弃权的策略根本不会出现在这里。
type Vote struct {
	StrategyID string             `json:"strategy_id"`
	Direction  strategy.Direction `json:"direction"`
	Entry      float64            `json:"entry"`
	StopLoss   float64            `json:"stop_loss"`
	TakeProfit float64            `json:"take_profit"`
	Confidence float64            `json:"confidence"`
}

// Signal 共识信号。
type Signal struct {
	ID             string             `json:"id"`
	Pair           string             `json:"pair"`
	Direction      strategy.Direction `json:"direction"`
	EntryZoneLow   float64            `json:"entry_zone_low"`
	EntryZoneHigh  float64            `json:"entry_zone_high"`
	StopLoss       float64            `json:"stop_loss"`
	TakeProfit     float64            `json:"take_profit"`
	Confidence     float64            `json:"confidence"`
	Agreement      float64            `json:"agreement"`
	StrategiesUsed []string           `json:"strategies_used"`
	TrendAligned   bool               `json:"trend_aligned"`
	Regime         regime.Label       `json:"regime"`
	Timestamp      time.Time          `json:"timestamp"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Decide 汇总投票并产出信号或拒绝理由。趋势处理是不对称的：
// 一致趋势同向给固定加分，一致趋势反向直接否决。
func (e *Engine) Decide(votes []Vote, align trend.Alignment, reg regime.Classification, pair string, now time.Time) (*Signal, []string) {
	if len(votes) < e.cfg.MinVotes {
		return nil, []string{fmt.Sprintf("only %d votes, need at least %d", len(votes), e.cfg.MinVotes)}
	}

	var buys, sells []Vote
	for _, v := range votes {
		switch v.Direction {
		case strategy.DirectionBuy:
			buys = append(buys, v)
		case strategy.DirectionSell:
			sells = append(sells, v)
		}
	}
	majority, dir := buys, strategy.DirectionBuy
	if len(sells) > len(buys) {
		majority, dir = sells, strategy.DirectionSell
	} else if len(sells) == len(buys) {
		return nil, []string{fmt.Sprintf("split vote %d/%d, no majority", len(buys), len(sells))}
	}

	agreement := float64(len(majority)) / float64(len(votes))
	if agreement < e.cfg.MinAgreement {
		return nil, []string{fmt.Sprintf("agreement %.2f below minimum %.2f", agreement, e.cfg.MinAgreement)}
	}

	confidence := agreement * 100
	trendAligned := false
	if align.Aligned {
		trendDir := directionOf(align.Direction)
		switch trendDir {
		case dir:
			trendAligned = true
			confidence += e.cfg.TrendBonus
		case dir.Opposite():
			return nil, []string{fmt.Sprintf("aligned %s trend opposes %s consensus", align.Direction, dir)}
		}
	}
	if confidence > 100 {
		confidence = 100
	}
	if confidence < e.cfg.MinConfidence {
		return nil, []string{fmt.Sprintf("confidence %.1f below minimum %.1f", confidence, e.cfg.MinConfidence)}
	}

	var entrySum, stopSum, targetSum float64
	used := make([]string, 0, len(majority))
	for _, v := range majority {
		entrySum += v.Entry
		stopSum += v.StopLoss
		targetSum += v.TakeProfit
		used = append(used, v.StrategyID)
	}
	n := float64(len(majority))
	meanEntry := entrySum / n

	return &Signal{
		ID:             uuid.NewString(),
		Pair:           pair,
		Direction:      dir,
		EntryZoneLow:   meanEntry * (1 - e.cfg.EntryZonePct),
		EntryZoneHigh:  meanEntry * (1 + e.cfg.EntryZonePct),
		StopLoss:       stopSum / n,
		TakeProfit:     targetSum / n,
		Confidence:     confidence,
		Agreement:      agreement,
		StrategiesUsed: used,
		TrendAligned:   trendAligned,
		Regime:         reg.Label,
		Timestamp:      now.UTC(),
	}, nil
}

func directionOf(d trend.Direction) strategy.Direction {
	switch d {
	case trend.Bullish:
		return strategy.DirectionBuy
	case trend.Bearish:
		return strategy.DirectionSell
	default:
		return strategy.DirectionNone
	}
}
