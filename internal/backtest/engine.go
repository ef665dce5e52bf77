package backtest

import (
	"fmt"
	"time"

	"quorum/internal/market"
	"quorum/internal/strategy"

	talib "github.com/markcheno/go-talib"
)

// CostModel 交易成本（占价格的比例）。点差按半价差计入双边。
type CostModel struct {
	SpreadPct   float64
	SlippagePct float64
}

type Trade struct {
	StrategyID string             `json:"strategy_id"`
	Direction  strategy.Direction `json:"direction"`
	EntryTime  int64              `json:"entry_time"`
	ExitTime   int64              `json:"exit_time"`
	EntryPrice float64            `json:"entry_price"`
	ExitPrice  float64            `json:"exit_price"`
	PnLPct     float64            `json:"pnl_pct"`
	ExitReason string             `json:"exit_reason"`
}

type Result struct {
	StrategyID string
	Trades     []Trade
	Metrics    Metrics
}

// Engine 逐根 K 线回放的回测引擎。同一输入必然产出同一结果。
type Engine struct {
	costs     CostModel
	minTrades int
}

func NewEngine(costs CostModel, minTrades int) *Engine {
	if minTrades <= 0 {
		minTrades = 10
	}
	return &Engine{costs: costs, minTrades: minTrades}
}

const warmupBars = 60

type openPosition struct {
	dir        strategy.Direction
	entryTime  int64
	entryPrice float64
	stop       float64
	target     float64
}

// Run 在整段序列上回放策略。入场按收盘价加成本成交；
// 同一根 K 线先查止损、后查止盈（保守成交假设）；
// 反向信号平仓后立即反手；收尾未平仓位按最后收盘价了结。
func (e *Engine) Run(def strategy.Definition, candles []market.Candle) (Result, error) {
	if len(candles) <= warmupBars {
		return Result{}, fmt.Errorf("backtest %s: need more than %d candles, got %d", def.ID, warmupBars, len(candles))
	}
	signals, err := strategy.Signals(def, candles)
	if err != nil {
		return Result{}, err
	}
	atrs := talib.Atr(market.Highs(candles), market.Lows(candles), market.Closes(candles), 14)

	var trades []Trade
	var pos *openPosition

	closeAt := func(bar market.Candle, price float64, reason string) {
		exit := e.exitFill(pos.dir, price, reason)
		trades = append(trades, Trade{
			StrategyID: def.ID,
			Direction:  pos.dir,
			EntryTime:  pos.entryTime,
			ExitTime:   bar.CloseTime,
			EntryPrice: pos.entryPrice,
			ExitPrice:  exit,
			PnLPct:     pnlPct(pos.dir, pos.entryPrice, exit),
			ExitReason: reason,
		})
		pos = nil
	}

	for i := warmupBars; i < len(candles); i++ {
		bar := candles[i]

		if pos != nil {
			if hit, price, reason := e.checkLevels(pos, bar); hit {
				closeAt(bar, price, reason)
			}
		}

		sig := signals[i]
		if sig == strategy.DirectionNone {
			continue
		}
		barClose := time.UnixMilli(bar.CloseTime)
		if !def.Session.Contains(barClose) {
			continue
		}

		if pos != nil {
			if sig == pos.dir.Opposite() {
				closeAt(bar, bar.Close, "reverse")
			} else {
				continue
			}
		}

		entry := e.entryFill(sig, bar.Close)
		stop, target := def.Exit.Apply(sig, entry, atrs[i])
		pos = &openPosition{
			dir:        sig,
			entryTime:  bar.CloseTime,
			entryPrice: entry,
			stop:       stop,
			target:     target,
		}
	}

	if pos != nil {
		closeAt(candles[len(candles)-1], candles[len(candles)-1].Close, "end")
	}

	metrics := computeMetrics(def.ID, trades, e.minTrades)
	return Result{StrategyID: def.ID, Trades: trades, Metrics: metrics}, nil
}

// checkLevels 用 K 线高低点判定止损/止盈触发。止损优先。
func (e *Engine) checkLevels(pos *openPosition, bar market.Candle) (bool, float64, string) {
	switch pos.dir {
	case strategy.DirectionBuy:
		if bar.Low <= pos.stop {
			return true, pos.stop, "stop"
		}
		if bar.High >= pos.target {
			return true, pos.target, "target"
		}
	case strategy.DirectionSell:
		if bar.High >= pos.stop {
			return true, pos.stop, "stop"
		}
		if bar.Low <= pos.target {
			return true, pos.target, "target"
		}
	}
	return false, 0, ""
}

func (e *Engine) entryFill(dir strategy.Direction, price float64) float64 {
	adj := e.costs.SpreadPct/2 + e.costs.SlippagePct
	if dir == strategy.DirectionBuy {
		return price * (1 + adj)
	}
	return price * (1 - adj)
}

func (e *Engine) exitFill(dir strategy.Direction, price float64, reason string) float64 {
	// 止损/止盈按挂单价成交，只有止损额外吃一档滑点。
	adj := e.costs.SpreadPct / 2
	switch reason {
	case "target":
		adj = 0
	case "stop":
		adj = e.costs.SlippagePct
	default:
		adj += e.costs.SlippagePct
	}
	if dir == strategy.DirectionBuy {
		return price * (1 - adj)
	}
	return price * (1 + adj)
}

func pnlPct(dir strategy.Direction, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	if dir == strategy.DirectionBuy {
		return (exit - entry) / entry
	}
	return (entry - exit) / entry
}
