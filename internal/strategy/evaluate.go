package strategy

import (
	"fmt"

	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

// minEvalBars 保证最慢的指标（SMA50/MACD）有足够的暖机数据。
const minEvalBars = 60

// Signals 计算整条序列上每根 K 线的方向。指标只算一次，
// 回测逐根消费时没有前视偏差（所有指标都是因果的）。
func Signals(def Definition, candles []market.Candle) ([]Direction, error) {
	if len(candles) < minEvalBars {
		return nil, fmt.Errorf("strategy %s: need at least %d candles, got %d", def.ID, minEvalBars, len(candles))
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", def.ID, err)
	}
	pred, err := compile(def, candles)
	if err != nil {
		return nil, err
	}
	out := make([]Direction, len(candles))
	for i := range candles {
		out[i] = pred.directionAt(i)
	}
	return out, nil
}

// Evaluate 判定最新一根已收盘 K 线，并给出入场价与止损止盈。
func Evaluate(def Definition, candles []market.Candle) (Evaluation, error) {
	signals, err := Signals(def, candles)
	if err != nil {
		return Evaluation{}, err
	}
	dir := signals[len(signals)-1]
	if dir == DirectionNone {
		return Evaluation{Direction: DirectionNone}, nil
	}
	entry := candles[len(candles)-1].Close
	atrs := talib.Atr(market.Highs(candles), market.Lows(candles), market.Closes(candles), 14)
	atr := atrs[len(atrs)-1]
	stop, target := def.Exit.Apply(dir, entry, atr)
	return Evaluation{
		Direction:  dir,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
	}, nil
}
