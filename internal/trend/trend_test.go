package trend

import (
	"testing"
	"time"

	"quorum/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hourlySeries 从对齐的日界起点生成 n 根 1h K 线。
func hourlySeries(n int, next func(i int) float64) []market.Candle {
	base := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	step := time.Hour.Milliseconds()
	out := make([]market.Candle, n)
	for i := range out {
		price := next(i)
		open := base + int64(i)*step
		out[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open + step - 1,
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    100,
		}
	}
	return out
}

func TestAnalyzeBullishAlignment(t *testing.T) {
	// 50 天持续上涨：1h/4h/1d 三个周期都应看多。
	candles := hourlySeries(1200, func(i int) float64 {
		return 100 * (1 + 0.0008*float64(i))
	})
	align, err := Analyze(candles, Config{})
	require.NoError(t, err)

	assert.Equal(t, Bullish, align.Direction)
	assert.True(t, align.Aligned)
	assert.Greater(t, align.CombinedStrength, 0.0)
	require.Len(t, align.States, 3)
	assert.Equal(t, "1d", align.States[0].Timeframe)
	assert.Equal(t, "4h", align.States[1].Timeframe)
	assert.Equal(t, "1h", align.States[2].Timeframe)
	for _, st := range align.States {
		assert.Equal(t, Bullish, st.Direction, "timeframe %s", st.Timeframe)
	}
}

func TestAnalyzeBearishAlignment(t *testing.T) {
	candles := hourlySeries(1200, func(i int) float64 {
		return 200 * (1 - 0.0005*float64(i))
	})
	align, err := Analyze(candles, Config{})
	require.NoError(t, err)
	assert.Equal(t, Bearish, align.Direction)
	assert.True(t, align.Aligned)
}

func TestAnalyzeShortHistoryDailyNeutral(t *testing.T) {
	// 5 天数据：日线桶不足 35 根记中性，1h/4h 仍可判向。
	candles := hourlySeries(120, func(i int) float64 {
		return 100 * (1 + 0.001*float64(i))
	})
	align, err := Analyze(candles, Config{})
	require.NoError(t, err)
	assert.Equal(t, Neutral, align.States[0].Direction, "daily must be neutral on 5 days of data")
	// 4h 桶只有 30 根，同样中性；单周期看多不足 MinAligned=2。
	assert.Equal(t, Neutral, align.States[1].Direction)
	assert.False(t, align.Aligned)
	assert.Equal(t, Neutral, align.Direction)
}

func TestAnalyzeMinAlignedThree(t *testing.T) {
	// 仅 4h+1h 看多时，MinAligned=3 不放行。
	candles := hourlySeries(700, func(i int) float64 {
		return 100 * (1 + 0.0008*float64(i))
	})
	// 29 天历史：日线不足 35 根记中性，同向周期恰好两个。
	strict, err := Analyze(candles, Config{WeightDaily: 0.5, Weight4H: 0.3, Weight1H: 0.2, MinAligned: 3})
	require.NoError(t, err)
	loose, err := Analyze(candles, Config{WeightDaily: 0.5, Weight4H: 0.3, Weight1H: 0.2, MinAligned: 2})
	require.NoError(t, err)

	assert.False(t, strict.Aligned)
	assert.Equal(t, Neutral, strict.Direction)
	assert.True(t, loose.Aligned)
	assert.Equal(t, Bullish, loose.Direction)
}

func TestAlignStatesDailyDissent(t *testing.T) {
	// 4h+1h 看多、1d 看空：2/3 同向即 aligned，日线权重 0.5 不具否决权。
	states := []State{
		{Timeframe: "1d", Direction: Bearish, Strength: 0.9},
		{Timeframe: "4h", Direction: Bullish, Strength: 0.4},
		{Timeframe: "1h", Direction: Bullish, Strength: 0.3},
	}
	cfg := Config{WeightDaily: 0.5, Weight4H: 0.3, Weight1H: 0.2, MinAligned: 2}
	align := alignStates(states, cfg)

	assert.True(t, align.Aligned)
	assert.Equal(t, Bullish, align.Direction)
	assert.InDelta(t, 0.5*0.9+0.3*0.4+0.2*0.3, align.CombinedStrength, 1e-9)
}

func TestAlignStatesBearishMajority(t *testing.T) {
	states := []State{
		{Timeframe: "1d", Direction: Bearish, Strength: 0.5},
		{Timeframe: "4h", Direction: Bearish, Strength: 0.5},
		{Timeframe: "1h", Direction: Bullish, Strength: 0.5},
	}
	align := alignStates(states, Config{}.withDefaults())
	assert.True(t, align.Aligned)
	assert.Equal(t, Bearish, align.Direction)
}

func TestAnalyzeRequiresHistory(t *testing.T) {
	_, err := Analyze(hourlySeries(10, func(int) float64 { return 100 }), Config{})
	assert.Error(t, err)
}

func TestClassifyTimeframeRules(t *testing.T) {
	t.Run("flat series neutral", func(t *testing.T) {
		candles := hourlySeries(100, func(int) float64 { return 100 })
		st := classifyTimeframe("1h", candles)
		assert.Equal(t, Neutral, st.Direction)
		assert.Zero(t, st.Strength)
	})

	t.Run("insufficient data neutral", func(t *testing.T) {
		st := classifyTimeframe("1d", hourlySeries(10, func(int) float64 { return 100 }))
		assert.Equal(t, Neutral, st.Direction)
	})
}
