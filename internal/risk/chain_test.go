package risk

import (
	"testing"
	"time"

	"quorum/internal/ensemble"
	"quorum/internal/market"
	"quorum/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheck struct {
	name   string
	passed bool
}

func (s stubCheck) Name() string { return s.name }
func (s stubCheck) Evaluate(Input) CheckResult {
	if s.passed {
		return pass(s.name)
	}
	return fail(s.name, s.name+" rejected")
}

func TestChainRunsAllChecks(t *testing.T) {
	chain := NewChain(
		stubCheck{"a", true},
		stubCheck{"b", false},
		stubCheck{"c", false},
		stubCheck{"d", true},
	)
	v := chain.Evaluate(Input{})

	assert.False(t, v.Passed)
	// 即使第一条已失败，后续检查也全部执行并留痕。
	require.Len(t, v.Results, 4)
	assert.Equal(t, []string{"b: b rejected", "c: c rejected"}, v.Reasons())
}

func TestChainAllPass(t *testing.T) {
	chain := NewChain(stubCheck{"a", true}, stubCheck{"b", true})
	v := chain.Evaluate(Input{})
	assert.True(t, v.Passed)
	assert.Empty(t, v.Reasons())
}

func TestEmptyChainPasses(t *testing.T) {
	assert.True(t, NewChain().Evaluate(Input{}).Passed)
}

func steadyCandles(n int, price, span float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			CloseTime: int64(i+1)*3_600_000 - 1,
			Open:      price,
			High:      price + span,
			Low:       price - span,
			Close:     price + span*0.1*float64(i%3-1),
			Volume:    100,
		}
	}
	return out
}

func buySignal(pair string, entry, stop, target float64) *ensemble.Signal {
	return &ensemble.Signal{
		ID:            "sig-1",
		Pair:          pair,
		Direction:     strategy.DirectionBuy,
		EntryZoneLow:  entry * 0.999,
		EntryZoneHigh: entry * 1.001,
		StopLoss:      stop,
		TakeProfit:    target,
	}
}

func TestVolatilityCheck(t *testing.T) {
	check := NewVolatilityCheck(1.5, 75, 10)

	t.Run("calm market passes", func(t *testing.T) {
		res := check.Evaluate(Input{Candles: steadyCandles(100, 1.1000, 0.0005)})
		assert.True(t, res.Passed, res.Reason)
	})

	t.Run("volatility spike rejected", func(t *testing.T) {
		candles := steadyCandles(100, 1.1000, 0.0005)
		// 尾部注入剧烈摆动
		for i := 92; i < 100; i++ {
			if i%2 == 0 {
				candles[i].Close = 1.18
			} else {
				candles[i].Close = 1.02
			}
		}
		res := check.Evaluate(Input{Candles: candles})
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "exceeds")
	})

	t.Run("insufficient history rejected", func(t *testing.T) {
		res := check.Evaluate(Input{Candles: steadyCandles(5, 1.1, 0.001)})
		assert.False(t, res.Passed)
	})
}

func TestSessionCheck(t *testing.T) {
	check, err := NewSessionCheck([]string{"07:00-16:00", "12:00-21:00"})
	require.NoError(t, err)

	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 15, 0, 0, time.UTC)
	}
	assert.True(t, check.Evaluate(Input{Now: at(8)}).Passed)
	assert.True(t, check.Evaluate(Input{Now: at(20)}).Passed)
	assert.False(t, check.Evaluate(Input{Now: at(3)}).Passed)
	assert.False(t, check.Evaluate(Input{Now: at(22)}).Passed)
}

func TestSessionCheckRejectsBadWindow(t *testing.T) {
	_, err := NewSessionCheck([]string{"garbage"})
	assert.Error(t, err)
	_, err = NewSessionCheck([]string{"16:00-07:00"})
	assert.Error(t, err)
}

func TestPriceLevelCheck(t *testing.T) {
	check := NewPriceLevelCheck(10, 3, 0.0001, 20)
	candles := steadyCandles(50, 1.1000, 0.0030)

	t.Run("reasonable levels pass", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal:  buySignal("EURUSD", 1.1000, 1.0970, 1.1050),
			Candles: candles,
		})
		assert.True(t, res.Passed, res.Reason)
	})

	t.Run("stop too tight rejected", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal:  buySignal("EURUSD", 1.1000, 1.0998, 1.1050),
			Candles: candles,
		})
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "stop distance")
	})

	t.Run("span beyond range multiple rejected", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal:  buySignal("EURUSD", 1.1000, 1.0800, 1.1400),
			Candles: candles,
		})
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "exceeds")
	})

	t.Run("no signal rejected", func(t *testing.T) {
		assert.False(t, check.Evaluate(Input{Candles: candles}).Passed)
	})
}

func TestNewsCheck(t *testing.T) {
	check := NewNewsCheck(NewWeeklyCalendar(), 30*time.Minute)
	sig := buySignal("EURUSD", 1.1, 1.09, 1.12)

	// 2026-03-06 是周五，NFP 12:30 UTC。
	nfp := time.Date(2026, 3, 6, 12, 30, 0, 0, time.UTC)

	t.Run("inside buffer rejected", func(t *testing.T) {
		res := check.Evaluate(Input{Signal: sig, Now: nfp.Add(10 * time.Minute)})
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "Non-Farm Payrolls")
	})

	t.Run("before event inside buffer rejected", func(t *testing.T) {
		res := check.Evaluate(Input{Signal: sig, Now: nfp.Add(-20 * time.Minute)})
		assert.False(t, res.Passed)
	})

	t.Run("surfaced reason names the gate", func(t *testing.T) {
		v := NewChain(check).Evaluate(Input{Signal: sig, Now: nfp.Add(-18 * time.Minute)})
		require.False(t, v.Passed)
		require.Len(t, v.Reasons(), 1)
		assert.Contains(t, v.Reasons()[0], "news")
	})

	t.Run("outside buffer passes", func(t *testing.T) {
		res := check.Evaluate(Input{Signal: sig, Now: nfp.Add(2 * time.Hour)})
		assert.True(t, res.Passed, res.Reason)
	})

	t.Run("unrelated currency passes", func(t *testing.T) {
		// 周四 BoE（GBP）对 EURUSD 无影响；避开同日的 ECB 时点。
		boe := time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC)
		res := check.Evaluate(Input{Signal: buySignal("AUDUSD", 0.66, 0.655, 0.67), Now: boe})
		assert.True(t, res.Passed, res.Reason)
	})
}

func TestCorrelationCheck(t *testing.T) {
	check := NewCorrelationCheck(0.7, 1, 30)
	sig := buySignal("EURUSD", 1.1, 1.09, 1.12)

	t.Run("no positions passes", func(t *testing.T) {
		assert.True(t, check.Evaluate(Input{Signal: sig}).Passed)
	})

	t.Run("same pair open rejected", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal:        sig,
			OpenPositions: []Position{{Pair: "EUR/USD", Direction: strategy.DirectionBuy}},
		})
		assert.False(t, res.Passed)
		assert.Contains(t, res.Reason, "already open")
	})

	t.Run("static correlation over limit", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal: sig,
			OpenPositions: []Position{
				{Pair: "GBPUSD"}, // 0.75
				{Pair: "USDCHF"}, // -0.85
			},
		})
		assert.False(t, res.Passed)
	})

	t.Run("one correlated position allowed", func(t *testing.T) {
		res := check.Evaluate(Input{
			Signal:        sig,
			OpenPositions: []Position{{Pair: "GBPUSD"}},
		})
		assert.True(t, res.Passed, res.Reason)
	})

	t.Run("dynamic returns override static", func(t *testing.T) {
		// 实算相关性为 0 的两条正交序列：静态表里 0.75 也不应触发。
		a := make([]float64, 40)
		b := make([]float64, 40)
		for i := range a {
			if i%2 == 0 {
				a[i] = 0.01
			} else {
				a[i] = -0.01
			}
			if i%4 < 2 {
				b[i] = 0.01
			} else {
				b[i] = -0.01
			}
		}
		res := check.Evaluate(Input{
			Signal:        sig,
			OpenPositions: []Position{{Pair: "GBPUSD"}, {Pair: "AUDUSD"}},
			ReturnsByPair: map[string][]float64{"EURUSD": a, "GBPUSD": b, "AUDUSD": b},
		})
		assert.True(t, res.Passed, res.Reason)
	})
}

func TestPairCurrencies(t *testing.T) {
	base, quote := PairCurrencies("EUR/USD")
	assert.Equal(t, "EUR", base)
	assert.Equal(t, "USD", quote)

	base, quote = PairCurrencies("gbpjpy")
	assert.Equal(t, "GBP", base)
	assert.Equal(t, "JPY", quote)
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	corr, ok := pearson(a, a)
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr, 1e-9)

	inv := []float64{4, 3, 2, 1}
	corr, ok = pearson(a, inv)
	require.True(t, ok)
	assert.InDelta(t, -1.0, corr, 1e-9)

	_, ok = pearson(a, []float64{1, 1, 1, 1})
	assert.False(t, ok, "zero variance has no defined correlation")
}
