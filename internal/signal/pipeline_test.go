package signal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"quorum/internal/ensemble"
	"quorum/internal/market"
	"quorum/internal/regime"
	"quorum/internal/risk"
	"quorum/internal/strategy"
	"quorum/internal/trend"
	"quorum/internal/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles     []market.Candle
	err         error
	lastSymbol  string
	lastLimit   int
	lastIntervl string
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	f.lastSymbol = symbol
	f.lastIntervl = interval
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeSource) Name() string              { return "fake" }
func (f *fakeSource) Stats() market.SourceStats { return market.SourceStats{} }
func (f *fakeSource) Close() error              { return nil }

// rangingCandles 小幅震荡的 1h 序列，足够喂饱指标窗口。
func rangingCandles(n int) []market.Candle {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		base := 1.1000 + 0.002*math.Sin(float64(i)/10)
		out[i] = market.Candle{
			OpenTime:  start + int64(i)*3600_000,
			CloseTime: start + int64(i+1)*3600_000 - 1,
			Open:      base,
			High:      base + 0.0008,
			Low:       base - 0.0008,
			Close:     base + 0.0003,
			Volume:    1000,
			Trades:    50,
		}
	}
	return out
}

func testPipeline(src market.Source, holder *validate.SetHolder, cfg Config) *Pipeline {
	return NewPipeline(cfg, src, holder,
		regime.Config{}, trend.Config{},
		ensemble.NewEngine(ensemble.Config{}),
		risk.NewChain(), nil)
}

func TestEvaluateDataUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("all sources exhausted")}
	p := testPipeline(src, &validate.SetHolder{}, Config{})

	d, err := p.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err, "data failure is a decision, not an error")
	assert.False(t, d.Emitted())
	require.NotEmpty(t, d.Reasons)
	assert.Equal(t, "no trade: market data unavailable", d.Reasons[0])
	assert.Equal(t, "EURUSD", d.Pair)
	assert.False(t, d.EvaluatedAt.IsZero())
}

func TestEvaluateEmptyEligibleSet(t *testing.T) {
	src := &fakeSource{candles: rangingCandles(300)}
	p := testPipeline(src, &validate.SetHolder{}, Config{})

	d, err := p.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.False(t, d.Emitted())
	assert.Contains(t, d.Reasons, "no trade: eligible strategy set is empty")
	assert.NotEmpty(t, d.Regime.Label, "regime still classified before the set check")
	assert.Zero(t, d.Votes)
}

func TestEvaluateAllStrategiesAbstain(t *testing.T) {
	src := &fakeSource{candles: rangingCandles(300)}
	holder := &validate.SetHolder{}
	set := &validate.EligibleSet{
		Version: 1,
		Strategies: []strategy.Definition{
			{ID: "s1", Kind: strategy.KindEMACross, Timeframe: "1h"},
			{ID: "s2", Kind: strategy.KindRSIReversal, Timeframe: "1h"},
		},
		Verdicts: map[string]validate.Verdict{},
	}
	set.Index()
	holder.Swap(set)

	// 准入线抬到矩阵最大值之上，任何策略都过不了兼容度关。
	p := testPipeline(src, holder, Config{RegimeCutoff: 0.95})

	d, err := p.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.False(t, d.Emitted())
	assert.Zero(t, d.Votes, "incompatible strategies abstain and never enter the denominator")
	require.NotEmpty(t, d.Reasons)
	assert.Contains(t, d.Reasons[0], "votes")
}

func TestSymbolMapping(t *testing.T) {
	src := &fakeSource{err: errors.New("short-circuit")}
	p := testPipeline(src, &validate.SetHolder{}, Config{
		Interval: "4h",
		Lookback: 120,
		Pairs:    map[string]string{"EURUSD": "EURUSDT"},
	})

	_, err := p.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSDT", src.lastSymbol)
	assert.Equal(t, "4h", src.lastIntervl)
	assert.Equal(t, 120, src.lastLimit)

	_, err = p.Evaluate(context.Background(), "GBPUSD")
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", src.lastSymbol, "unmapped pair passes through unchanged")
}

func TestReturnsOf(t *testing.T) {
	candles := []market.Candle{
		{Close: 100}, {Close: 101}, {Close: 99.99},
	}
	got := returnsOf(candles)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.01, got[0], 1e-12)
	assert.InDelta(t, (99.99-101)/101, got[1], 1e-12)

	assert.Nil(t, returnsOf(candles[:1]))
	assert.Equal(t, []float64{0}, returnsOf([]market.Candle{{Close: 0}, {Close: 5}}))
}

func TestNormalizePair(t *testing.T) {
	assert.Equal(t, "EURUSD", normalizePair(" eur/usd "))
	assert.Equal(t, "GBPJPY", normalizePair("GBPJPY"))
}

func TestRenderNoTrade(t *testing.T) {
	d := Decision{
		Pair:    "EURUSD",
		Reasons: []string{"no trade: eligible strategy set is empty"},
		Regime:  regime.Classification{Label: regime.Ranging, Confidence: 0.72},
	}
	out := Render(d)
	assert.Contains(t, out, "*EURUSD* — No Trade")
	assert.Contains(t, out, "Regime: ranging (72%)")
	assert.Contains(t, out, "• no trade: eligible strategy set is empty")
}

func TestRenderSignal(t *testing.T) {
	d := Decision{
		Pair: "EURUSD",
		Signal: &ensemble.Signal{
			Pair:           "EURUSD",
			Direction:      strategy.DirectionBuy,
			EntryZoneLow:   1.09989,
			EntryZoneHigh:  1.10209,
			StopLoss:       1.09500,
			TakeProfit:     1.11200,
			Confidence:     85,
			Agreement:      0.8,
			StrategiesUsed: []string{"s1", "s2", "s3", "s4"},
			TrendAligned:   true,
			Regime:         regime.TrendingUp,
		},
	}
	out := Render(d)
	assert.Contains(t, out, "*EURUSD BUY* (85)")
	assert.Contains(t, out, "Entry: 1.09989 – 1.10209")
	assert.Contains(t, out, "Stop: 1.09500  Target: 1.11200")
	assert.Contains(t, out, "Agreement: 80% (4 strategies)")
	assert.Contains(t, out, "Trend: aligned")
}
