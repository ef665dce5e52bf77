package report

import (
	"bytes"
	"math"
	"testing"

	"quorum/internal/backtest"
	"quorum/internal/strategy"
	"quorum/internal/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkForwardRendersHTML(t *testing.T) {
	set := &validate.EligibleSet{
		Version: 42,
		RunID:   "run-7",
		Strategies: []strategy.Definition{
			{ID: "ema-fast", Kind: strategy.KindEMACross},
		},
		Verdicts: map[string]validate.Verdict{
			"ema-fast": {
				StrategyID:       "ema-fast",
				Passed:           true,
				ConsistencyScore: 0.82,
				DecayRatio:       0.97,
				OOSWinRate:       0.55,
				TestWinRates:     []float64{0.52, 0.58, 0.49},
			},
			"rsi-slow": {
				StrategyID:   "rsi-slow",
				Passed:       false,
				Reason:       "win rate 0.300 below minimum 0.450",
				TestWinRates: []float64{0.30, 0.28},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WalkForward(&buf, set))
	html := buf.String()
	assert.Contains(t, html, "walk-forward run run-7")
	assert.Contains(t, html, "ema-fast")
	assert.Contains(t, html, "rsi-slow")
	assert.Contains(t, html, "rejected: win rate 0.300 below minimum 0.450")
}

func TestWalkForwardNilSet(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WalkForward(&buf, nil))
}

func TestEquityCurve(t *testing.T) {
	res := backtest.Result{
		StrategyID: "ema-fast",
		Trades: []backtest.Trade{
			{PnLPct: 0.01}, {PnLPct: -0.005}, {PnLPct: 0.02},
		},
		Metrics: backtest.Metrics{TradeCount: 3, WinRate: 0.67, Sharpe: 1.1, MaxDrawdown: 0.005},
	}
	var buf bytes.Buffer
	require.NoError(t, EquityCurve(&buf, res))
	assert.Contains(t, buf.String(), "ema-fast equity")
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.123, round3(0.12345))
	assert.Equal(t, 0.0, round3(math.NaN()))
	assert.Equal(t, 0.0, round3(math.Inf(1)))
}
