package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(startMs int64, closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	step := time.Hour.Milliseconds()
	for i, c := range closes {
		open := startMs + int64(i)*step
		out[i] = Candle{
			OpenTime:  open,
			CloseTime: open + step - 1,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
			Trades:    10,
		}
	}
	return out
}

func TestValidateSeries(t *testing.T) {
	base := int64(1_700_000_000_000)

	t.Run("increasing series passes", func(t *testing.T) {
		assert.NoError(t, ValidateSeries(hourly(base, 1, 2, 3)))
	})

	t.Run("duplicate open time rejected", func(t *testing.T) {
		candles := hourly(base, 1, 2, 3)
		candles[2].OpenTime = candles[1].OpenTime
		assert.Error(t, ValidateSeries(candles))
	})

	t.Run("out of order rejected", func(t *testing.T) {
		candles := hourly(base, 1, 2, 3)
		candles[0], candles[1] = candles[1], candles[0]
		assert.Error(t, ValidateSeries(candles))
	})
}

func TestSliceBetween(t *testing.T) {
	base := int64(1_700_000_000_000)
	step := time.Hour.Milliseconds()
	candles := hourly(base, 1, 2, 3, 4, 5)

	got := SliceBetween(candles, base+step, base+3*step)
	require.Len(t, got, 2)
	assert.Equal(t, base+step, got[0].OpenTime)
	assert.Equal(t, base+2*step, got[1].OpenTime)

	assert.Len(t, SliceBetween(candles, base, base+5*step), 5)
	assert.Empty(t, SliceBetween(candles, base+10*step, base+12*step))
}

func TestDropUnclosed(t *testing.T) {
	base := int64(1_700_000_000_000)
	candles := hourly(base, 1, 2, 3)
	now := candles[1].CloseTime

	got := DropUnclosed(candles, now)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[1].Close)

	assert.Len(t, DropUnclosed(candles, candles[2].CloseTime), 3)
	assert.Empty(t, DropUnclosed(candles, base-1))
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 4H ")
	require.NoError(t, err)
	assert.Equal(t, "4h", tf.Key)
	assert.Equal(t, 4*time.Hour, tf.Duration)

	_, err = ParseTimeframe("2h")
	assert.Error(t, err)
}

func TestExpectedCandles(t *testing.T) {
	tf, err := ParseTimeframe("1h")
	require.NoError(t, err)
	start := int64(0)
	end := 3 * time.Hour.Milliseconds()
	assert.Equal(t, int64(4), tf.ExpectedCandles(start, end))
	assert.Equal(t, int64(0), tf.ExpectedCandles(end, start))
}
