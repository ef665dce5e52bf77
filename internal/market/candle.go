package market

import "fmt"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Closes 提取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ValidateSeries 校验 K 线按 OpenTime 严格递增；乱序或重复视为数据源缺陷。
func ValidateSeries(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("candle series not strictly increasing at index %d (%d <= %d)",
				i, candles[i].OpenTime, candles[i-1].OpenTime)
		}
	}
	return nil
}

// SliceBetween 返回 openTime 落在 [start, end) 的子序列（共享底层数组）。
func SliceBetween(candles []Candle, start, end int64) []Candle {
	lo := 0
	for lo < len(candles) && candles[lo].OpenTime < start {
		lo++
	}
	hi := lo
	for hi < len(candles) && candles[hi].OpenTime < end {
		hi++
	}
	return candles[lo:hi]
}
