package market

// Resample 将低周期 K 线聚合为目标周期。桶边界为日历对齐的
// floor(OpenTime/Duration)，open 取首根、high/low 取极值、close 取末根、
// volume/trades 求和。输入必须按 OpenTime 递增。
// 尾部不完整的桶保留，由 Complete 标记区分。
func Resample(candles []Candle, tf Timeframe) []ResampledCandle {
	if len(candles) == 0 {
		return nil
	}
	step := tf.durationMillis()
	if step <= 0 {
		return nil
	}
	var out []ResampledCandle
	var cur *ResampledCandle
	for _, c := range candles {
		bucket := alignDown(c.OpenTime, step)
		if cur == nil || bucket != cur.OpenTime {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &ResampledCandle{
				Candle: Candle{
					OpenTime:  bucket,
					CloseTime: bucket + step - 1,
					Open:      c.Open,
					High:      c.High,
					Low:       c.Low,
					Close:     c.Close,
					Volume:    c.Volume,
					Trades:    c.Trades,
				},
				Complete: false,
			}
		} else {
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.Volume += c.Volume
			cur.Trades += c.Trades
		}
		if c.CloseTime >= cur.OpenTime+step-1 {
			cur.Complete = true
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// ResampledCandle 带完整性标记的聚合 K 线。
type ResampledCandle struct {
	Candle
	Complete bool
}

// CompleteOnly 过滤出已收盘的聚合桶。
func CompleteOnly(candles []ResampledCandle) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Complete {
			out = append(out, c.Candle)
		}
	}
	return out
}
