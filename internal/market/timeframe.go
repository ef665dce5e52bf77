package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 周期定义：内部 duration 加数据源侧的 interval 字符串。
type Timeframe struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
}

// 重采样器只认日历对齐的固定网格，所以周期集合是封闭的。
var timeframes = func() map[string]Timeframe {
	out := make(map[string]Timeframe)
	for key, d := range map[string]time.Duration{
		"15m": 15 * time.Minute,
		"30m": 30 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	} {
		out[key] = Timeframe{Key: key, Duration: d, SourceInterval: key}
	}
	return out
}()

// ParseTimeframe 返回标准化周期定义，大小写与首尾空白不敏感。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := timeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes 返回全部合法 key（排序后），用于配置报错提示。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(timeframes))
	for k := range timeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (tf Timeframe) durationMillis() int64 {
	return tf.Duration.Milliseconds()
}

// ExpectedCandles 计算 start~end（含两端）区间应有的 K 线数量。
func (tf Timeframe) ExpectedCandles(start, end int64) int64 {
	step := tf.durationMillis()
	if end < start || step == 0 {
		return 0
	}
	return (end-start)/step + 1
}

func alignDown(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}
