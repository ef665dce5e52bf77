package validate

import (
	"fmt"
	"time"
)

// WindowSpec 滚动窗口布局（天）。步长固定等于测试窗宽。
type WindowSpec struct {
	TrainDays  int
	TestDays   int
	OOSDays    int
	MinWindows int
}

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// Window 单个滚动窗口，时间为毫秒、区间左闭右开。
type Window struct {
	Index      int
	TrainStart int64
	TrainEnd   int64
	TestStart  int64
	TestEnd    int64
}

// BuildWindows 把 [start, end) 切成日历对齐的滚动窗口，并在末尾
// 保留一段从未参与滚动窗口的 OOS 样本。历史不足 MinWindows 个窗口时报错。
func BuildWindows(startMs, endMs int64, spec WindowSpec) ([]Window, Window, error) {
	if spec.TrainDays <= 0 || spec.TestDays <= 0 || spec.OOSDays <= 0 {
		return nil, Window{}, fmt.Errorf("window spec requires positive train/test/oos days")
	}
	minWindows := spec.MinWindows
	if minWindows <= 0 {
		minWindows = 3
	}

	start := alignUpToDay(startMs)
	end := alignDownToDay(endMs)
	oosStart := end - int64(spec.OOSDays)*dayMillis
	if oosStart <= start {
		return nil, Window{}, fmt.Errorf("history too short: %s to %s leaves no room for oos holdout",
			formatDay(startMs), formatDay(endMs))
	}
	oos := Window{TrainStart: oosStart, TrainEnd: oosStart, TestStart: oosStart, TestEnd: end}

	train := int64(spec.TrainDays) * dayMillis
	test := int64(spec.TestDays) * dayMillis
	var windows []Window
	for cursor := start; ; cursor += test {
		w := Window{
			Index:      len(windows),
			TrainStart: cursor,
			TrainEnd:   cursor + train,
			TestStart:  cursor + train,
			TestEnd:    cursor + train + test,
		}
		if w.TestEnd > oosStart {
			break
		}
		windows = append(windows, w)
	}
	if len(windows) < minWindows {
		return nil, Window{}, fmt.Errorf("history yields %d rolling windows, need at least %d", len(windows), minWindows)
	}
	return windows, oos, nil
}

func alignDownToDay(ms int64) int64 {
	rem := ms % dayMillis
	if rem < 0 {
		rem += dayMillis
	}
	return ms - rem
}

func alignUpToDay(ms int64) int64 {
	down := alignDownToDay(ms)
	if down == ms {
		return ms
	}
	return down + dayMillis
}

func formatDay(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
