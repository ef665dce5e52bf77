package risk

import (
	"fmt"
	"time"
)

// NewsCheck 高影响事件前后禁止入场。信号品种任意一条腿的币种
// 落在事件 ±Buffer 窗口内即拒绝。
type NewsCheck struct {
	Source EventSource
	Buffer time.Duration
}

func NewNewsCheck(source EventSource, buffer time.Duration) *NewsCheck {
	if source == nil {
		source = NewWeeklyCalendar()
	}
	if buffer <= 0 {
		buffer = 30 * time.Minute
	}
	return &NewsCheck{Source: source, Buffer: buffer}
}

func (c *NewsCheck) Name() string { return "news" }

func (c *NewsCheck) Evaluate(in Input) CheckResult {
	if in.Signal == nil {
		return fail(c.Name(), "no signal to inspect")
	}
	base, quote := PairCurrencies(in.Signal.Pair)
	now := in.Now.UTC()

	// buffer 跨午夜时事件可能挂在相邻日期下。
	for _, day := range []time.Time{now.Add(-c.Buffer), now, now.Add(c.Buffer)} {
		for _, ev := range c.Source.HighImpactEvents(day) {
			if ev.Currency != base && ev.Currency != quote {
				continue
			}
			delta := now.Sub(ev.Time)
			if delta < 0 {
				delta = -delta
			}
			if delta <= c.Buffer {
				return fail(c.Name(), fmt.Sprintf("within %s of %s (%s at %s)",
					c.Buffer, ev.Title, ev.Currency, ev.Time.Format("15:04 MST")))
			}
		}
	}
	return pass(c.Name())
}
