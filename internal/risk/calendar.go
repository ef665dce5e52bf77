package risk

import (
	"strings"
	"time"
)

// ScheduledEvent 某个具体时刻的高影响事件。
type ScheduledEvent struct {
	Time     time.Time
	Currency string
	Title    string
}

// EventSource 提供指定日期（UTC）的高影响事件。
// 默认实现是静态周历；接生产日历只需要换一个实现。
type EventSource interface {
	HighImpactEvents(day time.Time) []ScheduledEvent
}

type weeklyEvent struct {
	weekday  time.Weekday
	hour     int
	minute   int
	currency string
	title    string
}

// WeeklyCalendar 固定的周度高影响事件表（UTC 时间）。
type WeeklyCalendar struct {
	events []weeklyEvent
}

// NewWeeklyCalendar 内置主要央行与宏观数据的常规发布时点。
func NewWeeklyCalendar() *WeeklyCalendar {
	return &WeeklyCalendar{events: []weeklyEvent{
		{time.Monday, 8, 30, "EUR", "Eurozone PMI"},
		{time.Tuesday, 12, 30, "USD", "US CPI"},
		{time.Wednesday, 18, 0, "USD", "FOMC Statement"},
		{time.Wednesday, 12, 30, "USD", "US Retail Sales"},
		{time.Thursday, 11, 45, "EUR", "ECB Rate Decision"},
		{time.Thursday, 12, 30, "EUR", "ECB Press Conference"},
		{time.Thursday, 11, 0, "GBP", "BoE Rate Decision"},
		{time.Friday, 12, 30, "USD", "Non-Farm Payrolls"},
		{time.Friday, 12, 30, "CAD", "Canada Employment"},
	}}
}

func (c *WeeklyCalendar) HighImpactEvents(day time.Time) []ScheduledEvent {
	day = day.UTC()
	var out []ScheduledEvent
	for _, ev := range c.events {
		if ev.weekday != day.Weekday() {
			continue
		}
		out = append(out, ScheduledEvent{
			Time:     time.Date(day.Year(), day.Month(), day.Day(), ev.hour, ev.minute, 0, 0, time.UTC),
			Currency: ev.currency,
			Title:    ev.title,
		})
	}
	return out
}

// PairCurrencies 从 "EURUSD" 或 "EUR/USD" 提取两条腿的币种。
func PairCurrencies(pair string) (string, string) {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "/", ""))
	if len(clean) < 6 {
		return clean, ""
	}
	return clean[:3], clean[len(clean)-3:]
}
