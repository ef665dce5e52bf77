package strategy

import (
	"strings"
	"time"
)

// Session 交易时段过滤器（UTC 小时）。
type Session string

const (
	SessionLondon  Session = "london"
	SessionNewYork Session = "newyork"
	SessionBoth    Session = "both"
	SessionAny     Session = "any"
)

// Contains 判断 t 是否落在本时段内。
// London 07:00–16:00 UTC，New York 12:00–21:00 UTC，both 取重叠段 12:00–16:00。
func (s Session) Contains(t time.Time) bool {
	hour := t.UTC().Hour()
	switch Session(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SessionLondon:
		return hour >= 7 && hour < 16
	case SessionNewYork:
		return hour >= 12 && hour < 21
	case SessionBoth:
		return hour >= 12 && hour < 16
	case SessionAny, "":
		return true
	default:
		return true
	}
}

func (s Session) Valid() bool {
	switch Session(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SessionLondon, SessionNewYork, SessionBoth, SessionAny, "":
		return true
	default:
		return false
	}
}
