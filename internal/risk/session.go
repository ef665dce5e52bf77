package risk

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionCheck 只允许流动性充足的时段入场。窗口为 UTC 小时区间，
// 配置形如 "07:00-16:00"。
type SessionCheck struct {
	windows []hourWindow
}

type hourWindow struct {
	startHour, endHour int
}

func NewSessionCheck(windows []string) (*SessionCheck, error) {
	parsed := make([]hourWindow, 0, len(windows))
	for _, raw := range windows {
		w, err := parseHourWindow(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, w)
	}
	if len(parsed) == 0 {
		parsed = []hourWindow{{7, 16}, {12, 21}}
	}
	return &SessionCheck{windows: parsed}, nil
}

func (c *SessionCheck) Name() string { return "session" }

func (c *SessionCheck) Evaluate(in Input) CheckResult {
	hour := in.Now.UTC().Hour()
	for _, w := range c.windows {
		if hour >= w.startHour && hour < w.endHour {
			return pass(c.Name())
		}
	}
	return fail(c.Name(), fmt.Sprintf("hour %02d:00 UTC outside liquidity windows", hour))
}

func parseHourWindow(raw string) (hourWindow, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return hourWindow{}, fmt.Errorf("invalid session window %q, want HH:MM-HH:MM", raw)
	}
	start, err := parseHour(parts[0])
	if err != nil {
		return hourWindow{}, fmt.Errorf("invalid session window %q: %w", raw, err)
	}
	end, err := parseHour(parts[1])
	if err != nil {
		return hourWindow{}, fmt.Errorf("invalid session window %q: %w", raw, err)
	}
	if end <= start {
		return hourWindow{}, fmt.Errorf("invalid session window %q: end before start", raw)
	}
	return hourWindow{startHour: start, endHour: end}, nil
}

func parseHour(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ":"); idx >= 0 {
		raw = raw[:idx]
	}
	h, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 {
		return 0, fmt.Errorf("hour %d out of range", h)
	}
	return h, nil
}
