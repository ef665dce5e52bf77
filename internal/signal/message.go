package signal

import (
	"fmt"
	"strings"
)

// Render 把决策渲染成推送文本（Telegram Markdown）。
func Render(d Decision) string {
	var b strings.Builder
	if d.Signal == nil {
		fmt.Fprintf(&b, "*%s* — No Trade\n", d.Pair)
		fmt.Fprintf(&b, "Regime: %s (%.0f%%)\n", d.Regime.Label, d.Regime.Confidence*100)
		for _, r := range d.Reasons {
			fmt.Fprintf(&b, "• %s\n", r)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	s := d.Signal
	fmt.Fprintf(&b, "*%s %s* (%.0f)\n", s.Pair, strings.ToUpper(string(s.Direction)), s.Confidence)
	fmt.Fprintf(&b, "Entry: %.5f – %.5f\n", s.EntryZoneLow, s.EntryZoneHigh)
	fmt.Fprintf(&b, "Stop: %.5f  Target: %.5f\n", s.StopLoss, s.TakeProfit)
	fmt.Fprintf(&b, "Agreement: %.0f%% (%d strategies)\n", s.Agreement*100, len(s.StrategiesUsed))
	fmt.Fprintf(&b, "Regime: %s", s.Regime)
	if s.TrendAligned {
		b.WriteString("  Trend: aligned")
	}
	return b.String()
}
