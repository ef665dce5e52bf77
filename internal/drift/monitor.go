package drift

import (
	"math"
	"sync"
	"time"
)

// Severity 漂移严重度，按最差指标退化分档。
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Action 建议的处置动作。
type Action string

const (
	ActionNone    Action = "none"
	ActionMonitor Action = "monitor"
	ActionRetrain Action = "retrain"
	ActionDisable Action = "disable"
)

// Outcome 一笔已实现的交易结果。
type Outcome struct {
	SubjectID string    `json:"subject_id"`
	PnLPct    float64   `json:"pnl_pct"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Baseline 验证期固化的参照指标。
type Baseline struct {
	SubjectID    string    `json:"subject_id"`
	WinRate      float64   `json:"win_rate"`
	ProfitFactor float64   `json:"profit_factor"`
	Sharpe       float64   `json:"sharpe"`
	Returns      []float64 `json:"returns"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MetricDelta 单指标的退化程度。
type MetricDelta struct {
	Metric      string  `json:"metric"`
	Recent      float64 `json:"recent"`
	Baseline    float64 `json:"baseline"`
	Degradation float64 `json:"degradation"` // 1 − recent/baseline，只看恶化方向
}

// Report 一次漂移评估。
type Report struct {
	SubjectID        string        `json:"subject_id"`
	Severity         Severity      `json:"severity"`
	Action           Action        `json:"action"`
	Deltas           []MetricDelta `json:"deltas"`
	KS               KSResult      `json:"ks"`
	InsufficientData bool          `json:"insufficient_data"`
	SampleSize       int           `json:"sample_size"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

type Config struct {
	MinSamples    int
	Alpha         float64
	CooldownHours int
}

func (c Config) withDefaults() Config {
	if c.MinSamples <= 0 {
		c.MinSamples = 20
	}
	if c.Alpha <= 0 {
		c.Alpha = 0.05
	}
	if c.CooldownHours <= 0 {
		c.CooldownHours = 24
	}
	return c
}

// Monitor 对比近期实盘结果与验证期基线。告警带每主体冷却。
type Monitor struct {
	cfg Config

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg.withDefaults(), lastAlert: make(map[string]time.Time)}
}

// Evaluate 生成漂移报告。样本不足时仅标记 InsufficientData，
// 不产生任何分档或动作（统计不可判定不是退化）。
func (m *Monitor) Evaluate(subjectID string, recent []Outcome, base Baseline, now time.Time) Report {
	report := Report{
		SubjectID:   subjectID,
		Severity:    SeverityNone,
		Action:      ActionNone,
		SampleSize:  len(recent),
		GeneratedAt: now.UTC(),
	}
	if len(recent) < m.cfg.MinSamples {
		report.InsufficientData = true
		return report
	}

	recentReturns := make([]float64, len(recent))
	for i, o := range recent {
		recentReturns[i] = o.PnLPct
	}
	recentMetrics := summarize(recentReturns)

	report.Deltas = []MetricDelta{
		delta("win_rate", recentMetrics.winRate, base.WinRate),
		delta("profit_factor", recentMetrics.profitFactor, base.ProfitFactor),
		delta("sharpe", recentMetrics.sharpe, base.Sharpe),
	}
	var worst float64
	for _, d := range report.Deltas {
		if d.Degradation > worst {
			worst = d.Degradation
		}
	}
	report.Severity = severityFor(worst)

	report.KS = KolmogorovSmirnov(recentReturns, base.Returns, m.cfg.Alpha)
	// 阈值规则之上还要统计检验背书，否则压回 LOW。
	if report.Severity.rank() > SeverityLow.rank() && !report.KS.Reject {
		report.Severity = SeverityLow
	}

	report.Action = actionFor(report.Severity)
	return report
}

// ShouldAlert 冷却窗口内同一主体只告警一次。
func (m *Monitor) ShouldAlert(subjectID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastAlert[subjectID]
	if ok && now.Sub(last) < time.Duration(m.cfg.CooldownHours)*time.Hour {
		return false
	}
	m.lastAlert[subjectID] = now
	return true
}

func severityFor(worstDegradation float64) Severity {
	pct := worstDegradation * 100
	switch {
	case pct >= 40:
		return SeverityCritical
	case pct >= 25:
		return SeverityHigh
	case pct >= 15:
		return SeverityMedium
	case pct >= 5:
		return SeverityLow
	default:
		return SeverityNone
	}
}

func actionFor(s Severity) Action {
	switch s {
	case SeverityCritical:
		return ActionDisable
	case SeverityHigh:
		return ActionRetrain
	case SeverityMedium, SeverityLow:
		return ActionMonitor
	default:
		return ActionNone
	}
}

func delta(metric string, recent, baseline float64) MetricDelta {
	d := MetricDelta{Metric: metric, Recent: recent, Baseline: baseline}
	if baseline > 0 && !math.IsInf(baseline, 0) {
		deg := 1 - recent/baseline
		if deg > 0 {
			d.Degradation = deg
		}
	}
	return d
}

type summaryMetrics struct {
	winRate      float64
	profitFactor float64
	sharpe       float64
}

func summarize(returns []float64) summaryMetrics {
	var wins int
	var grossProfit, grossLoss, sum float64
	for _, r := range returns {
		sum += r
		if r > 0 {
			wins++
			grossProfit += r
		} else {
			grossLoss += -r
		}
	}
	out := summaryMetrics{winRate: float64(wins) / float64(len(returns))}
	if grossLoss > 0 {
		out.profitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		out.profitFactor = math.Inf(1)
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if std > 0 {
		out.sharpe = mean / std * math.Sqrt(252)
	}
	return out
}
