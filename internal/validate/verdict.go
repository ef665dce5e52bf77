package validate

import (
	"quorum/internal/backtest"
)

// Criteria 准入门槛。任何一条不过即整体不通过。
type Criteria struct {
	MinWinRate       float64
	MinTrades        int
	MinOOSTrades     int
	ConsistencyFloor float64
	DecayFloor       float64
}

// Verdict 单个策略的验证结论。Passed=false 不是错误，只是不准入。
type Verdict struct {
	StrategyID string `json:"strategy_id"`
	Passed     bool   `json:"passed"`
	Reason     string `json:"reason,omitempty"`

	Windows          int       `json:"windows"`
	TrainWinRate     float64   `json:"train_win_rate"`
	TestWinRates     []float64 `json:"test_win_rates"`
	ConsistencyScore float64   `json:"consistency_score"`
	OOSWinRate       float64   `json:"oos_win_rate"`
	OOSTrades        int       `json:"oos_trades"`
	DecayRatio       float64   `json:"decay_ratio"`

	// OutperformedTraining 标记 OOS 胜率反超训练集的可疑情况。
	OutperformedTraining bool `json:"outperformed_training,omitempty"`

	WindowMetrics []backtest.Metrics `json:"window_metrics,omitempty"`

	// OOS 区间的完整指标与逐笔收益，供漂移监控固化基线。
	OOSMetrics backtest.Metrics `json:"oos_metrics"`
	OOSReturns []float64        `json:"oos_returns,omitempty"`
}
