package risk

import (
	"time"

	"quorum/internal/ensemble"
	"quorum/internal/market"
	"quorum/internal/strategy"
)

// Position 当前敞口，用于相关性检查。
type Position struct {
	Pair      string             `json:"pair"`
	Direction strategy.Direction `json:"direction"`
}

// Input 一次风控评估的全部上下文。
type Input struct {
	Signal        *ensemble.Signal
	Candles       []market.Candle
	Now           time.Time
	OpenPositions []Position

	// ReturnsByPair 各品种近期收益率，供动态相关性使用；缺失时退回静态估计。
	ReturnsByPair map[string][]float64
}

type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Verdict 全部检查的合取。失败理由全部保留，不在第一条就停。
type Verdict struct {
	Passed  bool          `json:"passed"`
	Results []CheckResult `json:"results"`
}

// Reasons 带检查名前缀输出全部失败理由，拒绝方能看出哪道闸拦的。
func (v Verdict) Reasons() []string {
	var out []string
	for _, r := range v.Results {
		if !r.Passed {
			out = append(out, r.Name+": "+r.Reason)
		}
	}
	return out
}

// Check 单项风控。各检查相互独立，可单独停用。
type Check interface {
	Name() string
	Evaluate(in Input) CheckResult
}

type Chain struct {
	checks []Check
}

func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Evaluate 逐项执行并汇总。即使早已注定失败也跑完所有检查，
// 这样被拒信号能带上完整的理由清单。
func (c *Chain) Evaluate(in Input) Verdict {
	verdict := Verdict{Passed: true}
	for _, check := range c.checks {
		res := check.Evaluate(in)
		verdict.Results = append(verdict.Results, res)
		if !res.Passed {
			verdict.Passed = false
		}
	}
	return verdict
}

func pass(name string) CheckResult {
	return CheckResult{Name: name, Passed: true}
}

func fail(name, reason string) CheckResult {
	return CheckResult{Name: name, Passed: false, Reason: reason}
}
