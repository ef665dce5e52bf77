package strategy

import (
	"fmt"
	"strings"
)

// Direction 信号方向。空串表示不触发。
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionNone Direction = ""
)

func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNone
	}
}

// Kind 策略类型，封闭集合。Evaluate 只认识这些值。
type Kind string

const (
	KindEMACross          Kind = "ema_cross"
	KindRSIReversal       Kind = "rsi_reversal"
	KindMACDCross         Kind = "macd_cross"
	KindBollingerBreakout Kind = "bollinger_breakout"
	KindVolumeBreakout    Kind = "volume_breakout"
	KindATRBreakout       Kind = "atr_breakout"
	KindSMAMomentum       Kind = "sma_momentum"
)

var allKinds = map[Kind]bool{
	KindEMACross:          true,
	KindRSIReversal:       true,
	KindMACDCross:         true,
	KindBollingerBreakout: true,
	KindVolumeBreakout:    true,
	KindATRBreakout:       true,
	KindSMAMomentum:       true,
}

func ParseKind(input string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(input)))
	if !allKinds[k] {
		return "", fmt.Errorf("unknown strategy kind: %s", input)
	}
	return k, nil
}

// Levels 出场参数。百分比优先；均为零时退回 ATR 倍数。
type Levels struct {
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
	ATRMultiple   float64 `yaml:"atr_multiple" json:"atr_multiple"`
	RiskReward    float64 `yaml:"risk_reward" json:"risk_reward"`
}

// Apply 由入场价推导止损/止盈。atr 仅在 ATR 模式下使用。
func (l Levels) Apply(dir Direction, entry, atr float64) (stop, target float64) {
	rr := l.RiskReward
	if rr <= 0 {
		rr = 1.5
	}
	var dist float64
	switch {
	case l.StopLossPct > 0:
		dist = entry * l.StopLossPct
	case l.ATRMultiple > 0 && atr > 0:
		dist = atr * l.ATRMultiple
	default:
		dist = entry * 0.005
	}
	targetDist := dist * rr
	if l.TakeProfitPct > 0 {
		targetDist = entry * l.TakeProfitPct
	}
	switch dir {
	case DirectionBuy:
		return entry - dist, entry + targetDist
	case DirectionSell:
		return entry + dist, entry - targetDist
	default:
		return 0, 0
	}
}

// Provenance 生成器元信息，来自 pool 文件的 payload 字段。
type Provenance struct {
	Generator string `json:"generator"`
	Seed      int64  `json:"seed"`
	CreatedAt string `json:"created_at"`
}

// Definition 一条策略定义。入场条件由 Kind+Params 决定，
// 不允许任意代码，全部走 predicate 解释器。
type Definition struct {
	ID        string             `yaml:"id" json:"id"`
	Name      string             `yaml:"name" json:"name"`
	Kind      Kind               `yaml:"kind" json:"kind"`
	Timeframe string             `yaml:"timeframe" json:"timeframe"`
	Session   Session            `yaml:"session" json:"session"`
	Params    map[string]float64 `yaml:"params" json:"params"`
	Exit      Levels             `yaml:"exit" json:"exit"`
	Payload   string             `yaml:"payload" json:"payload,omitempty"`

	Provenance Provenance `yaml:"-" json:"provenance,omitempty"`
}

// Param 读取参数并带默认值。
func (d Definition) Param(name string, def float64) float64 {
	if v, ok := d.Params[name]; ok && v != 0 {
		return v
	}
	return def
}

// Evaluation 单根 K 线上的入场判定结果。
type Evaluation struct {
	Direction  Direction
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}
