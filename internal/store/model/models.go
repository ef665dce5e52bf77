package model

import "gorm.io/datatypes"

// EligibleStrategyModel 一行对应某次验证运行里一个策略的结论。
// 同一 SetVersion 的行构成一个完整快照。
type EligibleStrategyModel struct {
	ID             uint           `gorm:"primaryKey"`
	SetVersion     int64          `gorm:"index;not null"`
	RunID          string         `gorm:"size:64;index"`
	StrategyID     string         `gorm:"size:128;index;not null"`
	Passed         bool           `gorm:"not null"`
	DefinitionJSON datatypes.JSON `gorm:"column:definition_json"`
	VerdictJSON    datatypes.JSON `gorm:"column:verdict_json"`
	CreatedAtUnix  int64          `gorm:"index"`
}

func (EligibleStrategyModel) TableName() string { return "eligible_strategies" }

// SignalLogModel 审计日志，只插入不更新。
type SignalLogModel struct {
	ID            uint           `gorm:"primaryKey"`
	SignalID      string         `gorm:"size:64;index"`
	Pair          string         `gorm:"size:32;index;not null"`
	Direction     string         `gorm:"size:8"`
	Emitted       bool           `gorm:"index;not null"`
	ReasonsJSON   datatypes.JSON `gorm:"column:reasons_json"`
	PayloadJSON   datatypes.JSON `gorm:"column:payload_json"`
	CreatedAtUnix int64          `gorm:"index"`
}

func (SignalLogModel) TableName() string { return "signal_log" }

// DriftBaselineModel 验证期固化的基线指标，每个主体一行。
type DriftBaselineModel struct {
	ID            uint           `gorm:"primaryKey"`
	SubjectID     string         `gorm:"size:128;uniqueIndex;not null"`
	WinRate       float64        `gorm:"not null"`
	ProfitFactor  float64        `gorm:"not null"`
	Sharpe        float64        `gorm:"not null"`
	ReturnsJSON   datatypes.JSON `gorm:"column:returns_json"`
	UpdatedAtUnix int64          `gorm:"index"`
}

func (DriftBaselineModel) TableName() string { return "drift_baselines" }

// SignalOutcomeModel 已实现的交易结果，供漂移监控消费。
type SignalOutcomeModel struct {
	ID           uint    `gorm:"primaryKey"`
	SubjectID    string  `gorm:"size:128;index;not null"`
	PnLPct       float64 `gorm:"not null"`
	ClosedAtUnix int64   `gorm:"index;not null"`
}

func (SignalOutcomeModel) TableName() string { return "signal_outcomes" }
