package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorum/internal/drift"
	"quorum/internal/store/model"
	"quorum/internal/strategy"
	"quorum/internal/validate"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// GormStore SQLite 持久层：准入集合快照、信号审计日志、
// 漂移基线与已实现结果。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 打开（或创建）数据库并自动迁移。
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: db path required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	// 纯 Go 的 modernc 驱动，_pragma 参数由它解析。
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&model.EligibleStrategyModel{},
		&model.SignalLogModel{},
		&model.DriftBaselineModel{},
		&model.SignalOutcomeModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveEligibleSet 把整个快照写成同一 SetVersion 下的行集合。
func (s *GormStore) SaveEligibleSet(ctx context.Context, set *validate.EligibleSet) error {
	if set == nil {
		return fmt.Errorf("gorm store: nil eligible set")
	}
	now := time.Now().Unix()
	rows := make([]model.EligibleStrategyModel, 0, len(set.Verdicts))
	for id, verdict := range set.Verdicts {
		row := model.EligibleStrategyModel{
			SetVersion:    set.Version,
			RunID:         set.RunID,
			StrategyID:    id,
			Passed:        verdict.Passed,
			CreatedAtUnix: now,
		}
		verdictJSON, err := json.Marshal(verdict)
		if err != nil {
			return fmt.Errorf("marshal verdict %s: %w", id, err)
		}
		row.VerdictJSON = datatypes.JSON(verdictJSON)
		if def, ok := set.Lookup(id); ok {
			defJSON, err := json.Marshal(def)
			if err != nil {
				return fmt.Errorf("marshal definition %s: %w", id, err)
			}
			row.DefinitionJSON = datatypes.JSON(defJSON)
		}
		rows = append(rows, row)
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// LoadLatestEligibleSet 恢复最近一次验证运行的快照。
// 没有历史时返回 (nil, nil)。
func (s *GormStore) LoadLatestEligibleSet(ctx context.Context) (*validate.EligibleSet, error) {
	var latest model.EligibleStrategyModel
	err := s.db.WithContext(ctx).Order("set_version DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []model.EligibleStrategyModel
	if err := s.db.WithContext(ctx).Where("set_version = ?", latest.SetVersion).Find(&rows).Error; err != nil {
		return nil, err
	}
	set := &validate.EligibleSet{
		Version:   latest.SetVersion,
		RunID:     latest.RunID,
		CreatedAt: time.Unix(latest.CreatedAtUnix, 0).UTC(),
		Verdicts:  make(map[string]validate.Verdict, len(rows)),
	}
	for _, row := range rows {
		var verdict validate.Verdict
		if len(row.VerdictJSON) > 0 {
			if err := json.Unmarshal(row.VerdictJSON, &verdict); err != nil {
				return nil, fmt.Errorf("unmarshal verdict %s: %w", row.StrategyID, err)
			}
		}
		set.Verdicts[row.StrategyID] = verdict
		if row.Passed && len(row.DefinitionJSON) > 0 {
			var def strategy.Definition
			if err := json.Unmarshal(row.DefinitionJSON, &def); err != nil {
				return nil, fmt.Errorf("unmarshal definition %s: %w", row.StrategyID, err)
			}
			set.Strategies = append(set.Strategies, def)
		}
	}
	set.Index()
	return set, nil
}

// SignalLogRecord 审计日志条目。
type SignalLogRecord struct {
	SignalID  string
	Pair      string
	Direction string
	Emitted   bool
	Reasons   []string
	Payload   any
	CreatedAt time.Time
}

// AppendSignalLog 追加审计日志。日志只增不改。
func (s *GormStore) AppendSignalLog(ctx context.Context, rec SignalLogRecord) error {
	row := model.SignalLogModel{
		SignalID:      rec.SignalID,
		Pair:          rec.Pair,
		Direction:     rec.Direction,
		Emitted:       rec.Emitted,
		CreatedAtUnix: rec.CreatedAt.Unix(),
	}
	if len(rec.Reasons) > 0 {
		raw, err := json.Marshal(rec.Reasons)
		if err != nil {
			return err
		}
		row.ReasonsJSON = datatypes.JSON(raw)
	}
	if rec.Payload != nil {
		raw, err := json.Marshal(rec.Payload)
		if err != nil {
			return err
		}
		row.PayloadJSON = datatypes.JSON(raw)
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// SaveBaseline 写入或更新主体基线。+Inf 的盈亏比落库前截断。
func (s *GormStore) SaveBaseline(ctx context.Context, base drift.Baseline) error {
	if strings.TrimSpace(base.SubjectID) == "" {
		return fmt.Errorf("gorm store: baseline subject id required")
	}
	pf := base.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 1e9
	}
	returnsJSON, err := json.Marshal(base.Returns)
	if err != nil {
		return err
	}
	row := model.DriftBaselineModel{
		SubjectID:     base.SubjectID,
		WinRate:       base.WinRate,
		ProfitFactor:  pf,
		Sharpe:        base.Sharpe,
		ReturnsJSON:   datatypes.JSON(returnsJSON),
		UpdatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// LoadBaseline 读取主体基线；不存在时 ok=false。
func (s *GormStore) LoadBaseline(ctx context.Context, subjectID string) (drift.Baseline, bool, error) {
	var row model.DriftBaselineModel
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return drift.Baseline{}, false, nil
	}
	if err != nil {
		return drift.Baseline{}, false, err
	}
	base := drift.Baseline{
		SubjectID:    row.SubjectID,
		WinRate:      row.WinRate,
		ProfitFactor: row.ProfitFactor,
		Sharpe:       row.Sharpe,
		UpdatedAt:    time.Unix(row.UpdatedAtUnix, 0).UTC(),
	}
	if len(row.ReturnsJSON) > 0 {
		if err := json.Unmarshal(row.ReturnsJSON, &base.Returns); err != nil {
			return drift.Baseline{}, false, err
		}
	}
	return base, true, nil
}

// BaselineSubjects 返回所有有基线的主体。
func (s *GormStore) BaselineSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	err := s.db.WithContext(ctx).Model(&model.DriftBaselineModel{}).
		Order("subject_id").Pluck("subject_id", &subjects).Error
	return subjects, err
}

// InsertOutcome 记录一笔已实现结果。
func (s *GormStore) InsertOutcome(ctx context.Context, o drift.Outcome) error {
	if strings.TrimSpace(o.SubjectID) == "" {
		return fmt.Errorf("gorm store: outcome subject id required")
	}
	row := model.SignalOutcomeModel{
		SubjectID:    o.SubjectID,
		PnLPct:       o.PnLPct,
		ClosedAtUnix: o.ClosedAt.Unix(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RecentOutcomes 按时间窗读取主体的已实现结果（升序）。
func (s *GormStore) RecentOutcomes(ctx context.Context, subjectID string, since time.Time) ([]drift.Outcome, error) {
	var rows []model.SignalOutcomeModel
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND closed_at_unix >= ?", subjectID, since.Unix()).
		Order("closed_at_unix ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]drift.Outcome, 0, len(rows))
	for _, row := range rows {
		out = append(out, drift.Outcome{
			SubjectID: row.SubjectID,
			PnLPct:    row.PnLPct,
			ClosedAt:  time.Unix(row.ClosedAtUnix, 0).UTC(),
		})
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
