package app

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/config"
	"quorum/internal/drift"
	"quorum/internal/logger"
	"quorum/internal/notifier"
	"quorum/internal/scheduler"
	"quorum/internal/signal"
	"quorum/internal/store"
	transporthttp "quorum/internal/transport/http"
	"quorum/internal/validate"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动前台与后台循环。
type App struct {
	cfg      *config.Config
	pipeline *signal.Pipeline
	holder   *validate.SetHolder
	runner   *validate.Runner
	monitor  *drift.Monitor
	store    *store.GormStore
	httpSrv  *transporthttp.Server
	notify   notifier.TextNotifier

	runValidation func(ctx context.Context) (*validate.EligibleSet, error)
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run 启动 HTTP 服务与全部后台循环，任一关键组件退出即整体退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()

	// 启动即补一轮验证：磁盘快照可用则先顶上，过期由刷新循环兜底。
	if set := a.holder.Load(); set == nil {
		logger.Infof("no eligible set on record, running initial validation")
		if _, err := a.runValidation(ctx); err != nil {
			logger.Warnf("initial validation failed: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.cfg.Signal.AutoEnabled {
		interval, _ := scheduler.ParseIntervalDuration(a.cfg.Kline.Interval)
		loop := &signal.AutoLoop{
			Pipeline:       a.pipeline,
			Pairs:          a.cfg.Signal.Pairs,
			Notifier:       a.notify,
			Interval:       interval,
			Offset:         time.Duration(a.cfg.Signal.OffsetSeconds) * time.Second,
			RunImmediately: a.cfg.Signal.RunImmediately,
		}
		group.Go(func() error {
			loop.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		scheduler.RunEvery(ctx, "validation refresh",
			time.Duration(a.cfg.Validation.RefreshHours)*time.Hour,
			func(ctx context.Context) error {
				_, err := a.runValidation(ctx)
				return err
			})
		return nil
	})

	group.Go(func() error {
		scheduler.RunEvery(ctx, "drift sweep",
			time.Duration(a.cfg.Drift.IntervalMinutes)*time.Minute,
			a.driftSweep)
		return nil
	})

	return group.Wait()
}

// driftSweep 逐主体评估漂移；告警受冷却约束，CRITICAL 触发准入剔除。
func (a *App) driftSweep(ctx context.Context) error {
	subjects, err := a.store.BaselineSubjects(ctx)
	if err != nil {
		return fmt.Errorf("list drift subjects: %w", err)
	}
	now := time.Now().UTC()
	window := time.Duration(a.cfg.Drift.WindowDays) * 24 * time.Hour
	for _, id := range subjects {
		base, ok, err := a.store.LoadBaseline(ctx, id)
		if err != nil || !ok {
			if err != nil {
				logger.Warnf("drift: load baseline %s failed: %v", id, err)
			}
			continue
		}
		recent, err := a.store.RecentOutcomes(ctx, id, now.Add(-window))
		if err != nil {
			logger.Warnf("drift: load outcomes %s failed: %v", id, err)
			continue
		}
		rep := a.monitor.Evaluate(id, recent, base, now)
		if rep.InsufficientData || rep.Severity == drift.SeverityNone {
			continue
		}
		logger.Warnf("drift %s: severity=%s action=%s ks_p=%.4f samples=%d",
			id, rep.Severity, rep.Action, rep.KS.PValue, rep.SampleSize)
		if rep.Action == drift.ActionDisable {
			a.pruneFromEligible(id)
		}
		if a.monitor.ShouldAlert(id, now) {
			if err := a.notify.SendText(renderDriftAlert(rep)); err != nil {
				logger.Warnf("drift: alert %s failed: %v", id, err)
			}
		}
	}
	return nil
}

// pruneFromEligible 把漂移到 CRITICAL 的策略从当前准入集合里剔除，
// 换入一个新版本快照。
func (a *App) pruneFromEligible(strategyID string) {
	cur := a.holder.Load()
	if cur == nil {
		return
	}
	if _, ok := cur.Lookup(strategyID); !ok {
		return
	}
	next := &validate.EligibleSet{
		Version:   time.Now().UnixMilli(),
		RunID:     cur.RunID,
		CreatedAt: time.Now().UTC(),
		Verdicts:  cur.Verdicts,
	}
	for _, def := range cur.Strategies {
		if def.ID != strategyID {
			next.Strategies = append(next.Strategies, def)
		}
	}
	next.Index()
	a.holder.Swap(next)
	logger.Warnf("drift: strategy %s removed from eligible set (version=%d)", strategyID, next.Version)
}

func renderDriftAlert(rep drift.Report) string {
	return fmt.Sprintf("*Drift alert* %s\nSeverity: %s\nAction: %s\nKS p=%.4f samples=%d",
		rep.SubjectID, rep.Severity, rep.Action, rep.KS.PValue, rep.SampleSize)
}
