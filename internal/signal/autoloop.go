package signal

import (
	"context"
	"time"

	"quorum/internal/logger"
	"quorum/internal/notifier"
	"quorum/internal/scheduler"
)

// AutoLoop 自动轮询：每根 K 线收盘后对所有配置品种跑一遍管道，
// 产出的信号推送给通知渠道。
type AutoLoop struct {
	Pipeline       *Pipeline
	Pairs          []string
	Notifier       notifier.TextNotifier
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool
}

func (l *AutoLoop) Run(ctx context.Context) {
	if l.Pipeline == nil || len(l.Pairs) == 0 {
		logger.Warnf("auto loop: no pipeline or pairs configured, exit")
		return
	}
	sched := scheduler.NewAlignedScheduler(ctx, l.Interval, l.Offset)
	sched.RunImmediately = l.RunImmediately
	sched.Start(func() {
		l.tick(ctx)
	})
}

func (l *AutoLoop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("auto loop panic: %v", r)
		}
	}()
	for _, pair := range l.Pairs {
		if ctx.Err() != nil {
			return
		}
		decision, err := l.Pipeline.Evaluate(ctx, pair)
		if err != nil {
			logger.Errorf("auto loop %s: %v", pair, err)
			continue
		}
		if !decision.Emitted() {
			logger.Debugf("auto loop %s: no trade (%d reasons)", pair, len(decision.Reasons))
			continue
		}
		if l.Notifier == nil {
			continue
		}
		if err := l.Notifier.SendText(Render(decision)); err != nil {
			logger.Warnf("auto loop %s: notify failed: %v", pair, err)
		}
	}
}
