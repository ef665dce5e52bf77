package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quorum/internal/logger"
	"quorum/internal/pkg/circuit"
)

// FailoverSource 按顺序尝试多个数据源，每个源带独立熔断器。
// 对调用方而言等价于单个 Source；主源恢复后自动切回。
type FailoverSource struct {
	sources  []Source
	breakers []*circuit.Breaker

	statsMu sync.Mutex
	stats   SourceStats
}

type FailoverConfig struct {
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

func NewFailoverSource(cfg FailoverConfig, sources ...Source) (*FailoverSource, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("failover source requires at least one provider")
	}
	breakers := make([]*circuit.Breaker, len(sources))
	for i, src := range sources {
		breakers[i] = circuit.NewBreaker(src.Name(), cfg.BreakerThreshold, cfg.BreakerTimeout)
	}
	return &FailoverSource{sources: sources, breakers: breakers}, nil
}

func (f *FailoverSource) Name() string { return "failover" }

func (f *FailoverSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	f.statsMu.Lock()
	f.stats.Requests++
	f.statsMu.Unlock()

	var lastErr error
	for i, src := range f.sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var candles []Candle
		err := f.breakers[i].Execute(func() error {
			var fetchErr error
			candles, fetchErr = src.FetchHistory(ctx, symbol, interval, limit)
			return fetchErr
		})
		if err == nil {
			if i > 0 {
				logger.Warnf("market: primary source degraded, served %s %s via %s", symbol, interval, src.Name())
			}
			return candles, nil
		}
		lastErr = err
		if err != circuit.ErrOpen {
			logger.Warnf("market: source %s failed for %s %s: %v", src.Name(), symbol, interval, err)
		}
	}

	f.statsMu.Lock()
	f.stats.Failures++
	if lastErr != nil {
		f.stats.LastError = lastErr.Error()
	}
	f.statsMu.Unlock()
	return nil, fmt.Errorf("all market sources unavailable for %s %s: %w", symbol, interval, lastErr)
}

func (f *FailoverSource) Stats() SourceStats {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	return f.stats
}

func (f *FailoverSource) Close() error {
	var firstErr error
	for _, src := range f.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
