package market

import "context"

type SourceStats struct {
	Requests  int
	Failures  int
	LastError string
}

// Source 行情数据源。实现方必须返回按 OpenTime 严格递增的序列。
type Source interface {
	// FetchHistory 拉取最近 limit 根已收盘 K 线。
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	Name() string

	Stats() SourceStats

	Close() error
}
