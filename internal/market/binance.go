package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
)

// 交易所单次 kline 请求上限；更深的历史按 startTime 向后翻页拼接。
const klinePageLimit = 1000

// BinanceSource 基于 go-binance SDK 实现 Source。
type BinanceSource struct {
	name   string
	client *binance.Client

	statsMu sync.Mutex
	stats   SourceStats
}

type BinanceConfig struct {
	Name        string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "binance"
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{name: name, client: client}
}

func (s *BinanceSource) Name() string { return s.name }

func (s *BinanceSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance 不接受带斜杠的符号（EUR/USDT -> EURUSDT）
	cleanSymbol := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	interval = strings.ToLower(strings.TrimSpace(interval))
	tf, err := ParseTimeframe(interval)
	if err != nil {
		return nil, err
	}

	var out []Candle
	if limit <= klinePageLimit {
		if out, err = s.fetchPage(ctx, cleanSymbol, interval, 0, limit); err != nil {
			return nil, err
		}
	} else if out, err = s.fetchPaged(ctx, cleanSymbol, interval, limit, tf.durationMillis()); err != nil {
		return nil, err
	}

	out = DropUnclosed(out, time.Now().UnixMilli())
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if err := ValidateSeries(out); err != nil {
		s.recordFailure(err)
		return nil, err
	}
	return out, nil
}

// fetchPaged 从推算的起点开始按 startTime 向后翻页，直到集满 limit 根
// 或交易所返回空页（多取一根，尾部未收盘的会被丢弃）。
func (s *BinanceSource) fetchPaged(ctx context.Context, symbol, interval string, limit int, stepMs int64) ([]Candle, error) {
	want := limit + 1
	cursor := time.Now().UnixMilli() - int64(want)*stepMs
	out := make([]Candle, 0, want)
	for len(out) < want {
		batch := want - len(out)
		if batch > klinePageLimit {
			batch = klinePageLimit
		}
		page, err := s.fetchPage(ctx, symbol, interval, cursor, batch)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		// OpenTime 单调递增由 ValidateSeries 兜底，游标必然前进。
		cursor = page[len(page)-1].OpenTime + stepMs
	}
	return out, nil
}

func (s *BinanceSource) fetchPage(ctx context.Context, symbol, interval string, startMs int64, limit int) ([]Candle, error) {
	s.recordRequest()
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if startMs > 0 {
		svc = svc.StartTime(startMs)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

// DropUnclosed 丢弃尚未收盘的尾部 K 线。
func DropUnclosed(candles []Candle, nowMillis int64) []Candle {
	for len(candles) > 0 && candles[len(candles)-1].CloseTime > nowMillis {
		candles = candles[:len(candles)-1]
	}
	return candles
}

func (s *BinanceSource) Stats() SourceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *BinanceSource) Close() error { return nil }

func (s *BinanceSource) recordRequest() {
	s.statsMu.Lock()
	s.stats.Requests++
	s.statsMu.Unlock()
}

func (s *BinanceSource) recordFailure(err error) {
	s.statsMu.Lock()
	s.stats.Failures++
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
