package validate

import (
	"sync/atomic"
	"time"

	"quorum/internal/strategy"
)

// EligibleSet 一次验证运行产出的不可变准入集合。
// 消费方永远只看到某个完整版本，不会读到半新半旧的集合。
type EligibleSet struct {
	Version    int64                          `json:"version"`
	RunID      string                         `json:"run_id"`
	CreatedAt  time.Time                      `json:"created_at"`
	Strategies []strategy.Definition          `json:"strategies"`
	Verdicts   map[string]Verdict             `json:"verdicts"`
	byID       map[string]strategy.Definition `json:"-"`
}

func (s *EligibleSet) Lookup(id string) (strategy.Definition, bool) {
	if s == nil {
		return strategy.Definition{}, false
	}
	def, ok := s.byID[id]
	return def, ok
}

// Index 重建 ID 索引。反序列化恢复快照后必须调用。
func (s *EligibleSet) Index() {
	s.byID = make(map[string]strategy.Definition, len(s.Strategies))
	for _, def := range s.Strategies {
		s.byID[def.ID] = def
	}
}

// SetHolder 以原子指针持有当前准入集合。
type SetHolder struct {
	ptr atomic.Pointer[EligibleSet]
}

func (h *SetHolder) Load() *EligibleSet {
	return h.ptr.Load()
}

func (h *SetHolder) Swap(set *EligibleSet) {
	if set == nil {
		return
	}
	h.ptr.Store(set)
}
