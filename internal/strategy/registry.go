package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quorum/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// poolSchema 约束 pool 文件里的每条策略定义。
// 非法条目整条拒绝，不做静默修补。
const poolSchema = `{
  "type": "object",
  "required": ["id", "kind", "timeframe"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "kind": {
      "type": "string",
      "enum": ["ema_cross", "rsi_reversal", "macd_cross", "bollinger_breakout", "volume_breakout", "atr_breakout", "sma_momentum"]
    },
    "timeframe": {"type": "string", "enum": ["5m", "15m", "30m", "1h", "4h", "1d"]},
    "session": {"type": "string", "enum": ["london", "newyork", "both", "any", ""]},
    "params": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    },
    "exit": {
      "type": "object",
      "properties": {
        "stop_loss_pct": {"type": "number", "minimum": 0, "maximum": 0.2},
        "take_profit_pct": {"type": "number", "minimum": 0, "maximum": 0.5},
        "atr_multiple": {"type": "number", "minimum": 0, "maximum": 10},
        "risk_reward": {"type": "number", "minimum": 0, "maximum": 10}
      }
    },
    "payload": {"type": "string"}
  }
}`

// poolFile 映射 pool YAML 顶层结构。
type poolFile struct {
	Strategies []Definition `yaml:"strategies"`
}

// Snapshot 不可变的策略池快照，版本号随每次成功加载递增。
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Strategies []Definition

	byID map[string]Definition
}

func (s Snapshot) Lookup(id string) (Definition, bool) {
	def, ok := s.byID[strings.TrimSpace(id)]
	return def, ok
}

// ChangeListener 在 pool 重载成功后触发。
type ChangeListener func(Snapshot)

// Registry 管理策略池文件：加载、校验、热更新。
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取 pool 文件并监听更新。加载失败时保留上一份快照。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("pool.json", strings.NewReader(poolSchema)); err != nil {
		return nil, fmt.Errorf("strategy schema resource failed: %w", err)
	}
	schema, err := compiler.Compile("pool.json")
	if err != nil {
		return nil, fmt.Errorf("strategy schema compile failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy pool failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy pool reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前策略池快照。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// OnChange 注册重载回调。
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	defs, err := readPoolFile(r.path, r.schema)
	if err != nil {
		return err
	}
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if _, dup := byID[def.ID]; dup {
			return fmt.Errorf("duplicate strategy id: %s", def.ID)
		}
		byID[def.ID] = def
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:    r.snapshot.Version + 1,
		LoadedAt:   time.Now(),
		Strategies: defs,
		byID:       byID,
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("strategy pool loaded %d strategies from %s (version=%d)", len(defs), filepath.Base(r.path), version)
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("strategy pool listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func readPoolFile(path string, schema *jsonschema.Schema) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy pool failed: %w", err)
	}
	var file poolFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse strategy pool failed: %w", err)
	}
	out := make([]Definition, 0, len(file.Strategies))
	for i, def := range file.Strategies {
		def.ID = strings.TrimSpace(def.ID)
		if err := validateDefinition(def, schema); err != nil {
			return nil, fmt.Errorf("strategy pool entry %d (%s): %w", i, def.ID, err)
		}
		def.Provenance = parseProvenance(def.Payload)
		out = append(out, def)
	}
	return out, nil
}

func validateDefinition(def Definition, schema *jsonschema.Schema) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	if !def.Session.Valid() {
		return fmt.Errorf("invalid session: %s", def.Session)
	}
	if _, err := ParseKind(string(def.Kind)); err != nil {
		return err
	}
	return nil
}

// parseProvenance 宽容地解析生成器 payload。生成器来自外部，
// 字段缺失或整段非法都不算错误。
func parseProvenance(payload string) Provenance {
	payload = strings.TrimSpace(payload)
	if payload == "" || !gjson.Valid(payload) {
		return Provenance{}
	}
	return Provenance{
		Generator: gjson.Get(payload, "generator.name").String(),
		Seed:      gjson.Get(payload, "generator.seed").Int(),
		CreatedAt: gjson.Get(payload, "generator.created_at").String(),
	}
}
