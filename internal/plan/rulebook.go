package plan

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sibyl/internal/logger"
)

// 中文说明：
// Rulebook 承载兜底规划器的小型词表：闲聊短语、回忆短语、
// 币种别名映射与意图关键词。可从 YAML 文件加载并热更新，
// 文件缺省时使用编译期默认值。

type Rulebook struct {
	CasualPhrases []string          `mapstructure:"casual_phrases" yaml:"casual_phrases"`
	RecallPhrases []string          `mapstructure:"recall_phrases" yaml:"recall_phrases"`
	Symbols       map[string]string `mapstructure:"symbols" yaml:"symbols"`
	PriceWords    []string          `mapstructure:"price_words" yaml:"price_words"`
	AnalysisWords []string          `mapstructure:"analysis_words" yaml:"analysis_words"`

	DefaultInterval   string   `mapstructure:"default_interval" yaml:"default_interval"`
	DefaultLimit      int      `mapstructure:"default_limit" yaml:"default_limit"`
	DefaultIndicators []string `mapstructure:"default_indicators" yaml:"default_indicators"`
}

func DefaultRulebook() Rulebook {
	return Rulebook{
		CasualPhrases: []string{
			"hi", "hello", "hey", "yo", "thanks", "thank you",
			"good morning", "good evening", "how are you", "what's up",
		},
		RecallPhrases: []string{
			"what did i ask", "what did i just ask", "what was my last question",
			"what did i say", "repeat my question",
		},
		Symbols: map[string]string{
			"btc": "BTCUSDT", "bitcoin": "BTCUSDT",
			"eth": "ETHUSDT", "ethereum": "ETHUSDT",
			"sol": "SOLUSDT", "solana": "SOLUSDT",
			"bnb": "BNBUSDT",
			"xrp": "XRPUSDT",
			"doge": "DOGEUSDT", "dogecoin": "DOGEUSDT",
		},
		PriceWords:        []string{"price", "cost", "worth", "quote", "how much"},
		AnalysisWords:     []string{"analyze", "analysis", "technical", "trend", "indicator", "chart", "rsi", "macd"},
		DefaultInterval:   "1h",
		DefaultLimit:      200,
		DefaultIndicators: []string{"rsi_14", "macd", "sma_20"},
	}
}

// SymbolFor 在查询文本里查找币种别名，返回规范交易对。
func (r Rulebook) SymbolFor(query string) (string, bool) {
	lower := strings.ToLower(query)
	for alias, pair := range r.Symbols {
		if strings.Contains(lower, alias) {
			return pair, true
		}
	}
	return "", false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// WantsPrice / WantsAnalysis 查询意图关键词匹配（输入需已转小写）。
func (r Rulebook) WantsPrice(lowerQuery string) bool { return containsAny(lowerQuery, r.PriceWords) }

func (r Rulebook) WantsAnalysis(lowerQuery string) bool {
	return containsAny(lowerQuery, r.AnalysisWords)
}

// IsCasualPhrase 闲聊短语的精确/近似匹配：
// 去掉标点后全等，或查询很短且以短语开头。
func (r Rulebook) IsCasualPhrase(query string) bool {
	normalized := normalizePhrase(query)
	if normalized == "" {
		return false
	}
	for _, p := range r.CasualPhrases {
		phrase := normalizePhrase(p)
		if normalized == phrase {
			return true
		}
		if len(normalized) <= len(phrase)+3 && strings.HasPrefix(normalized, phrase) {
			return true
		}
	}
	return false
}

// IsRecallPhrase “我刚才问了什么”这类回忆短语匹配。
func (r Rulebook) IsRecallPhrase(query string) bool {
	normalized := normalizePhrase(query)
	for _, p := range r.RecallPhrases {
		if strings.HasPrefix(normalized, normalizePhrase(p)) {
			return true
		}
	}
	return false
}

func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, " !?.,;:")
}

// Registry 管理 Rulebook 的加载与热更新。
type Registry struct {
	mu       sync.RWMutex
	current  Rulebook
	loadedAt time.Time
}

// NewRegistry path 为空时仅使用默认词表；watch 为 true 时监听文件变更。
func NewRegistry(path string, watch bool) (*Registry, error) {
	r := &Registry{current: DefaultRulebook(), loadedAt: time.Now()}
	path = strings.TrimSpace(path)
	if path == "" {
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rulebook failed: %w", err)
	}
	if err := r.reload(v); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(fsnotify.Event) {
			if err := r.reload(v); err != nil {
				logger.Errorf("rulebook reload failed: %v", err)
				return
			}
			logger.Infof("rulebook reloaded from %s", path)
		})
		v.WatchConfig()
	}
	return r, nil
}

func (r *Registry) reload(v *viper.Viper) error {
	// 文件内容覆盖在默认词表之上，缺失字段保留默认值
	rb := DefaultRulebook()
	if err := v.Unmarshal(&rb); err != nil {
		return err
	}
	if rb.DefaultInterval == "" {
		rb.DefaultInterval = "1h"
	}
	if rb.DefaultLimit <= 0 {
		rb.DefaultLimit = 200
	}
	r.mu.Lock()
	r.current = rb
	r.loadedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// Snapshot 当前词表快照。
func (r *Registry) Snapshot() Rulebook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Dump 以 YAML 输出当前词表，用于调试接口。
func (r *Registry) Dump() (string, error) {
	snapshot := r.Snapshot()
	b, err := yaml.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
